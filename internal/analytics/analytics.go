// Package analytics derives dashboard KPIs from tasks, completed tasks and
// stage events. Every function is pure: inputs are never mutated and
// records pointing at entities that no longer exist are skipped.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/yukikurage/content-pipeline/internal/constants"
	"github.com/yukikurage/content-pipeline/internal/models"
)

const day = 24 * time.Hour

// DateRange is an inclusive time window.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// LastDays returns the window of n days ending at now.
func LastDays(now time.Time, n int) DateRange {
	return DateRange{From: now.Add(-time.Duration(n) * day), To: now}
}

// Contains reports whether t falls inside the window.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// Days is the window length in days, never less than one.
func (r DateRange) Days() float64 {
	d := r.To.Sub(r.From).Hours() / 24
	if d < 1 {
		return 1
	}
	return d
}

// Dataset holds everything the aggregator reads.
type Dataset struct {
	Channels  []models.Channel
	Tasks     []models.Task
	Completed []models.CompletedTask
	Events    []models.StageEvent
	Users     []models.User
}

// Query selects what a report covers. Empty id lists mean "all".
type Query struct {
	ChannelIDs []string
	UserIDs    []string
	Range      DateRange
	Now        time.Time
}

type Bottleneck struct {
	ChannelID   string  `json:"channel_id"`
	ColumnID    string  `json:"column_id"`
	ColumnName  string  `json:"column_name"`
	TaskCount   int     `json:"task_count"`
	AvgDaysIdle float64 `json:"avg_days_idle"`
}

type LeaderboardEntry struct {
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	CompletedTasks  int    `json:"completed_tasks"`
	StagesCompleted int    `json:"stages_completed"`
	Score           int    `json:"score"`
}

type StageDuration struct {
	ChannelID  string  `json:"channel_id"`
	ColumnID   string  `json:"column_id"`
	ColumnName string  `json:"column_name"`
	Samples    int     `json:"samples"`
	AvgDays    float64 `json:"avg_days"`
}

type ColumnLoad struct {
	ChannelID  string `json:"channel_id"`
	ColumnID   string `json:"column_id"`
	ColumnName string `json:"column_name"`
	Tasks      int    `json:"tasks"`
}

// Report is the KPI bundle served to dashboards.
type Report struct {
	Range            DateRange          `json:"range"`
	Throughput       float64            `json:"throughput_per_day"`
	AvgCycleTimeDays float64            `json:"avg_cycle_time_days"`
	OnTimeRate       float64            `json:"on_time_rate"`
	CompletedCount   int                `json:"completed_count"`
	ActiveCount      int                `json:"active_count"`
	Bottlenecks      []Bottleneck       `json:"bottlenecks"`
	Leaderboard      []LeaderboardEntry `json:"leaderboard"`
	StageDurations   []StageDuration    `json:"stage_durations"`
	ColumnLoad       []ColumnLoad       `json:"column_load"`
}

// Throughput is the number of tasks completed in the window per day.
func Throughput(completed []models.CompletedTask, r DateRange) float64 {
	n := 0
	for _, c := range completed {
		if r.Contains(c.CompletedAt) {
			n++
		}
	}
	return float64(n) / r.Days()
}

// CycleTimeDays is the time from task creation to completion. ok is false
// when the creation time of the original task is unknown.
func CycleTimeDays(c models.CompletedTask) (float64, bool) {
	if c.TaskCreatedAt.IsZero() {
		return 0, false
	}
	return c.CompletedAt.Sub(c.TaskCreatedAt).Hours() / 24, true
}

// AvgCycleTime averages CycleTimeDays over the set; 0 for an empty set.
func AvgCycleTime(completed []models.CompletedTask) float64 {
	var sum float64
	n := 0
	for _, c := range completed {
		d, ok := CycleTimeDays(c)
		if !ok {
			continue
		}
		sum += d
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// OnTimeRate is the rounded percentage of tasks with a due date that were
// completed on or before it. 0 when no task had a due date.
func OnTimeRate(completed []models.CompletedTask) float64 {
	withDue, onTime := 0, 0
	for _, c := range completed {
		if c.DueDate == nil {
			continue
		}
		withDue++
		if !c.CompletedAt.After(*c.DueDate) {
			onTime++
		}
	}
	if withDue == 0 {
		return 0
	}
	return math.Round(float64(onTime) / float64(withDue) * 100)
}

type columnRef struct {
	channelID string
	name      string
	position  int
}

func indexColumns(channels []models.Channel) map[string]columnRef {
	out := make(map[string]columnRef)
	for _, ch := range channels {
		for _, col := range ch.Columns {
			out[col.ID] = columnRef{channelID: ch.ID, name: col.Name, position: col.Position}
		}
	}
	return out
}

// Bottlenecks flags columns whose active tasks have, on average, not been
// touched for more than the threshold. Sorted by idle time, top five.
func Bottlenecks(tasks []models.Task, channels []models.Channel, now time.Time) []Bottleneck {
	columns := indexColumns(channels)
	type acc struct {
		count int
		days  float64
	}
	byColumn := make(map[string]*acc)
	for _, t := range tasks {
		if _, ok := columns[t.ColumnID]; !ok {
			continue
		}
		a, ok := byColumn[t.ColumnID]
		if !ok {
			a = &acc{}
			byColumn[t.ColumnID] = a
		}
		a.count++
		a.days += now.Sub(t.UpdatedAt).Hours() / 24
	}

	out := make([]Bottleneck, 0)
	for columnID, a := range byColumn {
		avg := a.days / float64(a.count)
		if avg <= constants.BottleneckThresholdDays {
			continue
		}
		ref := columns[columnID]
		out = append(out, Bottleneck{
			ChannelID:   ref.channelID,
			ColumnID:    columnID,
			ColumnName:  ref.name,
			TaskCount:   a.count,
			AvgDaysIdle: avg,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgDaysIdle != out[j].AvgDaysIdle {
			return out[i].AvgDaysIdle > out[j].AvgDaysIdle
		}
		return out[i].ColumnID < out[j].ColumnID
	})
	if len(out) > constants.MaxBottlenecks {
		out = out[:constants.MaxBottlenecks]
	}
	return out
}

// Leaderboard scores each user by tasks assigned to them completed in the
// window plus stage transitions they performed in the window.
func Leaderboard(completed []models.CompletedTask, events []models.StageEvent, users []models.User, r DateRange) []LeaderboardEntry {
	entries := make(map[string]*LeaderboardEntry, len(users))
	for _, u := range users {
		entries[u.ID] = &LeaderboardEntry{UserID: u.ID, Username: u.Username}
	}

	for _, c := range completed {
		if !r.Contains(c.CompletedAt) {
			continue
		}
		if e, ok := entries[c.Assignee()]; ok {
			e.CompletedTasks++
		}
	}
	for _, ev := range events {
		if ev.EventType != models.EventStageCompleted || !r.Contains(ev.OccurredAt) {
			continue
		}
		if e, ok := entries[ev.ActorUserID]; ok {
			e.StagesCompleted++
		}
	}

	out := make([]LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		e.Score = e.CompletedTasks + e.StagesCompleted
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// StageDurations averages how long tasks stayed in each column, measured
// between the event that moved a task into the column and the next event
// of the same task.
func StageDurations(events []models.StageEvent, channels []models.Channel) []StageDuration {
	columns := indexColumns(channels)

	byTask := make(map[string][]models.StageEvent)
	for _, ev := range events {
		byTask[ev.TaskID] = append(byTask[ev.TaskID], ev)
	}

	type acc struct {
		samples int
		days    float64
	}
	byColumn := make(map[string]*acc)
	for _, evs := range byTask {
		sort.SliceStable(evs, func(i, j int) bool {
			if evs[i].Sequence != evs[j].Sequence {
				return evs[i].Sequence < evs[j].Sequence
			}
			return evs[i].OccurredAt.Before(evs[j].OccurredAt)
		})
		for i := 0; i+1 < len(evs); i++ {
			entered, left := evs[i], evs[i+1]
			if entered.ToColumnID != left.FromColumnID {
				continue
			}
			if _, ok := columns[entered.ToColumnID]; !ok {
				continue
			}
			a, ok := byColumn[entered.ToColumnID]
			if !ok {
				a = &acc{}
				byColumn[entered.ToColumnID] = a
			}
			a.samples++
			a.days += left.OccurredAt.Sub(entered.OccurredAt).Hours() / 24
		}
	}

	out := make([]StageDuration, 0, len(byColumn))
	for columnID, a := range byColumn {
		ref := columns[columnID]
		out = append(out, StageDuration{
			ChannelID:  ref.channelID,
			ColumnID:   columnID,
			ColumnName: ref.name,
			Samples:    a.samples,
			AvgDays:    a.days / float64(a.samples),
		})
	}
	sortByColumn(out, columns, func(s StageDuration) (string, string) { return s.ChannelID, s.ColumnID })
	return out
}

// ColumnLoads counts active tasks per column, including empty columns.
func ColumnLoads(tasks []models.Task, channels []models.Channel) []ColumnLoad {
	columns := indexColumns(channels)
	counts := make(map[string]int)
	for _, t := range tasks {
		if _, ok := columns[t.ColumnID]; ok {
			counts[t.ColumnID]++
		}
	}

	out := make([]ColumnLoad, 0, len(columns))
	for columnID, ref := range columns {
		out = append(out, ColumnLoad{
			ChannelID:  ref.channelID,
			ColumnID:   columnID,
			ColumnName: ref.name,
			Tasks:      counts[columnID],
		})
	}
	sortByColumn(out, columns, func(l ColumnLoad) (string, string) { return l.ChannelID, l.ColumnID })
	return out
}

func sortByColumn[T any](items []T, columns map[string]columnRef, key func(T) (string, string)) {
	sort.Slice(items, func(i, j int) bool {
		chI, colI := key(items[i])
		chJ, colJ := key(items[j])
		if chI != chJ {
			return chI < chJ
		}
		return columns[colI].position < columns[colJ].position
	})
}

// Build computes the full report for q over ds.
func Build(ds Dataset, q Query) Report {
	channels := filterChannels(ds.Channels, q.ChannelIDs)
	inChannel := make(map[string]bool, len(channels))
	for _, ch := range channels {
		inChannel[ch.ID] = true
	}
	inUsers := toSet(q.UserIDs)

	var tasks []models.Task
	for _, t := range ds.Tasks {
		if inChannel[t.ChannelID] {
			tasks = append(tasks, t)
		}
	}

	var completed []models.CompletedTask
	for _, c := range ds.Completed {
		if !inChannel[c.ChannelID] || !q.Range.Contains(c.CompletedAt) {
			continue
		}
		if inUsers != nil && !inUsers[c.Assignee()] {
			continue
		}
		completed = append(completed, c)
	}

	var events []models.StageEvent
	for _, ev := range ds.Events {
		if inChannel[ev.ChannelID] {
			events = append(events, ev)
		}
	}
	var userEvents []models.StageEvent
	for _, ev := range events {
		if inUsers == nil || inUsers[ev.ActorUserID] {
			userEvents = append(userEvents, ev)
		}
	}

	var users []models.User
	for _, u := range ds.Users {
		if inUsers == nil || inUsers[u.ID] {
			users = append(users, u)
		}
	}

	return Report{
		Range:            q.Range,
		Throughput:       Throughput(completed, q.Range),
		AvgCycleTimeDays: AvgCycleTime(completed),
		OnTimeRate:       OnTimeRate(completed),
		CompletedCount:   len(completed),
		ActiveCount:      len(tasks),
		Bottlenecks:      Bottlenecks(tasks, channels, q.Now),
		Leaderboard:      Leaderboard(completed, userEvents, users, q.Range),
		StageDurations:   StageDurations(events, channels),
		ColumnLoad:       ColumnLoads(tasks, channels),
	}
}

func filterChannels(channels []models.Channel, ids []string) []models.Channel {
	if len(ids) == 0 {
		return channels
	}
	want := toSet(ids)
	var out []models.Channel
	for _, ch := range channels {
		if want[ch.ID] {
			out = append(out, ch)
		}
	}
	return out
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
