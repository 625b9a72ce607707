package utils

import "time"

// ParseDate reads an RFC 3339 timestamp or a bare YYYY-MM-DD date (UTC
// midnight). With endOfDay a bare date covers the whole day.
func ParseDate(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
