package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide logger.
var Logger = logrus.New()

var once sync.Once

// CustomFormatter writes one line per entry: time, level, source, message and
// the sorted structured fields.
type CustomFormatter struct {
	SystemName string
}

// Format implements logrus.Formatter.
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	b.WriteString(entry.Time.UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteString(fmt.Sprintf(" %-5s [%s] %s", strings.ToUpper(entry.Level.String()), f.SystemName, entry.Message))

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(" %s=%v", k, entry.Data[k]))
	}

	if entry.HasCaller() {
		b.WriteString(fmt.Sprintf(" (%s:%d)", filepath.Base(entry.Caller.File), entry.Caller.Line))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Options configures InitLogger. A non-empty File enables rotation through
// lumberjack; otherwise entries go to stderr.
type Options struct {
	Level string
	File  string
}

// InitLogger configures the global logger once.
func InitLogger(opts Options) {
	once.Do(func() {
		Logger.SetFormatter(&CustomFormatter{SystemName: "content-pipeline"})

		level, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			level = logrus.InfoLevel
		}
		Logger.SetLevel(level)

		if opts.File == "" {
			Logger.SetOutput(os.Stderr)
			return
		}

		if dir := filepath.Dir(opts.File); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				Logger.Fatalf("failed to create log directory: %v", err)
			}
		}
		Logger.SetOutput(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
		Logger.SetReportCaller(true)
		Logger.WithField("file", opts.File).Info("logger initialized")
	})
}
