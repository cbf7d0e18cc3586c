package logger

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestLogger implements the Logger interface and buffers logs until test
// completion, entries are only written out when the test fails which keeps
// successful test output clean
type TestLogger struct {
	t      *testing.T
	buffer []logEntry
	mu     sync.Mutex
}

type logEntry struct {
	level     string
	message   string
	args      []interface{}
	timestamp time.Time
}

// NewTestLogger creates a new TestLogger that will output logs only on
// test failure
func NewTestLogger(t *testing.T) *TestLogger {
	logger := &TestLogger{
		t:      t,
		buffer: make([]logEntry, 0),
	}

	t.Cleanup(func() {
		logger.flushIfFailed()
	})

	return logger
}

var _ Logger = (*TestLogger)(nil)

func (l *TestLogger) Info(msg string, args ...interface{}) {
	l.addEntry("INFO", msg, args)
}

func (l *TestLogger) Debug(msg string, args ...interface{}) {
	l.addEntry("DEBUG", msg, args)
}

func (l *TestLogger) Warn(msg string, args ...interface{}) {
	l.addEntry("WARN", msg, args)
}

func (l *TestLogger) Error(msg string, args ...interface{}) {
	l.addEntry("ERROR", msg, args)
}

func (l *TestLogger) addEntry(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer = append(l.buffer, logEntry{
		level:     level,
		message:   msg,
		args:      args,
		timestamp: time.Now(),
	})
}

func (l *TestLogger) flushIfFailed() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.t.Failed() {
		return
	}

	for _, e := range l.buffer {
		line := strings.Builder{}
		line.WriteString(e.timestamp.Format("15:04:05.000"))
		line.WriteString(" ")
		line.WriteString(e.level)
		line.WriteString(" ")
		line.WriteString(e.message)

		for i := 0; i+1 < len(e.args); i += 2 {
			line.WriteString(fmt.Sprintf(" %v=%v", e.args[i], e.args[i+1]))
		}

		l.t.Log(line.String())
	}
}
