package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	for l, name := range levelNames {
		if strings.EqualFold(s, name) {
			return l
		}
	}
	return INFO
}

// sink is shared by a logger and everything derived from it with With.
type sink struct {
	mu        sync.Mutex
	out       io.Writer
	level     Level
	redactPII bool
}

// Logger writes structured JSON lines with optional PII redaction.
// Loggers derived with With share the parent's output and settings.
type Logger struct {
	sink   *sink
	fields []interface{}
}

// New creates a logger writing to out.
func New(out io.Writer, level Level) *Logger {
	return &Logger{sink: &sink{out: out, level: level, redactPII: true}}
}

var defaultLogger = New(os.Stderr, INFO)

// Default returns the process-wide logger.
func Default() *Logger { return defaultLogger }

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { defaultLogger.sink.setLevel(l) }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	defaultLogger.sink.mu.Lock()
	defaultLogger.sink.redactPII = r
	defaultLogger.sink.mu.Unlock()
}

// SetOutput redirects the default logger.
func SetOutput(w io.Writer) {
	defaultLogger.sink.mu.Lock()
	defaultLogger.sink.out = w
	defaultLogger.sink.mu.Unlock()
}

// With returns a default logger that adds the given key/value pairs to every entry.
func With(fields ...interface{}) *Logger { return defaultLogger.With(fields...) }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

// With returns a child logger carrying extra key/value pairs.
func (l *Logger) With(fields ...interface{}) *Logger {
	merged := make([]interface{}, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{sink: l.sink, fields: merged}
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(INFO, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(WARN, msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

func (s *sink) setLevel(l Level) {
	s.mu.Lock()
	s.level = l
	s.mu.Unlock()
}

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < s.level {
		return
	}

	entry := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}

	all := append(append([]interface{}{}, l.fields...), fields...)
	for i := 0; i < len(all)-1; i += 2 {
		key := fmt.Sprintf("%v", all[i])
		val := fmt.Sprintf("%v", all[i+1])
		if s.redactPII {
			val = redactPIIValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	fmt.Fprintln(s.out, string(data))
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// piiKeys are field names whose whole value is an address.
var piiKeys = []string{"email", "recipient", "participant", "invitee"}

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	for _, k := range piiKeys {
		if strings.Contains(key, k) {
			return RedactEmail(val)
		}
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
