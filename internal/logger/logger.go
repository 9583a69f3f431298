package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

type levelStyle struct {
	name     string
	level    *color.Color
	category *color.Color
}

var styles = map[LogLevel]levelStyle{
	DEBUG: {"DEBUG", color.New(color.FgCyan), color.New(color.FgCyan, color.Bold)},
	INFO:  {"INFO", color.New(color.FgGreen), color.New(color.FgGreen, color.Bold)},
	WARN:  {"WARN", color.New(color.FgYellow), color.New(color.FgYellow, color.Bold)},
	ERROR: {"ERROR", color.New(color.FgRed), color.New(color.FgRed, color.Bold)},
	FATAL: {"FATAL", color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
}

var (
	timeColor   = color.New(color.FgBlue)
	callerColor = color.New(color.FgMagenta)
)

func (lv LogLevel) String() string {
	if s, ok := styles[lv]; ok {
		return s.name
	}
	return "INFO"
}

// ParseLevel maps a level name to its LogLevel. Unknown names give INFO.
func ParseLevel(name string) LogLevel {
	for lv, s := range styles {
		if strings.EqualFold(s.name, strings.TrimSpace(name)) {
			return lv
		}
	}
	return INFO
}

// LogEntry is one line of the JSON log file.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	File      string    `json:"file,omitempty"`
	Line      int       `json:"line,omitempty"`
}

type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	logFile *os.File
	minimum LogLevel
}

// New logs colored lines to w only. Tests and one-shot tools use it.
func New(w io.Writer) *Logger {
	return &Logger{out: w}
}

// NewLogger logs colored lines to stdout and JSON lines to
// logs/<service>-<date>.log.
func NewLogger(service string) *Logger {
	f, err := openLogFile("logs", service, time.Now().UTC())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	l := &Logger{out: os.Stdout, logFile: f}
	l.Info("LOGGER", fmt.Sprintf("Logging to %s", f.Name()))
	return l
}

func openLogFile(dir, service string, day time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	name := filepath.Join(dir, fmt.Sprintf("%s-%s.log", service, day.Format("2006-01-02")))
	return os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// SetLevel drops entries below level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.minimum = level
	l.mu.Unlock()
}

func (l *Logger) write(level LogLevel, category, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.minimum {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Category:  strings.ToUpper(category),
		Message:   message,
	}
	// write <- Debug/Info/... <- caller
	if _, file, line, ok := runtime.Caller(2); ok {
		entry.File, entry.Line = filepath.Base(file), line
	}

	if l.out != nil {
		io.WriteString(l.out, terminalLine(level, entry))
	}
	if l.logFile != nil {
		if b, err := json.Marshal(entry); err == nil {
			l.logFile.Write(append(b, '\n'))
		}
	}
}

func terminalLine(level LogLevel, e LogEntry) string {
	s, ok := styles[level]
	if !ok {
		s = styles[INFO]
	}

	var b strings.Builder
	b.WriteString(timeColor.Sprint(e.Timestamp.Format("15:04:05")))
	b.WriteByte(' ')
	b.WriteString(s.level.Sprintf("%-5s", e.Level))
	b.WriteByte(' ')
	b.WriteString(s.category.Sprintf("[%-10s]", e.Category))
	b.WriteByte(' ')
	b.WriteString(e.Message)
	if e.File != "" {
		b.WriteString(callerColor.Sprintf(" (%s:%d)", e.File, e.Line))
	}
	b.WriteByte('\n')
	return b.String()
}

func (l *Logger) Debug(category, message string) { l.write(DEBUG, category, message) }
func (l *Logger) Info(category, message string)  { l.write(INFO, category, message) }
func (l *Logger) Warn(category, message string)  { l.write(WARN, category, message) }
func (l *Logger) Error(category, message string) { l.write(ERROR, category, message) }

// Fatal logs and exits with status 1. Deferred calls do not run.
func (l *Logger) Fatal(category, message string) {
	l.write(FATAL, category, message)
	os.Exit(1)
}

func (l *Logger) LogSeat(action string, seatID int64, message string) {
	l.Info("SEAT", fmt.Sprintf("[%s] seat %d - %s", action, seatID, message))
}

func (l *Logger) LogPass(action, passID, message string) {
	l.Info("PASS", fmt.Sprintf("[%s] %s - %s", action, passID, message))
}

func (l *Logger) LogSweep(freed, live int, duration time.Duration) {
	l.Debug("SWEEP", fmt.Sprintf("freed %d, live %d (%s)", freed, live, duration))
}

func (l *Logger) LogAPI(method, path string, status int, duration time.Duration) {
	l.Info("API", fmt.Sprintf("%s %s - %d (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.Info("DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.Warn("SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

// Close closes the log file, if any.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
	}
}
