package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

type Fields map[string]any

// Entry - одна запись журнала. Action - машинное имя события (trip_accepted),
// Message - человекочитаемое описание.
type Entry struct {
	Action  string
	Message string
	UserID  uint
	TripID  uint
	Err     error
	Fields  Fields
}

type record struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service"`
	Action    string `json:"action"`
	Message   string `json:"message,omitempty"`
	UserID    uint   `json:"user_id,omitempty"`
	TripID    uint   `json:"trip_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Fields    Fields `json:"fields,omitempty"`
}

type Logger struct {
	service string
	min     Level
	json    bool
	out     io.Writer
	mu      sync.Mutex
}

// New создает логгер в stdout. format: "json" или "text".
func New(service, level, format string) *Logger {
	return NewWithWriter(os.Stdout, service, level, format)
}

func NewWithWriter(w io.Writer, service, level, format string) *Logger {
	return &Logger{
		service: service,
		min:     ParseLevel(level),
		json:    strings.EqualFold(format, "json"),
		out:     w,
	}
}

// Nop возвращает логгер, который ничего не пишет
func Nop() *Logger {
	return NewWithWriter(io.Discard, "nop", "error", "text")
}

func (l *Logger) Debug(e Entry) { l.log(LevelDebug, e) }
func (l *Logger) Info(e Entry)  { l.log(LevelInfo, e) }
func (l *Logger) Warn(e Entry)  { l.log(LevelWarn, e) }
func (l *Logger) Error(e Entry) { l.log(LevelError, e) }

func (l *Logger) Fatal(e Entry) {
	l.log(LevelError, e)
	os.Exit(1)
}

func (l *Logger) log(level Level, e Entry) {
	if l == nil || level < l.min {
		return
	}

	r := record{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Service:   l.service,
		Action:    e.Action,
		Message:   e.Message,
		UserID:    e.UserID,
		TripID:    e.TripID,
		Fields:    e.Fields,
	}
	if e.Err != nil {
		r.Error = e.Err.Error()
	}

	var line []byte
	if l.json {
		b, err := json.Marshal(r)
		if err != nil {
			b = []byte(fmt.Sprintf(`{"level":"ERROR","service":%q,"message":"failed to marshal log: %v"}`, l.service, err))
		}
		line = append(b, '\n')
	} else {
		line = []byte(formatText(r))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(line)
}

func formatText(r record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", r.Timestamp, r.Level, r.Action)
	if r.Message != "" {
		fmt.Fprintf(&b, " %q", r.Message)
	}
	if r.UserID != 0 {
		fmt.Fprintf(&b, " user_id=%d", r.UserID)
	}
	if r.TripID != 0 {
		fmt.Fprintf(&b, " trip_id=%d", r.TripID)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, " error=%q", r.Error)
	}

	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, r.Fields[k])
	}
	b.WriteByte('\n')
	return b.String()
}
