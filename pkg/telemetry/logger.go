package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

const (
	MaxFields = 64
	MaxKeyLen = 64
	MaxValLen = 512

	logMaxMessageLen = 1024
	logMaxServiceLen = 64

	// Bound conflict reporting.
	MaxConflictKeys = 8
)

// Field is a deterministic key/value field representation.
type Field struct {
	K string `json:"k"`
	V string `json:"v"`
}

// Event is a single log record (JSON line).
type Event struct {
	Ts      string  `json:"ts"`
	Level   Level   `json:"level"`
	Service string  `json:"service,omitempty"`
	Msg     string  `json:"msg"`
	Fields  []Field `json:"fields,omitempty"`
}

// Options configures the logger.
type Options struct {
	Service   string
	Level     Level
	Timestamp bool
}

// Logger is a structured JSON-lines logger (stdlib-only).
type Logger struct {
	w   io.Writer
	mu  sync.Mutex
	opt Options
}

// NopLogger is a safe no-op logger, used where no logger is supplied.
var NopLogger = &Logger{w: io.Discard, opt: Options{Timestamp: true, Level: LevelError}}

// NewLogger creates a logger writing JSON lines to w.
func NewLogger(w io.Writer, opt Options) *Logger {
	if w == nil {
		w = os.Stdout
	}
	opt.Service = strings.TrimSpace(opt.Service)
	if len(opt.Service) > logMaxServiceLen {
		opt.Service = opt.Service[:logMaxServiceLen]
	}
	if opt.Level == "" {
		opt.Level = LevelInfo
	}
	return &Logger{w: w, opt: opt}
}

// NewDefaultLogger returns a logger at the given level (info if empty) with
// timestamps enabled.
func NewDefaultLogger(w io.Writer, service string, level Level) *Logger {
	return NewLogger(w, Options{Service: service, Level: level, Timestamp: true})
}

func (l *Logger) Debug(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, LevelDebug, msg, fields)
}
func (l *Logger) Info(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, LevelInfo, msg, fields)
}
func (l *Logger) Warn(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, LevelWarn, msg, fields)
}
func (l *Logger) Error(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, LevelError, msg, fields)
}

func rank(l Level) int {
	switch l {
	case LevelDebug:
		return 1
	case LevelInfo:
		return 2
	case LevelWarn:
		return 3
	default:
		return 4
	}
}

func (l *Logger) enabled(level Level) bool {
	return rank(level) >= rank(l.opt.Level)
}

func (l *Logger) log(ctx context.Context, level Level, msg string, fields map[string]any) {
	if l == nil || !l.enabled(level) {
		return
	}
	ev := Event{
		Level:   level,
		Service: l.opt.Service,
		Msg:     sanitize(msg, logMaxMessageLen),
	}
	if l.opt.Timestamp {
		ev.Ts = time.Now().UTC().Format(time.RFC3339Nano)
	}

	merged := make(map[string]string, 16)
	conflicts := make([]string, 0, 4)

	// set records a field; authoritative fields (scan/correlation identity,
	// pulled from ctx) win over caller-supplied fields of the same name.
	set := func(k, v string, authoritative bool) {
		k = strings.TrimSpace(k)
		if k == "" || len(k) > MaxKeyLen {
			return
		}
		v = sanitize(v, MaxValLen)
		if existing, ok := merged[k]; ok && existing != v {
			if len(conflicts) < MaxConflictKeys {
				conflicts = append(conflicts, k)
			}
			if !authoritative {
				return
			}
		}
		merged[k] = v
	}

	if sid, ok := ScanIDFromContext(ctx); ok {
		set("scan_id", sid, true)
	}
	if cid, ok := CorrelationIDFromContext(ctx); ok {
		set("correlation_id", cid, true)
	}
	if sc, ok := SpanContextFromContext(ctx); ok {
		set("trace_id", sc.TraceID, true)
		if sc.SpanID != "" {
			set("span_id", sc.SpanID, true)
		}
	}

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			k2 := strings.TrimSpace(k)
			if k2 == "" || len(k2) > MaxKeyLen {
				continue
			}
			set(k2, valueToStringDeterministic(fields[k]), false)
			if len(merged) >= MaxFields {
				set("log_truncated", "true", true)
				break
			}
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		set("field_conflicts", strings.Join(conflicts, ","), true)
	}

	if len(merged) > 0 {
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ev.Fields = make([]Field, 0, minInt(len(keys), MaxFields))
		for _, k := range keys {
			ev.Fields = append(ev.Fields, Field{K: k, V: merged[k]})
			if len(ev.Fields) >= MaxFields {
				break
			}
		}
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(line)
	_, _ = l.w.Write([]byte("\n"))
}

// sanitize trims, truncates, and removes control chars.
func sanitize(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) > max {
		s = s[:max]
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// valueToStringDeterministic renders common field value types deterministically.
func valueToStringDeterministic(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case error:
		return x.Error()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
