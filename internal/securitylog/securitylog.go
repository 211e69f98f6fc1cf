// Package securitylog records security relevant events (validation failures, auth events,
// rate limit trips, CSP reports) as an append-only stream of JSON lines.
//
// Logging is fire-and-forget: entries are queued and written by a background goroutine.
// When the queue is full entries are dropped, the audit trail is best effort.
package securitylog

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nkiryanov/farmbox/internal/handlers/userctx"
)

const (
	TypeValidation = "validation_error"
	TypeAuth       = "auth_event"
	TypeRateLimit  = "rate_limit"
	TypeCSP        = "csp_violation"

	defaultQueueSize = 1024
)

// Logger consumed by the guards
// Implementations must never block nor panic
type Logger interface {
	LogValidation(r *http.Request, errs []string)
	LogAuthEvent(r *http.Request, event string, meta map[string]any)
	LogRateLimit(r *http.Request)
	LogCSPReport(r *http.Request, report map[string]any)
}

type Entry struct {
	Timestamp time.Time
	Type      string
	Method    string
	Path      string
	IP        string
	UserID    string // empty for anonymous requests

	// Client supplied forwarding chain, empty if absent
	ForwardedFor string

	Fields map[string]any
}

// Build entry common fields from request
func NewEntry(r *http.Request, typ string, fields map[string]any) Entry {
	e := Entry{
		Timestamp: time.Now().UTC(),
		Type:      typ,
		Method:    r.Method,
		Path:      r.URL.Path,
		IP:        ClientIP(r),
		Fields:    fields,

		ForwardedFor: ForwardedFor(r),
	}
	if identity, ok := userctx.FromContext(r.Context()); ok {
		e.UserID = identity.ID.String()
	}
	return e
}

// Writer writes entries as JSON lines to the underlying sink
type Writer struct {
	logger *slog.Logger
	queue  chan Entry

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	done    chan struct{}
}

// Create writer and start background flushing
// queueSize <= 0 means default size
func NewWriter(out io.Writer, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{ReplaceAttr: replace})

	w := &Writer{
		logger: slog.New(handler),
		queue:  make(chan Entry, queueSize),
		done:   make(chan struct{}),
	}
	go w.run()

	return w
}

func (w *Writer) LogValidation(r *http.Request, errs []string) {
	w.Log(NewEntry(r, TypeValidation, map[string]any{"errors": errs}))
}

func (w *Writer) LogAuthEvent(r *http.Request, event string, meta map[string]any) {
	fields := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		fields[k] = v
	}
	fields["event"] = event
	w.Log(NewEntry(r, TypeAuth, fields))
}

func (w *Writer) LogRateLimit(r *http.Request) {
	w.Log(NewEntry(r, TypeRateLimit, map[string]any{"userAgent": r.UserAgent()}))
}

func (w *Writer) LogCSPReport(r *http.Request, report map[string]any) {
	w.Log(NewEntry(r, TypeCSP, map[string]any{"report": report}))
}

// Queue entry without blocking
// Entry is dropped if queue is full or writer closed
func (w *Writer) Log(e Entry) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.dropped.Add(1)
		return
	}

	select {
	case w.queue <- e:
	default:
		w.dropped.Add(1)
	}
}

// Number of entries dropped so far
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// Stop accepting entries and wait until queued ones are written
func (w *Writer) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)

	for e := range w.queue {
		w.write(e)
	}
}

func (w *Writer) write(e Entry) {
	var userID any
	if e.UserID != "" {
		userID = e.UserID
	}

	attrs := make([]slog.Attr, 0, 6+len(e.Fields))
	attrs = append(attrs,
		slog.String("method", e.Method),
		slog.String("path", e.Path),
		slog.String("ip", e.IP),
		slog.Any("userId", userID),
	)
	if e.ForwardedFor != "" {
		attrs = append(attrs, slog.String("forwardedFor", e.ForwardedFor))
	}
	for k, v := range e.Fields {
		attrs = append(attrs, slog.Any(fieldKey(k), v))
	}

	record := slog.NewRecord(e.Timestamp, slog.LevelInfo, e.Type, 0)
	record.AddAttrs(attrs...)
	_ = w.logger.Handler().Handle(context.Background(), record)
}

// Entry keys event fields must not shadow
var reservedKeys = map[string]bool{
	"timestamp":    true,
	"type":         true,
	"method":       true,
	"path":         true,
	"ip":           true,
	"userId":       true,
	"forwardedFor": true,
}

// Event field key, colliding ones are moved under "field_" prefix
func fieldKey(k string) string {
	if reservedKeys[k] {
		return "field_" + k
	}
	return k
}

// Rename builtin keys to entry format: time -> timestamp, msg -> type, no level
func replace(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.MessageKey:
		a.Key = "type"
	case slog.LevelKey:
		return slog.Attr{}
	}
	return a
}

// Nop logger discards everything
type Nop struct{}

func (Nop) LogValidation(*http.Request, []string)              {}
func (Nop) LogAuthEvent(*http.Request, string, map[string]any) {}
func (Nop) LogRateLimit(*http.Request)                         {}
func (Nop) LogCSPReport(*http.Request, map[string]any)         {}

// Open append-only sink
// Empty path or "-" means stdout
func Open(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// ClientIP returns the client address resolved by the proxy aware middleware
// Without it the connection remote address is used, forwarding headers are never trusted here
func ClientIP(r *http.Request) string {
	if ip, ok := userctx.ClientIP(r.Context()); ok && ip != "" {
		return ip
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Raw X-Forwarded-For chain, logged as is and never used for decisions
func ForwardedFor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
}
