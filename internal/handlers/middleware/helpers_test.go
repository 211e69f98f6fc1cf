package middleware

import (
	"net/http"
	"sync"
)

type securityEvent struct {
	kind  string
	event string
	meta  map[string]any
	errs  []string
}

// Security logger remembering every event
type recordingLog struct {
	mu     sync.Mutex
	events []securityEvent
}

func (l *recordingLog) add(e securityEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingLog) LogValidation(_ *http.Request, errs []string) {
	l.add(securityEvent{kind: "validation", errs: errs})
}

func (l *recordingLog) LogAuthEvent(_ *http.Request, event string, meta map[string]any) {
	l.add(securityEvent{kind: "auth", event: event, meta: meta})
}

func (l *recordingLog) LogRateLimit(_ *http.Request) {
	l.add(securityEvent{kind: "rate_limit"})
}

func (l *recordingLog) LogCSPReport(_ *http.Request, report map[string]any) {
	l.add(securityEvent{kind: "csp", meta: report})
}

func (l *recordingLog) Events() []securityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]securityEvent(nil), l.events...)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})
