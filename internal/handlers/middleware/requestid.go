package middleware

import (
	"crypto/rand"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nkiryanov/farmbox/internal/handlers/userctx"
)

const RequestIDHeader = "X-Request-ID"

// Incoming ids are accepted only if they look harmless
var requestIDRe = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

type idGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func (g *idGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), g.entropy).String()
}

// RequestID propagates client request id or generates ULID one
// The id is put to the context and echoed in the response header
func RequestID() func(http.Handler) http.Handler {
	gen := &idGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if !requestIDRe.MatchString(id) {
				id = gen.New()
			}

			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(userctx.WithRequestID(r.Context(), id)))
		})
	}
}
