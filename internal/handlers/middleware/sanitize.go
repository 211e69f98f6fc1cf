package middleware

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nkiryanov/farmbox/internal/handlers/render"
	"github.com/nkiryanov/farmbox/internal/sanitize"
	"github.com/nkiryanov/farmbox/internal/securitylog"
)

// Request bodies above the limit are rejected
const MaxBodySize = 1 << 20

// Sanitize cleans query and body of every request before it reaches handlers
// Downstream handlers get a cloned request, the original one is not forwarded
func Sanitize(log securitylog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clean, err := sanitizeRequest(w, r)
			if err != nil {
				log.LogValidation(r, []string{err.Error()})
				render.Error(w, render.ValidationErrorType, "Invalid request payload", http.StatusBadRequest)
				return
			}

			next.ServeHTTP(w, clean)
		})
	}
}

func sanitizeRequest(w http.ResponseWriter, r *http.Request) (*http.Request, error) {
	clean := r.Clone(r.Context())

	query, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return nil, errors.New("malformed query string")
	}
	clean.URL.RawQuery = sanitize.Query(query).Encode()

	if r.Body == nil || r.Body == http.NoBody {
		return clean, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.New("request body too large")
		}
		return nil, errors.New("request body could not be read")
	}

	// Handlers decode JSON whatever the header says, so anything but a form is cleaned as JSON
	if len(bytes.TrimSpace(body)) > 0 {
		if mediaType(r) == "application/x-www-form-urlencoded" {
			form, err := url.ParseQuery(string(body))
			if err != nil {
				return nil, errors.New("malformed form body")
			}
			body = []byte(sanitize.Query(form).Encode())
		} else {
			body, err = sanitize.JSON(body)
			if err != nil {
				return nil, err
			}
		}
	}

	clean.Body = io.NopCloser(bytes.NewReader(body))
	clean.ContentLength = int64(len(body))
	clean.Header.Set("Content-Length", strconv.Itoa(len(body)))
	clean.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	return clean, nil
}

// Media type without parameters, empty if missing or malformed
func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}
