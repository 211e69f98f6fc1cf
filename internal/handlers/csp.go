package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/nkiryanov/farmbox/internal/handlers/render"
	"github.com/nkiryanov/farmbox/internal/sanitize"
	"github.com/nkiryanov/farmbox/internal/securitylog"
)

const maxCSPReportSize = 64 << 10

// Accepts both legacy report-uri documents {"csp-report": {...}}
// and Reporting API batches [{"type": "csp-violation", "body": {...}}]
func handleCSPReport(seclog securitylog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxCSPReportSize)

		var doc any
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			render.DecodeError(w, err)
			return
		}

		// Reports are browser echoes of page content, strings are cleaned before they reach the log
		for _, report := range cspReports(sanitize.Value(doc)) {
			seclog.LogCSPReport(r, report)
		}

		render.NoContent(w)
	})
}

func cspReports(doc any) []map[string]any {
	switch v := doc.(type) {
	case map[string]any:
		if report, ok := v["csp-report"].(map[string]any); ok {
			return []map[string]any{report}
		}
		return []map[string]any{v}
	case []any:
		reports := make([]map[string]any, 0, len(v))
		for _, item := range v {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if body, ok := entry["body"].(map[string]any); ok {
				reports = append(reports, body)
			}
		}
		return reports
	default:
		return nil
	}
}
