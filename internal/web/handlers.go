package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/supplysync/internal/core"
	"github.com/JonMunkholm/supplysync/internal/logging"
)

// healthResponse reports liveness and import slot usage.
type healthResponse struct {
	Status  string                   `json:"status"`
	Imports core.ImportLimiterStatus `json:"imports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Imports: s.service.Limiter().Status(),
	})
}

// handleTemplate downloads a blank import file.
// Query: format=csv|xlsx (default csv).
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	ft := core.FileTypeCSV
	if f := r.URL.Query().Get("format"); f != "" {
		if ft = core.ParseFileType(f); ft == "" {
			s.respondError(w, r, &core.FormatError{Reason: fmt.Sprintf("unsupported file type %q", f)}, http.StatusBadRequest)
			return
		}
	}

	var buf bytes.Buffer
	if err := core.WriteTemplate(&buf, ft); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", core.TemplateContentType(ft))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", core.TemplateFilename(ft)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("template download interrupted", "error", err)
	}
}
