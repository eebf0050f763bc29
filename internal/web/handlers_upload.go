package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/supplysync/internal/core"
)

// multipartOverhead is allowed on top of the file size for form fields and
// part headers.
const multipartOverhead = 1 << 20

// maxApplyBody bounds the JSON body of an apply request.
const maxApplyBody = 32 << 20

var errNoFile = errors.New("no file provided")

// parseResponse is the body of a successful parse.
type parseResponse struct {
	Success bool `json:"success"`
	*core.ParseResult
}

// applyResponse is the body of an apply. Row failures are listed in Errors
// while Success stays true.
type applyResponse struct {
	Success bool `json:"success"`
	core.ApplyResult
}

// handleParse ingests one uploaded spreadsheet and returns the matched rows.
//
// Form fields: file (required), locationId (required), fileType (optional;
// inferred from the filename or content when absent).
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, r, &core.FormatError{
				Reason: fmt.Sprintf("file too large: maximum is %d bytes", maxSize),
			}, http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, &core.FormatError{Reason: errNoFile.Error(), Err: err}, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, &core.FormatError{Reason: errNoFile.Error(), Err: err}, http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusInternalServerError)
		return
	}

	fileType := r.FormValue("fileType")
	if fileType == "" {
		fileType = header.Header.Get("Content-Type")
	}

	result, err := s.service.Parse(withClient(r.Context(), r), core.ParseRequest{
		Filename:   header.Filename,
		FileType:   fileType,
		Data:       data,
		LocationID: r.FormValue("locationId"),
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, parseResponse{Success: true, ParseResult: result})
}

// handleApply commits a finalized row set.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxApplyBody)

	var req core.ApplyRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, r, &core.RequestError{Problems: []string{"malformed body: " + err.Error()}}, http.StatusBadRequest)
		return
	}

	result, err := s.service.Apply(withClient(r.Context(), r), req)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, applyResponse{Success: true, ApplyResult: result})
}
