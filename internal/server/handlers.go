package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/claude/healthingest/internal/ingest"
	"github.com/claude/healthingest/internal/ingest/hae"
)

type errorResponse struct {
	Error string `json:"error"`
	Path  string `json:"path,omitempty"`
}

func (s *Server) handleUpload(kind ingest.Kind, okMessage string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
				return
			}
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "reading body: " + err.Error()})
			return
		}

		body, err := hae.DecodeBody(bytes.NewReader(raw))
		if err != nil {
			s.writeIngestError(w, kind, err)
			return
		}

		if _, err := s.ingester.Ingest(r.Context(), kind, body); err != nil {
			s.writeIngestError(w, kind, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": okMessage})
	}
}

// writeIngestError maps pipeline errors to HTTP status codes.
func (s *Server) writeIngestError(w http.ResponseWriter, kind ingest.Kind, err error) {
	var ve *ingest.ValidationError
	var se *ingest.StorageError

	switch {
	case errors.As(err, &ve):
		status := http.StatusUnprocessableEntity
		if errors.Is(err, ingest.ErrMalformedJSON) {
			status = http.StatusBadRequest
		}
		s.log.Info("upload rejected", "kind", kind, "path", ve.Path, "reason", ve.Reason)
		writeJSON(w, status, errorResponse{Error: ve.Reason, Path: ve.Path})
	case errors.As(err, &se):
		s.log.Error("upload failed", "kind", kind, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: se.Error()})
	default:
		s.log.Error("upload failed", "kind", kind, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
