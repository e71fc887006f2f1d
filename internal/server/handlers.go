package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"transcripthost/internal/domain"
	"transcripthost/internal/service"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
)

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, map[string]string{"error": msg})
}

func writeTranscriptError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, map[string]any{"success": false, "error": msg})
}

func (s *Server) handleRoot(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"message": "API Server is running",
		"endpoints": map[string]string{
			"upload":           "/api/upload",
			"files":            "/api/files",
			"transcripts":      "/api/transcripts",
			"transcriptUpload": "/api/transcripts/upload",
			"generate":         "/api/transcripts/generate",
		},
	})
}

func (s *Server) handleStatus(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

func (s *Server) tooLargeMessage() string {
	mb := float64(s.maxUploadBytes) / 1048576
	return "File too large. Maximum file size is " + strconv.FormatFloat(mb, 'f', -1, 64) + "MB"
}

// parseMultipart bounds the request body and parses the form. The returned
// status is 0 on success.
func (s *Server) parseMultipart(rw http.ResponseWriter, r *http.Request) (int, string) {
	r.Body = http.MaxBytesReader(rw, r.Body, s.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxMultipartMem); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return http.StatusRequestEntityTooLarge, s.tooLargeMessage()
		}
		return http.StatusBadRequest, "No file uploaded"
	}
	return 0, ""
}

func (s *Server) handleUpload(rw http.ResponseWriter, r *http.Request) {
	if status, msg := s.parseMultipart(rw, r); status != 0 {
		writeError(rw, status, msg)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(rw, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	info, err := s.backend.UploadFile(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrFileTooLarge):
		writeError(rw, http.StatusRequestEntityTooLarge, s.tooLargeMessage())
		return
	case errors.Is(err, domain.ErrFileTypeNotAllowed):
		writeError(rw, http.StatusBadRequest, "File type not allowed")
		return
	default:
		s.serverError(r, "file upload failed", err)
		writeError(rw, domain.HTTPStatus(err), err.Error())
		return
	}

	writeJSON(rw, http.StatusCreated, map[string]any{
		"message": "File uploaded successfully",
		"file":    info,
	})
}

func (s *Server) handleListFiles(rw http.ResponseWriter, r *http.Request) {
	files, err := s.backend.ListFiles(r.Context())
	if err != nil {
		s.serverError(r, "list files failed", err)
		writeError(rw, http.StatusInternalServerError, "Failed to read files directory")
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleTranscriptUpload(rw http.ResponseWriter, r *http.Request) {
	if status, msg := s.parseMultipart(rw, r); status != 0 {
		writeTranscriptError(rw, status, msg)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("transcript")
	if err != nil {
		writeTranscriptError(rw, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	rec, err := s.backend.UploadTranscript(r.Context(), service.UploadRequest{
		Reader:     file,
		TicketID:   r.FormValue("ticketId"),
		Username:   r.FormValue("username"),
		TicketType: r.FormValue("ticketType"),
		Inquiry:    r.FormValue("inquiry"),
		OpenedAt:   r.FormValue("openedAt"),
		ClosedAt:   r.FormValue("closedAt"),
	})
	if err != nil {
		if errors.Is(err, domain.ErrFileTooLarge) {
			writeTranscriptError(rw, http.StatusRequestEntityTooLarge, s.tooLargeMessage())
			return
		}
		s.serverError(r, "transcript upload failed", err)
		writeTranscriptError(rw, http.StatusInternalServerError, "Failed to upload transcript")
		return
	}

	writeJSON(rw, http.StatusOK, map[string]any{
		"success":  true,
		"id":       rec.ID,
		"filename": rec.Filename,
		"url":      rec.URL,
	})
}

func (s *Server) handleListTranscripts(rw http.ResponseWriter, r *http.Request) {
	records, err := s.backend.ListTranscripts(r.Context())
	if err != nil {
		s.serverError(r, "list transcripts failed", err)
		writeTranscriptError(rw, http.StatusInternalServerError, "Failed to fetch transcripts")
		return
	}
	writeJSON(rw, http.StatusOK, records)
}

func (s *Server) handleGetTranscript(rw http.ResponseWriter, r *http.Request) {
	rec, err := s.backend.GetTranscript(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		status := domain.HTTPStatus(err)
		if status == http.StatusNotFound {
			writeError(rw, status, "Transcript not found")
			return
		}
		s.serverError(r, "get transcript failed", err)
		writeError(rw, status, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, rec)
}

func (s *Server) handleGenerate(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		writeError(rw, http.StatusBadRequest, "Bad Request")
		return
	}

	if s.generateSecret != "" {
		sig := r.Header.Get(signatureHeader)
		if sig == "" {
			writeError(rw, http.StatusUnauthorized, "Missing signature")
			return
		}
		if !verifyHMAC(body, s.generateSecret, sig) {
			writeError(rw, http.StatusForbidden, "Invalid signature")
			return
		}
	}

	var req service.GenerateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(rw, http.StatusBadRequest, "Invalid JSON")
		return
	}

	res, err := s.backend.GenerateTranscript(r.Context(), req)
	if err != nil {
		status := domain.HTTPStatus(err)
		if status >= 500 {
			s.serverError(r, "transcript generation failed", err)
		} else {
			s.logger.Warn("transcript generation rejected", "channel_id", req.ChannelID, "status", status, "err", err)
		}
		writeError(rw, status, err.Error())
		return
	}
	writeJSON(rw, http.StatusCreated, res)
}

type opener func(ctx context.Context, name string) (io.ReadSeekCloser, domain.StoredFile, error)

func (s *Server) handleDownload(open opener) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rc, info, err := open(r.Context(), mux.Vars(r)["name"])
		if err != nil {
			status := domain.HTTPStatus(err)
			if status == http.StatusNotFound || status == http.StatusBadRequest {
				writeError(rw, http.StatusNotFound, "File not found")
				return
			}
			s.serverError(r, "open stored file failed", err)
			writeError(rw, status, err.Error())
			return
		}
		defer rc.Close()
		if info.ContentType != "" {
			rw.Header().Set("Content-Type", info.ContentType)
		}
		http.ServeContent(rw, r, info.Name, info.ModTime, rc)
	}
}

// serverError logs err and reports it to Sentry (a no-op without a DSN).
func (s *Server) serverError(r *http.Request, msg string, err error) {
	s.logger.Error(msg, "method", r.Method, "path", r.URL.Path, "err", err)
	sentry.CaptureException(err)
}
