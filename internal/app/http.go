package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"arp/api/internal/assets"
	"arp/api/internal/blocks"
	"arp/api/internal/doctree"
	"arp/api/internal/export"
	"arp/api/internal/search"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        zerolog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		log:        service.log.With().Str("component", "http").Logger(),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/commands" {
		writeJSON(w, http.StatusOK, map[string]any{"items": s.service.Commands(r.URL.Query().Get("q"))})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/convert/to-doc" {
		var body struct {
			Blocks any `json:"blocks"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"doc": s.service.ToDoc(blocks.Coerce(body.Blocks))})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/convert/to-blocks" {
		var body struct {
			Doc any `json:"doc"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := doctree.FromValue(body.Doc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DOCUMENT", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"blocks": s.service.ToBlocks(doc)})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/ai/chat" {
		var body struct {
			Message string `json:"message"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		resp, err := s.service.Chat(r.Context(), body.Message)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		query := r.URL.Query()
		resp, err := s.service.Search(r.Context(), search.Query{
			Text:    strings.TrimSpace(query.Get("q")),
			OwnerID: strings.TrimSpace(query.Get("owner")),
			Status:  strings.TrimSpace(query.Get("status")),
			Limit:   queryInt(query.Get("limit"), 20),
			Offset:  queryInt(query.Get("offset"), 0),
		})
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 4 && parts[0] == "api" && parts[1] == "owners" {
		s.handleOwner(w, r, parts[2], parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

// handleOwner serves /api/owners/{owner}/...; rest starts after the owner id.
func (s *HTTPServer) handleOwner(w http.ResponseWriter, r *http.Request, ownerID string, rest []string) {
	ctx := r.Context()
	author := authorOf(r)

	switch {
	case len(rest) == 1 && rest[0] == "sections":
		switch r.Method {
		case http.MethodGet:
			sections, err := s.service.LoadSections(ctx, ownerID)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": sections})
		case http.MethodPut:
			var body any
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			sections, err := s.service.ReplaceSections(ctx, ownerID, body, author)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": sections})
		case http.MethodPost:
			var body struct {
				Title string `json:"title"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			sec, err := s.service.AddSection(ctx, ownerID, strings.TrimSpace(body.Title))
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, sec)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return

	case len(rest) == 2 && rest[0] == "sections":
		sectionID := rest[1]
		switch r.Method {
		case http.MethodGet:
			sec, err := s.service.Section(ctx, ownerID, sectionID)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, sec)
		case http.MethodPatch:
			var patch map[string]any
			if err := decodeBody(r, &patch); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			sec, err := s.service.UpdateSection(ctx, ownerID, sectionID, patch)
			if err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, sec)
		case http.MethodDelete:
			if err := s.service.DeleteSection(ctx, ownerID, sectionID); err != nil {
				s.writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return

	case len(rest) == 3 && rest[0] == "sections" && rest[2] == "commands" && r.Method == http.MethodPost:
		var in CommandInput
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(in.Command) == "" {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "command is required", nil)
			return
		}
		result, err := s.service.RunCommand(ctx, ownerID, rest[1], in)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return

	case len(rest) == 3 && rest[0] == "sections" && rest[2] == "export" && r.Method == http.MethodGet:
		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "format must be html, pdf, docx or md", nil)
			return
		}
		result, err := s.service.Export(ctx, ownerID, rest[1], format)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return

	case len(rest) == 3 && rest[0] == "sections" && rest[2] == "assets" && r.Method == http.MethodPost:
		body := http.MaxBytesReader(w, r.Body, assets.MaxUploadBytes)
		defer body.Close()
		asset, err := s.service.UploadAsset(ctx, ownerID, rest[1],
			r.URL.Query().Get("name"), r.Header.Get("Content-Type"), body, r.ContentLength)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, asset)
		return

	case len(rest) == 1 && rest[0] == "save" && r.Method == http.MethodPost:
		state, err := s.service.FlushSession(ctx, ownerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SAVE_FAILED", "Saving failed", state)
			return
		}
		writeJSON(w, http.StatusOK, state)
		return

	case len(rest) == 1 && rest[0] == "history" && r.Method == http.MethodGet:
		items, err := s.service.History(ctx, ownerID, queryInt(r.URL.Query().Get("limit"), 50))
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return

	case len(rest) == 3 && rest[0] == "history" && rest[2] == "restore" && r.Method == http.MethodPost:
		sections, err := s.service.RestoreVersion(ctx, ownerID, rest[1], author)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": sections})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("code", code).Msg("request failed")
	}
	writeJSON(w, status, errorBody(code, message, details))
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		reqLog := s.log.With().Str("request_id", requestID).Logger()
		r = r.WithContext(reqLog.WithContext(r.Context()))

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		reqLog.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, X-ARP-Author")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorBody(code, message, details))
}

func errorBody(code, message string, details any) map[string]any {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	return response
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

// authorOf names the person a save is attributed to in history.
func authorOf(r *http.Request) string {
	if author := strings.TrimSpace(r.Header.Get("X-ARP-Author")); author != "" {
		return author
	}
	return "ARP"
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge, "TOO_LARGE", "Upload too large", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
