package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/madlen/chat-backend/internal/tracing"
	"github.com/madlen/chat-backend/pkg/chat"
	"github.com/madlen/chat-backend/pkg/history"
	"github.com/madlen/chat-backend/pkg/uploads"
)

const tracerName = "madlen.httpapi"

// maxChatBodyBytes bounds the JSON chat request body, matching the upload
// cap of the original deployment.
const maxChatBodyBytes = uploads.DefaultMaxBytes

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeFailure maps an error from the core to a status code. Only the error
// message leaks to the client, never internal detail.
func writeFailure(w http.ResponseWriter, err error) {
	var validationErr *chat.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "env": s.options.Env})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	ctx, span := tracing.StartSpan(r.Context(), tracerName, "get-history")
	defer span.End()

	if sessionID == "" {
		span.SetAttributes(attribute.String("history.session_id", "missing"))
		writeError(w, http.StatusBadRequest, "sessionId query param is required")
		return
	}
	span.SetAttributes(attribute.String("history.session_id", sessionID))

	session, ok := s.store.Get(ctx, sessionID)
	if !ok {
		// Unknown sessions read as an empty conversation, not an error.
		span.SetAttributes(attribute.Int("history.message_count", 0))
		writeJSON(w, http.StatusOK, history.SessionHistory{
			SessionID: sessionID,
			Messages:  []history.Message{},
			UpdatedAt: time.Now().UTC(),
		})
		return
	}

	span.SetAttributes(attribute.Int("history.message_count", len(session.Messages)))
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, span := tracing.StartSpan(r.Context(), tracerName, "list-sessions")
	defer span.End()

	sessions := s.store.ListAll(ctx)
	span.SetAttributes(attribute.Int("sessions.count", len(sessions)))
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, span := tracing.StartSpan(r.Context(), tracerName, "get-models")
	defer span.End()

	models, cached, err := s.cache.Models(ctx)
	span.SetAttributes(attribute.Bool("models.cache_hit", cached))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		writeFailure(w, err)
		return
	}

	span.SetAttributes(attribute.Int("models.count", len(models)))
	writeJSON(w, http.StatusOK, models)
}

type chatRequest struct {
	SessionID   string   `json:"sessionId,omitempty"`
	Model       string   `json:"model"`
	Message     string   `json:"message"`
	ImageURLs   []string `json:"imageUrls,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, span := tracing.StartSpan(r.Context(), tracerName, "chat")
	defer span.End()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	if err := validateChatRequest(body); err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeFailure(w, err)
		return
	}

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	span.SetAttributes(
		attribute.String("chat.model", req.Model),
		attribute.Bool("chat.has_images", len(req.ImageURLs) > 0),
	)

	result, err := s.orchestrator.HandleTurn(ctx, chat.TurnRequest{
		SessionID:   req.SessionID,
		Model:       req.Model,
		Message:     req.Message,
		ImageURLs:   req.ImageURLs,
		Temperature: req.Temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		writeFailure(w, err)
		return
	}

	span.SetAttributes(attribute.String("chat.session_id", result.SessionID))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	_, span := tracing.StartSpan(r.Context(), tracerName, "upload")
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, s.uploads.MaxBytes()+(1<<20))
	if err := r.ParseMultipartForm(s.uploads.MaxBytes()); err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	url, err := s.uploads.Save(header.Filename, file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	span.SetAttributes(attribute.String("upload.url", url))
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
