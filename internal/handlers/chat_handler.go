package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/beanbot/backend/internal/audit"
	mW "github.com/beanbot/backend/internal/middleware"
	"github.com/beanbot/backend/internal/services"
)

const maxBodyBytes = 1_048_576

// Transcriber turns a voice note into message text.
type Transcriber interface {
	Transcribe(ctx context.Context, req services.TranscribeRequest) (string, float32, error)
}

type ChatHandler struct {
	bot       *services.BotService
	voice     Transcriber
	audit     *audit.AuditLogger
	validator *services.ValidationHelper
}

func NewChatHandler(bot *services.BotService, voice Transcriber, auditLogger *audit.AuditLogger) *ChatHandler {
	return &ChatHandler{
		bot:       bot,
		voice:     voice,
		audit:     auditLogger,
		validator: services.NewValidationHelper(),
	}
}

// Routes mounts the per-user chat endpoints.
func (h *ChatHandler) Routes(r chi.Router) {
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Use(mW.UserContext)

		r.Post("/messages", h.SendMessage)
		r.Post("/callbacks", h.PressButton)
		r.Put("/messages/{messageID}/index", h.IndexMessage)
		r.Post("/voice", h.SendVoice)
		r.Post("/commands/start", h.Start)
		r.Post("/commands/config", h.Configure)
		r.Get("/export", h.Export)
		r.Delete("/ledger", h.Clear)
	})
}

type MessageRequest struct {
	Text      string     `json:"text" validate:"required"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type CallbackRequest struct {
	MessageID int64      `json:"message_id" validate:"required"`
	Data      string     `json:"data" validate:"required"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type IndexRequest struct {
	TransactionID int64  `json:"transaction_id" validate:"required,gt=0"`
	PostingID     *int64 `json:"posting_id,omitempty" validate:"omitempty,gt=0"`
}

type ConfigRequest struct {
	Args []string `json:"args"`
}

type VoiceResponse struct {
	Transcript string          `json:"transcript"`
	Confidence float32         `json:"confidence"`
	Reply      *services.Reply `json:"reply"`
}

// SendMessage handles a text message
// @Summary Send a chat message
// @Description Parse a message and apply it to the user's ledger
// @Tags Chat
// @Accept json
// @Produce json
// @Param userID path string true "Chat user ID"
// @Param request body MessageRequest true "Message"
// @Success 200 {object} services.Reply
// @Failure 400 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /users/{userID}/messages [post]
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := mW.UserIDFromContext(r.Context())

	var req MessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	reply, err := h.bot.HandleText(r.Context(), userID, req.Text, timestampOf(req.Timestamp))
	if err != nil {
		h.sendError(w, userID, err)
		return
	}
	sendJSON(w, http.StatusOK, reply)
}

// PressButton handles an inline keyboard press
// @Summary Press a keyboard button
// @Tags Chat
// @Accept json
// @Produce json
// @Param userID path string true "Chat user ID"
// @Param request body CallbackRequest true "Callback"
// @Success 200 {object} services.Reply
// @Failure 400 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /users/{userID}/callbacks [post]
func (h *ChatHandler) PressButton(w http.ResponseWriter, r *http.Request) {
	userID, _ := mW.UserIDFromContext(r.Context())

	var req CallbackRequest
	if !h.decode(w, r, &req) {
		return
	}

	reply, err := h.bot.HandleButton(r.Context(), userID, req.MessageID, req.Data, timestampOf(req.Timestamp))
	if err != nil {
		h.sendError(w, userID, err)
		return
	}
	sendJSON(w, http.StatusOK, reply)
}

// IndexMessage records which entities a sent message shows
// @Summary Index a sent message
// @Tags Chat
// @Accept json
// @Param userID path string true "Chat user ID"
// @Param messageID path int true "Chat message ID"
// @Param request body IndexRequest true "Entities shown by the message"
// @Success 204
// @Failure 400 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /users/{userID}/messages/{messageID}/index [put]
func (h *ChatHandler) IndexMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := mW.UserIDFromContext(r.Context())

	messageID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		services.SendErrorResponse(w, "Invalid message ID", http.StatusBadRequest, nil)
		return
	}

	var req IndexRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.bot.RecordMessage(r.Context(), userID, messageID, req.TransactionID, req.PostingID); err != nil {
		h.sendError(w, userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendVoice transcribes a voice note and handles it as a message
// @Summary Send a voice note
// @Tags Chat
// @Accept json
// @Produce json
// @Param userID path string true "Chat user ID"
// @Param request body services.TranscribeRequest true "Base64 audio"
// @Success 200 {object} VoiceResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /users/{userID}/voice [post]
func (h *ChatHandler) SendVoice(w http.ResponseWriter, r *http.Request) {
	userID, _ := mW.UserIDFromContext(r.Context())

	var req services.TranscribeRequest
	if !h.decode(w, r, &req) {
		return
	}

	transcript, confidence, err := h.voice.Transcribe(r.Context(), req)
	if err != nil {
		h.sendError(w, userID, err)
		return
	}

	reply, err := h.bot.HandleText(r.Context(), userID, transcript, time.Time{})
	if err != nil {
		h.sendError(w, userID, err)
		return
	}
	sendJSON(w, http.StatusOK, VoiceResponse{
		Transcript: transcript,
		Confidence: confidence,
		Reply:      reply,
	})
}

// Start greets the user
// @Summary Start command
// @Tags Commands
// @Produce json
// @Param userID path string true "Chat user ID"
// @Success 200 {object} services.Reply
// @Router /users/{userID}/commands/start [post]
func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, h.bot.Start())
}

// Configure runs the config command
// @Summary Config command
// @Tags Commands
// @Accept json
// @Produce json
// @Param userID path string true "Chat user ID"
// @Param request body ConfigRequest true "Command arguments"
// @Success 200 {object} services.Reply
// @Failure 422 {object} services.ErrorResponse
// @Router /users/{userID}/commands/config [post]
func (h *ChatHandler) Configure(w http.ResponseWriter, r *http.Request) {
	userID, _ := mW.UserIDFromContext(r.Context())

	var req ConfigRequest
	if !h.decode(w, r, &req) {
		return
	}

	reply, err := h.bot.Configure(r.Context(), userID, req.Args)
	if err != nil {
		h.sendError(w, userID, err)
		return
	}
	sendJSON(w, http.StatusOK, reply)
}

// Export downloads the user's transactions
// @Summary Export transactions as JSON
// @Tags Commands
// @Produce json
// @Param userID path string true "Chat user ID"
// @Success 200 {file} file
// @Failure 500 {object} services.ErrorResponse
// @Router /users/{userID}/export [get]
func (h *ChatHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, _ := mW.UserIDFromContext(r.Context())

	filename, data, err := h.bot.Export(r.Context(), userID)
	if err != nil {
		h.sendError(w, userID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Clear wipes the user's transactions
// @Summary Clear the ledger
// @Tags Commands
// @Produce json
// @Param userID path string true "Chat user ID"
// @Success 200 {object} services.Reply
// @Router /users/{userID}/ledger [delete]
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, _ := mW.UserIDFromContext(r.Context())

	reply, err := h.bot.Clear(r.Context(), userID)
	if err != nil {
		h.sendError(w, userID, err)
		return
	}
	sendJSON(w, http.StatusOK, reply)
}

func (h *ChatHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := h.validator.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

// sendError answers user errors verbatim and hides everything else behind a reference.
func (h *ChatHandler) sendError(w http.ResponseWriter, userID string, err error) {
	if ue, ok := services.AsUserError(err); ok {
		services.SendErrorResponse(w, ue.Msg, http.StatusUnprocessableEntity, nil)
		return
	}

	ref := uuid.NewString()
	log.Printf("[HTTP] Internal error for user %s (ref %s): %v", userID, ref, err)
	h.audit.LogError(userID, ref, err)
	services.SendErrorResponse(w, fmt.Sprintf("Internal error (ref %s)", ref), http.StatusInternalServerError, nil)
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func timestampOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
