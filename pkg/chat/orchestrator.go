// Package chat sequences a single conversation turn: persist the user
// message, replay the mapped history to the completion API, persist the
// assistant reply.
package chat

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/openai/openai-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/madlen/chat-backend/internal/observability"
	"github.com/madlen/chat-backend/internal/tracing"
	"github.com/madlen/chat-backend/pkg/history"
	"github.com/madlen/chat-backend/pkg/openrouter"
)

const tracerName = "madlen.chat"

// noResponseText substitutes for an assistant reply the API did not return.
// The turn still succeeds; an empty completion is not an error.
const noResponseText = "No response"

// Ledger is the slice of the history store a turn needs.
type Ledger interface {
	Append(ctx context.Context, sessionID string, draft history.Draft) (*history.SessionHistory, error)
}

// Completer is the slice of the gateway a turn needs.
type Completer interface {
	Complete(ctx context.Context, req openrouter.CompletionRequest) (*openai.ChatCompletion, error)
}

// TurnRequest is one incoming chat turn. An empty SessionID starts a new
// conversation.
type TurnRequest struct {
	SessionID   string
	Model       string
	Message     string
	ImageURLs   []string
	Temperature *float64
}

// TurnResult is the outcome of a completed turn.
type TurnResult struct {
	SessionID string          `json:"sessionId"`
	Message   history.Message `json:"message"`
}

// Orchestrator runs chat turns against the ledger and the gateway.
type Orchestrator struct {
	ledger       Ledger
	gateway      Completer
	logger       zerolog.Logger
	newSessionID func() (string, error)
}

// New creates an Orchestrator.
func New(ledger Ledger, gateway Completer, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		ledger:       ledger,
		gateway:      gateway,
		logger:       logger.With().Str("component", "chat").Logger(),
		newSessionID: func() (string, error) { return gonanoid.New() },
	}
}

// HandleTurn runs one turn. The user message is durably appended before the
// completion call, so a gateway failure leaves it persisted and visible;
// only the assistant reply is lost in that case.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	// A disconnecting caller must not cancel the completion call or roll
	// back ledger writes mid-turn.
	ctx = context.WithoutCancel(ctx)

	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"chat",
		attribute.String("chat.model", req.Model),
		attribute.Bool("chat.has_images", len(req.ImageURLs) > 0),
	)
	defer span.End()
	if req.Temperature != nil {
		span.SetAttributes(attribute.Float64("chat.temperature", *req.Temperature))
	}

	start := time.Now()
	defer func() {
		observability.RecordTurnDuration(time.Since(start))
	}()

	if req.Model == "" || req.Message == "" {
		err := &ValidationError{Msg: "model and message are required"}
		span.SetStatus(codes.Error, err.Error())
		observability.IncChatTurn("invalid")
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		id, err := o.newSessionID()
		if err != nil {
			observability.IncChatTurn("error")
			return nil, fmt.Errorf("mint session id: %w", err)
		}
		sessionID = id
	}
	ctx = tracing.WithSessionID(ctx, sessionID)
	span.SetAttributes(attribute.String("chat.session_id", sessionID))
	logger := tracing.LoggerFromContext(ctx, o.logger)

	session, err := o.ledger.Append(ctx, sessionID, history.Draft{
		Role:      history.RoleUser,
		Content:   req.Message,
		Model:     req.Model,
		ImageURLs: req.ImageURLs,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.IncChatTurn("store_error")
		return nil, err
	}

	completion, err := o.gateway.Complete(ctx, openrouter.CompletionRequest{
		Model:       req.Model,
		Messages:    openrouter.MapHistory(session.Messages),
		Temperature: req.Temperature,
	})
	if err != nil {
		// The user message from above stays persisted on purpose.
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.IncChatTurn("upstream_error")
		logger.Warn().Err(err).Msg("Completion call failed, user message retained")
		return nil, err
	}

	reply := noResponseText
	if len(completion.Choices) > 0 && completion.Choices[0].Message.Content != "" {
		reply = completion.Choices[0].Message.Content
	}

	session, err = o.ledger.Append(ctx, sessionID, history.Draft{
		Role:    history.RoleAssistant,
		Content: reply,
		Model:   req.Model,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.IncChatTurn("store_error")
		return nil, err
	}

	assistant := session.Messages[len(session.Messages)-1]
	span.AddEvent("assistant_reply")
	span.SetAttributes(attribute.Int("chat.reply_length", len(assistant.Content)))
	observability.IncChatTurn("ok")

	logger.Info().
		Str("model", req.Model).
		Int("messages", len(session.Messages)).
		Msg("Chat turn completed")

	return &TurnResult{SessionID: sessionID, Message: assistant}, nil
}
