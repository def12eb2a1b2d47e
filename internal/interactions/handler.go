package interactions

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ops-wrangler/wrangler/internal/commands"
	"github.com/ops-wrangler/wrangler/internal/observability"
	"github.com/ops-wrangler/wrangler/internal/platform/httpx"
)

const (
	headerSignature = "X-Signature-Ed25519"
	headerTimestamp = "X-Signature-Timestamp"

	maxBodyBytes = 1 << 20
)

// HandlerConfig collects the webhook handler's dependencies.
type HandlerConfig struct {
	Logger    *slog.Logger
	PublicKey string
	// MaxAge bounds how old a signed timestamp may be; zero disables the
	// freshness and replay checks.
	MaxAge   time.Duration
	Replay   *ReplayGuard
	Registry *commands.Registry
	Metrics  *observability.Metrics
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Handler serves the stateless webhook channel. Every request is verified,
// parsed, dispatched and answered synchronously; nothing survives between
// requests except what the store persists.
type Handler struct {
	logger   *slog.Logger
	pubKey   string
	maxAge   time.Duration
	replay   *ReplayGuard
	registry *commands.Registry
	metrics  *observability.Metrics
	validate *validator.Validate
	now      func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		logger:   cfg.Logger,
		pubKey:   cfg.PublicKey,
		maxAge:   cfg.MaxAge,
		replay:   cfg.Replay,
		registry: cfg.Registry,
		metrics:  cfg.Metrics,
		validate: validator.New(),
		now:      now,
	}
}

// MountRoutes attaches the webhook endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/interactions", h.handleInteraction)
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleInteraction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httpx.JSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed payload"})
		return
	}

	signature := r.Header.Get(headerSignature)
	timestamp := r.Header.Get(headerTimestamp)
	if !VerifySignature(body, signature, timestamp, h.pubKey) {
		h.metrics.ObserveInteraction(observability.OutcomeRejected)
		httpx.JSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
		return
	}
	if !h.acceptTimestamp(r, timestamp, signature) {
		httpx.JSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
		return
	}
	h.metrics.ObserveInteraction(observability.OutcomeVerified)

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		httpx.JSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed payload"})
		return
	}

	switch payload.Type {
	case TypePing:
		httpx.JSON(w, http.StatusOK, map[string]int{"type": ResponsePong})
	case TypeApplicationCommand:
		h.dispatchCommand(w, r, &payload)
	default:
		httpx.JSON(w, http.StatusBadRequest, map[string]string{"error": "Unknown interaction type"})
	}
}

// acceptTimestamp applies the freshness window and replay guard after the
// signature itself has checked out. Disabled when no MaxAge is configured.
func (h *Handler) acceptTimestamp(r *http.Request, timestamp, signature string) bool {
	if h.maxAge <= 0 {
		return true
	}
	issued, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		h.metrics.ObserveInteraction(observability.OutcomeStale)
		return false
	}
	age := h.now().UTC().Sub(time.Unix(issued, 0))
	if age < -h.maxAge || age > h.maxAge {
		h.metrics.ObserveInteraction(observability.OutcomeStale)
		return false
	}
	fresh, err := h.replay.FirstUse(r.Context(), timestamp, signature)
	if err != nil {
		h.logger.Warn("replay guard unavailable", slog.Any("error", err))
	}
	if !fresh {
		h.metrics.ObserveInteraction(observability.OutcomeReplayed)
		return false
	}
	return true
}

func (h *Handler) dispatchCommand(w http.ResponseWriter, r *http.Request, payload *Payload) {
	if err := h.validate.Struct(payload); err != nil || payload.Data == nil {
		httpx.JSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed payload"})
		return
	}

	name := payload.Data.Name
	if !h.registry.Known(name) {
		h.metrics.ObserveCommand(name, "unimplemented")
		httpx.JSON(w, http.StatusOK, commandResponse(commands.Response{
			Content: "Command " + name + " is not yet implemented for user-installed apps",
		}))
		return
	}

	var actorID int64
	if raw := payload.ActorID(); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			actorID = parsed
		}
	}

	inv := commands.Invocation{
		ID:      uuid.NewString(),
		Name:    name,
		ActorID: actorID,
		Args:    payload.Data.OptionMap(),
	}
	response, err := h.registry.Dispatch(r.Context(), inv)
	if err != nil {
		if errors.Is(err, commands.ErrUnknownCommand) {
			h.metrics.ObserveCommand(name, "unimplemented")
			httpx.JSON(w, http.StatusOK, commandResponse(commands.Response{
				Content: "Command " + name + " is not yet implemented for user-installed apps",
			}))
			return
		}
		// A storage failure is isolated to this one request.
		h.logger.Error("dispatch interaction command",
			slog.String("invocation", inv.ID),
			slog.String("command", name),
			slog.Any("error", err))
		h.metrics.ObserveCommand(name, "error")
		httpx.JSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
		return
	}
	h.metrics.ObserveCommand(name, "ok")
	httpx.JSON(w, http.StatusOK, commandResponse(response))
}

type wireResponse struct {
	Type int      `json:"type"`
	Data wireData `json:"data"`
}

type wireData struct {
	Content string      `json:"content,omitempty"`
	Embeds  []wireEmbed `json:"embeds,omitempty"`
	Flags   int         `json:"flags,omitempty"`
}

type wireEmbed struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Type        string      `json:"type"`
	Fields      []wireField `json:"fields,omitempty"`
}

type wireField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

func commandResponse(response commands.Response) wireResponse {
	data := wireData{Content: response.Content}
	if response.Ephemeral {
		data.Flags = flagEphemeral
	}
	for _, embed := range response.Embeds {
		wire := wireEmbed{
			Title:       embed.Title,
			Description: embed.Description,
			Type:        "rich",
		}
		for _, field := range embed.Fields {
			wire.Fields = append(wire.Fields, wireField{Name: field.Name, Value: field.Value, Inline: field.Inline})
		}
		data.Embeds = append(data.Embeds, wire)
	}
	return wireResponse{Type: ResponseChannelMessage, Data: data}
}
