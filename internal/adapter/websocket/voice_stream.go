package websocket

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/observability/telemetry"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

type VoiceStreamHandler struct {
	orchestrator ports.VoiceOrchestrator
	logger       *zap.Logger
}

func NewVoiceStreamHandler(orch ports.VoiceOrchestrator, logger *zap.Logger) *VoiceStreamHandler {
	return &VoiceStreamHandler{
		orchestrator: orch,
		logger:       logger,
	}
}

type textFrame struct {
	Text string `json:"text"`
}

// HandleVoiceStream runs one turn per frame. Binary frames are audio in
// the connection's format; text frames carry {"text": ...}.
func (h *VoiceStreamHandler) HandleVoiceStream(c *websocket.Conn) {
	userID, _ := c.Locals("user_id").(string)
	h.Stream(context.Background(), c, userID, c.Query("format", "webm"))
}

// Stream serves conn until it closes. Turns run one at a time, in order.
func (h *VoiceStreamHandler) Stream(ctx context.Context, conn Conn, userID, format string) {
	ctx, cancel := context.WithCancel(domain.WithUserID(ctx, userID))
	defer cancel()

	telemetry.ActiveStreams.Inc()
	defer telemetry.ActiveStreams.Dec()

	log := h.logger.With(zap.String("user_id", userID))
	format = strings.ToLower(format)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug("Voice stream closed", zap.Error(err))
			return
		}

		sub := domain.Submission{UserID: userID}
		switch messageType {
		case websocket.BinaryMessage:
			sub.Audio = &domain.Audio{Data: data, Format: format}
		case websocket.TextMessage:
			var frame textFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				h.reply(conn, log, fiber.Map{"error": "invalid frame"})
				continue
			}
			sub.Text = frame.Text
		default:
			continue
		}

		outcome, err := h.orchestrator.HandleTurn(ctx, sub)
		if err != nil {
			log.Warn("Turn rejected", zap.Error(err))
			if !h.reply(conn, log, fiber.Map{"error": err.Error()}) {
				return
			}
			continue
		}
		if !h.reply(conn, log, outcome) {
			return
		}
	}
}

func (h *VoiceStreamHandler) reply(conn Conn, log *zap.Logger, v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error("Failed to encode reply", zap.Error(err))
		return true
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Warn("Failed to send reply", zap.Error(err))
		return false
	}
	return true
}

// UpgradeRequired rejects plain HTTP requests on websocket routes.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// SetupRoutes mounts /ws/voice and /ws/events behind auth.
func SetupRoutes(app *fiber.App, auth fiber.Handler, voice *VoiceStreamHandler, hub *Hub) {
	ws := app.Group("/ws", UpgradeRequired, auth)
	ws.Get("/voice", websocket.New(voice.HandleVoiceStream))
	ws.Get("/events", websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("user_id").(string)
		hub.Serve(c, userID)
	}))
}
