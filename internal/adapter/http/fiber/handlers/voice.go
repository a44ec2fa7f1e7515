package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/ports"
	"github.com/seu-repo/hiya-assistant/internal/service/orchestrator"
)

// maxAudioBytes bounds a single uploaded utterance.
const maxAudioBytes = 10 << 20

type VoiceHandler struct {
	orchestrator ports.VoiceOrchestrator
	ledger       ports.SessionLedger
	audio        ports.AudioStore
	log          *zap.Logger
}

func NewVoiceHandler(orch ports.VoiceOrchestrator, ledger ports.SessionLedger, audio ports.AudioStore, log *zap.Logger) *VoiceHandler {
	return &VoiceHandler{
		orchestrator: orch,
		ledger:       ledger,
		audio:        audio,
		log:          log,
	}
}

// TurnRequest is the JSON form of a turn. Audio is base64.
type TurnRequest struct {
	Text       string `json:"text"`
	Audio      string `json:"audio"`
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	Language   string `json:"language"`
}

// SubmitTurn accepts JSON {text} or {audio, format}, or a multipart form
// with an "audio" file.
func (h *VoiceHandler) SubmitTurn(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	sub, err := h.submission(c, userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	outcome, err := h.orchestrator.HandleTurn(c.UserContext(), sub)
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptySubmission) || errors.Is(err, orchestrator.ErrNoUser) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.Error("Failed to handle turn", zap.String("user_id", userID), zap.Error(err))
		return err
	}

	return c.JSON(outcome)
}

func (h *VoiceHandler) submission(c *fiber.Ctx, userID string) (domain.Submission, error) {
	sub := domain.Submission{UserID: userID}

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fh, err := c.FormFile("audio")
		if err != nil {
			return sub, errors.New("multipart field \"audio\" is required")
		}
		if fh.Size > maxAudioBytes {
			return sub, errors.New("audio too large")
		}
		f, err := fh.Open()
		if err != nil {
			return sub, err
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxAudioBytes))
		if err != nil {
			return sub, err
		}
		format := c.FormValue("format")
		if format == "" {
			format = strings.TrimPrefix(strings.ToLower(filepath.Ext(fh.Filename)), ".")
		}
		sub.Audio = &domain.Audio{Data: data, Format: format, Language: c.FormValue("language")}
		return sub, nil
	}

	var req TurnRequest
	if err := c.BodyParser(&req); err != nil {
		return sub, errors.New("invalid request body")
	}
	if req.Audio != "" {
		data, err := base64.StdEncoding.DecodeString(req.Audio)
		if err != nil {
			return sub, errors.New("invalid base64 audio")
		}
		if len(data) > maxAudioBytes {
			return sub, errors.New("audio too large")
		}
		sub.Audio = &domain.Audio{
			Data:       data,
			Format:     strings.ToLower(req.Format),
			SampleRate: req.SampleRate,
			Language:   req.Language,
		}
		return sub, nil
	}
	sub.Text = req.Text
	return sub, nil
}

// History returns the caller's turns, newest first.
func (h *VoiceHandler) History(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	return h.history(c, userID)
}

// UserHistory is the admin view of any user's turns.
func (h *VoiceHandler) UserHistory(c *fiber.Ctx) error {
	return h.history(c, c.Params("id"))
}

func (h *VoiceHandler) history(c *fiber.Ctx, userID string) error {
	turns, err := h.ledger.History(c.UserContext(), userID, c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	return c.JSON(fiber.Map{"turns": turns})
}

// Session returns the pending clarification, if any.
func (h *VoiceHandler) Session(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	pending, err := h.ledger.GetPendingClarification(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"pending": pending})
}

func (h *VoiceHandler) ClearSession(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	return h.clear(c, userID)
}

func (h *VoiceHandler) ClearUserSession(c *fiber.Ctx) error {
	return h.clear(c, c.Params("id"))
}

func (h *VoiceHandler) clear(c *fiber.Ctx, userID string) error {
	if err := h.ledger.ClearSession(c.UserContext(), userID); err != nil {
		return err
	}
	h.log.Info("Session cleared", zap.String("user_id", userID))
	return c.SendStatus(fiber.StatusNoContent)
}

// Audio serves a synthesized reply while it is still cached.
func (h *VoiceHandler) Audio(c *fiber.Ctx) error {
	data, contentType, err := h.audio.Load(c.UserContext(), c.Params("id"))
	if errors.Is(err, ports.ErrAudioNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "audio not found")
	}
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	return c.Send(data)
}
