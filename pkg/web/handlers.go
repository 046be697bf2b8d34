package web

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-narrate/pkg/narration"
)

// NarrateRequest is the body of POST /api/narrate.
type NarrateRequest struct {
	RecordID string `json:"recordId"`
}

// NarrateResponse is returned on success.
type NarrateResponse struct {
	Message  string `json:"message"`
	AudioURL string `json:"audioUrl"`
	RecordID string `json:"recordId"`
}

// ErrorResponse is returned on failure.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

func (s *Server) handleNarrate(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		c.Set(fiber.HeaderAllow, fiber.MethodPost)
		return c.Status(fiber.StatusMethodNotAllowed).JSON(ErrorResponse{
			Message: "Method not allowed",
		})
	}

	var req NarrateRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || strings.TrimSpace(req.RecordID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "recordId is required",
		})
	}
	recordID := strings.TrimSpace(req.RecordID)

	res, err := s.narrator.Process(c.UserContext(), recordID)
	if err != nil {
		kind := narration.Classify(err)
		resp := ErrorResponse{
			Message: "Failed to generate narration",
			Error:   err.Error(),
		}
		if s.cfg.DetailedStatus {
			resp.Kind = kind
		}
		return c.Status(s.statusFor(kind)).JSON(resp)
	}

	return c.JSON(NarrateResponse{
		Message:  "Audio generated and record updated",
		AudioURL: res.AudioURL,
		RecordID: res.RecordID,
	})
}

// statusFor maps a failure kind to an HTTP status.
func (s *Server) statusFor(kind string) int {
	if !s.cfg.DetailedStatus {
		return fiber.StatusInternalServerError
	}
	switch kind {
	case narration.KindRecordNotFound:
		return fiber.StatusNotFound
	case narration.KindEmptyScript:
		return fiber.StatusUnprocessableEntity
	case narration.KindConnection, narration.KindProtocol, narration.KindEmptyAudio, narration.KindRecordStore:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":  "ok",
		"version": s.cfg.Version,
	}
	if c.Query("deep") == "" || c.Query("deep") == "0" {
		return c.JSON(resp)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.HealthTimeout)
	defer cancel()
	if err := s.narrator.Health(ctx); err != nil {
		s.log.Warn("deep health check failed", "error", err)
		resp["status"] = "degraded"
		resp["provider"] = err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	resp["provider"] = "ok"
	return c.JSON(resp)
}
