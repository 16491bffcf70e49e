package handlers

import (
	"log"

	"clothify/pkg/captcha"

	"github.com/gofiber/fiber/v2"
)

// CaptchaHandler handles bot-mitigation challenge verification.
type CaptchaHandler struct {
	recaptcha *captcha.Verifier
	turnstile *captcha.Verifier
}

// NewCaptchaHandler creates a new CaptchaHandler.
func NewCaptchaHandler(recaptcha, turnstile *captcha.Verifier) *CaptchaHandler {
	return &CaptchaHandler{
		recaptcha: recaptcha,
		turnstile: turnstile,
	}
}

// RegisterRoutes registers the challenge verification routes.
func (h *CaptchaHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/captcha", h.verifyWith(h.recaptcha, true))
	router.Post("/turnstile", h.verifyWith(h.turnstile, false))
}

// CaptchaRequest represents a challenge verification request.
type CaptchaRequest struct {
	Token string `json:"token"`
}

// verifyWith builds a handler around one verifier. A transport failure from
// the verification endpoint is a denial, never a silent approval.
func (h *CaptchaHandler) verifyWith(v *captcha.Verifier, withScore bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req CaptchaRequest
		if err := c.BodyParser(&req); err != nil || req.Token == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Token is required",
			})
		}

		result, err := v.Verify(c.Context(), req.Token)
		if err != nil {
			log.Printf("Challenge verification failed: %v", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"success": false,
				"error":   "Verification service unavailable",
			})
		}

		if !result.Success {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
			})
		}

		resp := fiber.Map{"success": true}
		if withScore {
			resp["score"] = result.Score
		}
		return c.JSON(resp)
	}
}
