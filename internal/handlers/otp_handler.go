package handlers

import (
	"errors"
	"log"

	"clothify/internal/repositories"
	"clothify/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OTPHandler handles HTTP requests for one-time password issuance and
// verification.
type OTPHandler struct {
	otpService *services.OTPService
	validate   *validator.Validate
}

// NewOTPHandler creates a new OTPHandler.
func NewOTPHandler(otpService *services.OTPService) *OTPHandler {
	return &OTPHandler{
		otpService: otpService,
		validate:   validator.New(),
	}
}

// RegisterRoutes registers the OTP routes with the Fiber app.
func (h *OTPHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/send", h.HandleSend)
	router.Post("/verify", h.HandleVerify)
}

// SendOTPRequest represents the request body for OTP issuance.
type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyOTPRequest represents the request body for OTP verification.
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// HandleSend issues a one-time code for the given email and delivers it
// out-of-band. Any previous code for the email stops validating.
func (h *OTPHandler) HandleSend(c *fiber.Ctx) error {
	var req SendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email is required",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid email address",
		})
	}

	if err := h.otpService.Issue(c.Context(), req.Email); err != nil {
		log.Printf("Error issuing OTP for %s: %v", req.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send OTP",
		})
	}

	return c.JSON(fiber.Map{
		"message": "OTP sent successfully",
	})
}

// HandleVerify checks a presented code. Absence/expiry and mismatch are
// reported distinctly; a matching code is consumed and cannot verify again.
func (h *OTPHandler) HandleVerify(c *fiber.Ctx) error {
	var req VerifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Email == "" || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and code are required",
		})
	}

	if err := h.otpService.Verify(c.Context(), req.Email, req.Code); err != nil {
		switch {
		case errors.Is(err, repositories.ErrOTPNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "OTP expired or not found",
			})
		case errors.Is(err, services.ErrCodeMismatch):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid code",
			})
		default:
			log.Printf("Error verifying OTP for %s: %v", req.Email, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to verify OTP",
			})
		}
	}

	return c.JSON(fiber.Map{
		"message": "OTP verified successfully",
	})
}
