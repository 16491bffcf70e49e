package handlers

import (
	"log"
	"strings"

	"clothify/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AccountHandler handles back-office account management requests.
type AccountHandler struct {
	service  *services.AccountService
	validate *validator.Validate
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(service *services.AccountService) *AccountHandler {
	return &AccountHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the back-office account routes. Everything here
// sits behind the admin gate.
func (h *AccountHandler) RegisterRoutes(router fiber.Router, adminGate fiber.Handler) {
	adminRoutes := router.Group("/admin", adminGate)
	adminRoutes.Post("/invitations", h.HandleInviteEmployee)
	adminRoutes.Delete("/members/:id", h.HandleDeleteMember)
}

// InviteRequest represents an employee invitation request.
type InviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleInviteEmployee emails an invitation token to a prospective employee.
func (h *AccountHandler) HandleInviteEmployee(c *fiber.Ctx) error {
	var req InviteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": validationMessage(err),
		})
	}

	token, err := h.service.InviteEmployee(req.Email)
	if err != nil {
		if strings.Contains(err.Error(), "already registered") {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		log.Printf("Error inviting employee %s: %v", req.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not send invitation",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Invitation sent successfully",
		"token":   token,
	})
}

// HandleDeleteMember removes a member account by ID.
func (h *AccountHandler) HandleDeleteMember(c *fiber.Ctx) error {
	memberID := c.Params("id")
	if err := h.service.DeleteMember(memberID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Member not found",
			})
		}
		log.Printf("Error deleting member %s: %v", memberID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete member",
		})
	}
	return c.JSON(fiber.Map{
		"message": "Member deleted successfully",
	})
}
