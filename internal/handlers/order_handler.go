package handlers

import (
	"fmt"
	"log"
	"strings"

	"clothify/internal/models"
	"clothify/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes. Checkout is public; reads are
// back-office only.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, adminGate fiber.Handler) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/", adminGate, h.HandleGetOrders)
	orderRoutes.Get("/:id", adminGate, h.HandleGetOrderByID)
}

// HandleGetOrders retrieves all orders for the back office.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetAllOrders()
	if err != nil {
		log.Printf("Error getting all orders: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not retrieve orders",
		})
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.GetOrderByID(orderID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": fmt.Sprintf("Order with ID %s not found", orderID),
			})
		}
		log.Printf("Error getting order by ID %s: %v", orderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not retrieve order",
		})
	}
	return c.JSON(order)
}

// HandleCreateOrder creates a new order at checkout.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var orderRequest models.Order
	if err := c.BodyParser(&orderRequest); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.validate.Struct(orderRequest); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": validationMessage(err),
		})
	}

	createdOrder, err := h.service.CreateOrder(orderRequest)
	if err != nil {
		if strings.Contains(err.Error(), "insufficient stock") || strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		log.Printf("Error creating order: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create order",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ok": true,
		"id": createdOrder.ID,
	})
}
