package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"clothify/internal/models"
	"clothify/internal/repositories"
	"clothify/pkg/rabbitmq"

	"github.com/google/uuid"
)

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	mqClient    *rabbitmq.Client
}

// NewOrderService creates a new OrderService.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, mqClient *rabbitmq.Client) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		mqClient:    mqClient,
	}
}

// GetAllOrders retrieves all orders.
func (s *OrderService) GetAllOrders() ([]models.Order, error) {
	return s.orderRepo.GetAll()
}

// GetOrderByID retrieves a single order by its ID.
func (s *OrderService) GetOrderByID(id string) (*models.Order, error) {
	return s.orderRepo.GetByID(id)
}

// CreateOrder creates a new order at checkout. Line items are priced from
// the catalogue and the total is computed server-side, so the stored total
// always matches the sum of its items regardless of what the client sent.
// Stock is reserved before the order is persisted: DecrementStock only
// succeeds while enough stock remains, so two concurrent checkouts cannot
// both claim the last units.
func (s *OrderService) CreateOrder(orderRequest models.Order) (*models.Order, error) {
	var totalAmount float64
	var processedItems []models.OrderItem

	for _, item := range orderRequest.Items {
		product, err := s.productRepo.GetByID(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %s not found: %w", item.ProductID, err)
		}

		processedItems = append(processedItems, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     product.Price, // Price at the time of order creation
		})
		totalAmount += product.Price * float64(item.Quantity)
	}

	reserved, err := s.reserveStock(processedItems)
	if err != nil {
		s.releaseStock(reserved)
		return nil, err
	}

	newOrder := &models.Order{
		ID:            uuid.New().String(),
		CustomerName:  orderRequest.CustomerName,
		CustomerEmail: orderRequest.CustomerEmail,
		Items:         processedItems,
		TotalAmount:   totalAmount,
		Status:        "pending",
		CreatedAt:     time.Now(),
	}

	if err := s.orderRepo.Create(newOrder); err != nil {
		s.releaseStock(reserved)
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}

	s.publishOrderCreated(newOrder)

	return newOrder, nil
}

// reserveStock decrements stock for each line item, returning the items that
// were reserved so far. On failure the caller must release them.
func (s *OrderService) reserveStock(items []models.OrderItem) ([]models.OrderItem, error) {
	var reserved []models.OrderItem
	for _, item := range items {
		if err := s.productRepo.DecrementStock(item.ProductID, item.Quantity); err != nil {
			return reserved, err
		}
		reserved = append(reserved, item)
	}
	return reserved, nil
}

// releaseStock returns reserved stock after a failed checkout.
func (s *OrderService) releaseStock(reserved []models.OrderItem) {
	for _, item := range reserved {
		if err := s.productRepo.IncrementStock(item.ProductID, item.Quantity); err != nil {
			log.Printf("Warning: failed to release reserved stock for product %s: %v", item.ProductID, err)
		}
	}
}

// publishOrderCreated emits an order.created event for back-office consumers.
// Publish failures are logged, not fatal: the order is already persisted.
func (s *OrderService) publishOrderCreated(order *models.Order) {
	if s.mqClient == nil {
		log.Println("RabbitMQ client is not initialized. Skipping order event publication.")
		return
	}

	event := map[string]interface{}{
		"order_id":       order.ID,
		"customer_email": order.CustomerEmail,
		"status":         order.Status,
		"total":          order.TotalAmount,
	}
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal order event: %v", err)
		return
	}

	if err := s.mqClient.PublishOrderEvent("order.created", body); err != nil {
		log.Printf("Warning: failed to publish order created event for order %s: %v", order.ID, err)
	}
}
