package repositories

import (
	"clothify/internal/models"
)

// OrderRepository defines the interface for order data access. Orders are
// write-once: there is no update or delete.
type OrderRepository interface {
	GetAll() ([]models.Order, error)
	GetByID(id string) (*models.Order, error)
	Create(order *models.Order) error
}
