package models

import "time"

// OrderItem represents a single line within an order.
type OrderItem struct {
	ProductID string  `json:"product_id" validate:"required"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	Price     float64 `json:"price"` // Catalogue price at the time of order
}

// Order represents a customer order. Orders are created once at checkout
// and never mutated or deleted afterwards.
type Order struct {
	ID            string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CustomerName  string      `json:"customer_name" validate:"required,min=2,max=100"`
	CustomerEmail string      `json:"customer_email" validate:"required,email"`
	Items         []OrderItem `json:"items" gorm:"serializer:json" validate:"required,min=1,dive"`
	TotalAmount   float64     `json:"total_amount"`
	Status        string      `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
}
