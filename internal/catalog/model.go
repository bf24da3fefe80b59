package catalog

import (
	"time"

	"github.com/gofrs/uuid"
)

// Product carries the subset of the catalog this service reads: identity,
// pricing for carrier payloads, and the physical shipping attributes the
// package calculator aggregates. Weight is in kilograms, dimensions in
// centimeters.
type Product struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	SKU       string    `json:"sku" db:"sku"`
	Price     float64   `json:"price" db:"price"`
	Weight    *float64  `json:"weight,omitempty" db:"weight"`
	Length    *float64  `json:"length,omitempty" db:"length"`
	Breadth   *float64  `json:"breadth,omitempty" db:"breadth"`
	Height    *float64  `json:"height,omitempty" db:"height"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
