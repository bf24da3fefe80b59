package shipping

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"storefront/internal/catalog"
	"storefront/internal/order"
)

// Default shipping attributes used when a product record or one of its
// dimensions is missing. Weight in kilograms, dimensions in centimeters.
const (
	DefaultWeight  = 0.5
	DefaultLength  = 10
	DefaultBreadth = 10
	DefaultHeight  = 5
)

// Carrier APIs reject zero or sub-minimum packages, so aggregated values are
// clamped to these floors.
const (
	MinWeight  = 0.5
	MinLength  = 10
	MinBreadth = 10
	MinHeight  = 5
)

// Package is the shippable bounding box computed for one sync attempt. It
// is derived per call and never persisted.
type Package struct {
	Weight  float64 `json:"weight"`
	Length  float64 `json:"length"`
	Breadth float64 `json:"breadth"`
	Height  float64 `json:"height"`
}

type Calculator struct {
	products catalog.Repository
}

func NewCalculator(products catalog.Repository) *Calculator {
	return &Calculator{products: products}
}

// Compute aggregates the line items into one package: weight and height sum
// across units (items are modeled as stackable), length and breadth take the
// largest footprint. Missing products or attributes degrade to defaults; the
// result is always a valid package, never an error.
func (c *Calculator) Compute(ctx context.Context, items []order.Item) Package {
	var pkg Package

	for _, item := range items {
		weight, length, breadth, height := c.itemDimensions(ctx, item)

		qty := float64(item.Quantity)
		pkg.Weight += weight * qty
		pkg.Height += height * qty
		if length > pkg.Length {
			pkg.Length = length
		}
		if breadth > pkg.Breadth {
			pkg.Breadth = breadth
		}
	}

	if pkg.Weight < MinWeight {
		pkg.Weight = MinWeight
	}
	if pkg.Length < MinLength {
		pkg.Length = MinLength
	}
	if pkg.Breadth < MinBreadth {
		pkg.Breadth = MinBreadth
	}
	if pkg.Height < MinHeight {
		pkg.Height = MinHeight
	}

	return pkg
}

func (c *Calculator) itemDimensions(ctx context.Context, item order.Item) (weight, length, breadth, height float64) {
	weight, length, breadth, height = DefaultWeight, DefaultLength, DefaultBreadth, DefaultHeight

	product, err := c.products.GetByID(ctx, item.ProductID)
	if err != nil {
		if !errors.Is(err, catalog.ErrProductNotFound) {
			log.Warn().Err(err).Stringer("product_id", item.ProductID).Msg("shipping: product lookup failed, using default dimensions")
		}
		return
	}

	if product.Weight != nil && *product.Weight > 0 {
		weight = *product.Weight
	}
	if product.Length != nil && *product.Length > 0 {
		length = *product.Length
	}
	if product.Breadth != nil && *product.Breadth > 0 {
		breadth = *product.Breadth
	}
	if product.Height != nil && *product.Height > 0 {
		height = *product.Height
	}
	return
}
