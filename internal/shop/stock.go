package shop

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dreamware/shopstore/internal/collection"
	"go.uber.org/zap"
)

// StockField is the product field holding the units on hand
const StockField = "stocks"

// LineItem is one product and quantity in a cart or order
type LineItem struct {
	ProductID string `json:"id"`
	Quantity  int    `json:"quantity"`
}

// StockChange records what an adjustment did to one product
type StockChange struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Before    int    `json:"before"`
	After     int    `json:"after"`
	Found     bool   `json:"found"` // false if no product has the id; nothing was changed
}

// Clamped reports whether the product had fewer units than requested
func (c StockChange) Clamped() bool {
	return c.Found && c.Before < c.Requested
}

// AdjustStock decrements the stock of every item, never below zero.
// All items are applied in one transaction on the products collection, so
// concurrent adjustments of the same product are never lost. Unknown
// products are skipped and reported with Found set to false.
func AdjustStock(products *collection.Collection, items []LineItem) ([]StockChange, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}

	var changes []StockChange
	err := products.Tx(func(tx *collection.Tx) error {
		changes = make([]StockChange, 0, len(items))
		for _, item := range items {
			change, err := decrement(tx, item)
			if err != nil {
				return err
			}
			if change.Clamped() {
				zap.S().Warnw("Stock clamped at zero",
					"product", change.ProductID,
					"requested", change.Requested,
					"available", change.Before)
			}
			changes = append(changes, change)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// ReserveStock is AdjustStock for callers that refuse to oversell: if any
// product has fewer units than requested nothing is changed and an
// *InsufficientStockError is returned. The check and the decrement happen
// under the same lock.
func ReserveStock(products *collection.Collection, items []LineItem) ([]StockChange, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}

	var changes []StockChange
	err := products.Tx(func(tx *collection.Tx) error {
		// one product may appear on several lines
		requested := make(map[string]int, len(items))
		order := make([]string, 0, len(items))
		for _, item := range items {
			if _, seen := requested[item.ProductID]; !seen {
				order = append(order, item.ProductID)
			}
			requested[item.ProductID] += item.Quantity
		}
		for _, id := range order {
			d := tx.FindByID(id)
			if d == nil {
				continue
			}
			if available := StockOf(d); available < requested[id] {
				return &InsufficientStockError{ProductID: id, Requested: requested[id], Available: available}
			}
		}

		changes = make([]StockChange, 0, len(items))
		for _, item := range items {
			change, err := decrement(tx, item)
			if err != nil {
				return err
			}
			changes = append(changes, change)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func decrement(tx *collection.Tx, item LineItem) (StockChange, error) {
	change := StockChange{ProductID: item.ProductID, Requested: item.Quantity}
	_, err := tx.Modify(item.ProductID, func(d collection.Document) (collection.Document, error) {
		change.Found = true
		change.Before = StockOf(d)
		change.After = max(0, change.Before-item.Quantity)
		d[StockField] = change.After
		return d, nil
	})
	if err != nil {
		return change, fmt.Errorf("adjust stock of %s: %w", item.ProductID, err)
	}
	return change, nil
}

func validateItems(items []LineItem) error {
	for i, item := range items {
		if item.ProductID == "" {
			return fmt.Errorf("line item %d: product id: %w", i, ErrMissingField)
		}
		if item.Quantity < 0 {
			return fmt.Errorf("line item %d: quantity %d: %w", i, item.Quantity, ErrInvalidQuantity)
		}
	}
	return nil
}

// StockOf returns the product's stock as an integer. Numeric strings are
// parsed; missing, negative or non-numeric values count as zero.
func StockOf(product collection.Document) int {
	var n float64
	switch v := product[StockField].(type) {
	case float64:
		n = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}
	if math.IsNaN(n) || n <= 0 {
		return 0
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}
