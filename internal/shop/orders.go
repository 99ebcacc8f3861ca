package shop

import (
	"fmt"
	"time"

	"github.com/dreamware/shopstore/internal/collection"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// Order document fields
const (
	OrderUserField     = "user"
	OrderItemsField    = "orderItems"
	OrderStatusField   = "status"
	OrderDateField     = "orderDate"
	OrderShippingField = "shippingInfo"
	OrderTotalField    = "total"
)

// StatusProcessing is the status of a newly placed order
const StatusProcessing = "Processing"

// OrderRequest is a cart being checked out. Prices and totals are computed
// by the caller and stored as given.
type OrderRequest struct {
	UserID       string         `json:"userId"`
	Items        []LineItem     `json:"cartItems"`
	ShippingInfo map[string]any `json:"shippingInfo,omitempty"`
	Total        float64        `json:"total"`
}

// OrdersOptions configure an Orders service
type OrdersOptions struct {
	RejectOversell bool             // Refuse orders that exceed stock instead of clamping
	Now            func() time.Time // Clock for orderDate, defaults to time.Now
}

// Orders places orders and keeps product stock in step with them
type Orders struct {
	orders   *collection.Collection
	products *collection.Collection
	opts     OrdersOptions
}

// NewOrders creates the service over the orders and products collections
func NewOrders(orders, products *collection.Collection, opts OrdersOptions) *Orders {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orders{orders: orders, products: products, opts: opts}
}

// PlaceOrder adjusts stock for every line item and then records the order
// with status Processing. With RejectOversell set, an order that any product
// cannot cover fails with *InsufficientStockError and changes nothing.
func (o *Orders) PlaceOrder(req OrderRequest) (collection.Document, []StockChange, error) {
	if req.UserID == "" {
		return nil, nil, fmt.Errorf("user id: %w", ErrMissingField)
	}

	adjust := AdjustStock
	if o.opts.RejectOversell {
		adjust = ReserveStock
	}
	var changes []StockChange
	err := retryOnConflict("adjust stock", func() error {
		var err error
		changes, err = adjust(o.products, req.Items)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	items := make([]map[string]any, len(req.Items))
	for i, item := range req.Items {
		items[i] = map[string]any{"id": item.ProductID, "quantity": item.Quantity}
	}
	fields := map[string]any{
		OrderUserField:     req.UserID,
		OrderItemsField:    items,
		OrderShippingField: req.ShippingInfo,
		OrderTotalField:    req.Total,
		OrderDateField:     o.opts.Now().Format("Jan 2, 2006"),
		OrderStatusField:   StatusProcessing,
	}
	var order collection.Document
	err = retryOnConflict("create order", func() error {
		var err error
		order, err = o.orders.Create(fields)
		return err
	})
	if err != nil {
		o.restock(changes)
		return nil, nil, fmt.Errorf("create order: %w", err)
	}

	zap.S().Infow("Order placed", "id", order.ID(), "user", req.UserID, "items", len(req.Items))
	return order, changes, nil
}

// restock gives back what a failed order took. The two collections cannot be
// written atomically, so a failure here is only logged.
func (o *Orders) restock(changes []StockChange) {
	err := retryOnConflict("restock", func() error {
		return o.products.Tx(func(tx *collection.Tx) error {
			return giveBack(tx, changes)
		})
	})
	if err != nil {
		zap.S().Errorw("Failed to restock after order failure; stock is now too low",
			"changes", changes,
			"error", err)
	}
}

func giveBack(tx *collection.Tx, changes []StockChange) error {
	for _, c := range changes {
		taken := c.Before - c.After
		if !c.Found || taken == 0 {
			continue
		}
		_, err := tx.Modify(c.ProductID, func(d collection.Document) (collection.Document, error) {
			d[StockField] = StockOf(d) + taken
			return d, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Get returns the order, or nil
func (o *Orders) Get(id string) (collection.Document, error) {
	return o.orders.FindByID(id)
}

// OrdersForUser returns the user's orders, newest first
func (o *Orders) OrdersForUser(userID string) ([]collection.Document, error) {
	docs, err := o.orders.Find(collection.Predicate{OrderUserField: userID})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(docs)
	return docs, nil
}

// AllOrders returns every order, newest first
func (o *Orders) AllOrders() ([]collection.Document, error) {
	docs, err := o.orders.Find(nil)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(docs)
	return docs, nil
}

// UpdateStatus sets the order status and returns the order, or nil if absent
func (o *Orders) UpdateStatus(id, status string) (collection.Document, error) {
	if status == "" {
		return nil, fmt.Errorf("status: %w", ErrMissingField)
	}
	return o.orders.FindByIDAndUpdate(id, map[string]any{OrderStatusField: status})
}

func createdAt(d collection.Document) time.Time {
	s, _ := d[collection.CreatedAtField].(string)
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func sortNewestFirst(docs []collection.Document) {
	slices.SortStableFunc(docs, func(a, b collection.Document) int {
		return createdAt(b).Compare(createdAt(a))
	})
}
