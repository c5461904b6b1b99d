package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/ec-shop-core/internal/domain/catalog"
	"github.com/example/ec-shop-core/internal/domain/order"
	"github.com/example/ec-shop-core/internal/domain/user"
	"github.com/example/ec-shop-core/internal/email"
	"github.com/example/ec-shop-core/internal/infrastructure/journal"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mailer sends the order confirmation.
type Mailer interface {
	SendOrderConfirmation(to, orderID string, total decimal.Decimal, items []email.OrderItem) error
}

// Handler processes journal events for sending notifications
type Handler struct {
	mailer   Mailer
	users    user.Store
	products catalog.Store
	logger   *zap.Logger
}

// NewHandler creates a new notification handler. products may be nil, in
// which case items are listed by product id.
func NewHandler(mailer Mailer, users user.Store, products catalog.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		mailer:   mailer,
		users:    users,
		products: products,
		logger:   logger,
	}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event journal.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	// Only process OrderPlaced events
	if event.EventType == order.EventOrderPlaced {
		return h.handleOrderPlaced(ctx, event)
	}

	return nil
}

func (h *Handler) handleOrderPlaced(ctx context.Context, event journal.Event) error {
	var e order.OrderPlaced
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return fmt.Errorf("unmarshal OrderPlaced: %w", err)
	}

	log := h.logger.With(zap.String("order_id", e.OrderID), zap.String("user_id", e.UserID))
	log.Info("processing OrderPlaced")

	u, err := h.users.FindByID(ctx, e.UserID)
	if errors.Is(err, user.ErrUserNotFound) || errors.Is(err, user.ErrInvalidUserID) {
		log.Warn("order placed for unknown user")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user %s: %w", e.UserID, err)
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      h.productName(ctx, item.ProductID),
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}

	if err := h.mailer.SendOrderConfirmation(u.Email, e.OrderID, e.Total, items); err != nil {
		return err
	}

	log.Info("order confirmation sent", zap.String("email", u.Email))
	return nil
}

func (h *Handler) productName(ctx context.Context, productID string) string {
	if h.products == nil {
		return productID
	}
	p, err := h.products.FindProduct(ctx, productID)
	if err != nil {
		h.logger.Debug("product lookup failed", zap.String("product_id", productID), zap.Error(err))
		return productID
	}
	return p.Name
}
