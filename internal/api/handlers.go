package api

import (
	"net/http"

	"github.com/example/ec-shop-core/internal/api/middleware"
	"github.com/example/ec-shop-core/internal/domain/cart"
	"github.com/example/ec-shop-core/internal/domain/order"
	"github.com/example/ec-shop-core/internal/domain/user"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	carts  *cart.Engine
	orders *order.Placement
}

func NewHandlers(carts *cart.Engine, orders *order.Placement) *Handlers {
	return &Handlers{
		carts:  carts,
		orders: orders,
	}
}

// Cart Handlers

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := cartOwner(w, r)
	if !ok {
		return
	}

	c, found, err := h.carts.Get(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	message := "Cart retrieved successfully"
	if !found {
		message = "Cart is empty"
	}
	respondSuccess(w, http.StatusOK, message, c)
}

func (h *Handlers) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := cartOwner(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, created, err := h.carts.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if created {
		respondSuccess(w, http.StatusCreated, "Cart created and item added", c)
		return
	}
	respondSuccess(w, http.StatusOK, "Cart updated successfully", c)
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := cartOwner(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.carts.UpdateItemQuantity(r.Context(), userID, chi.URLParam(r, "product_id"), req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Cart item updated", c)
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := cartOwner(w, r)
	if !ok {
		return
	}

	c, err := h.carts.RemoveItem(r.Context(), userID, chi.URLParam(r, "product_id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Item removed from cart", c)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := cartOwner(w, r)
	if !ok {
		return
	}

	if err := h.carts.Clear(r.Context(), userID); err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Cart cleared", nil)
}

// cartOwner returns the {user_id} path parameter when the caller owns that
// cart or is an admin.
func cartOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "user_id")
	if !canAccess(w, r, userID) {
		return "", false
	}
	return userID, true
}

// Order Handlers

type placeOrderRequest struct {
	UserID     string          `json:"user_id"`
	Products   []order.Item    `json:"products"`
	TotalPrice decimal.Decimal `json:"total_price"`
	OrderType  string          `json:"order_type"`
}

type updateOrderRequest struct {
	Status    *string `json:"status"`
	OrderType *string `json:"order_type"`
}

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		req.UserID = middleware.GetUserID(r.Context())
	}
	if !canAccess(w, r, req.UserID) {
		return
	}

	o, outcome, err := h.orders.Place(r.Context(), order.PlaceRequest{
		UserID:     req.UserID,
		Products:   req.Products,
		TotalPrice: req.TotalPrice,
		OrderType:  req.OrderType,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, outcome.Message(), o)
}

// GetOrders lists every order for admins and the caller's own orders
// otherwise.
func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	var (
		orders []order.Order
		err    error
	)
	if isAdmin(r) {
		orders, err = h.orders.List(r.Context())
	} else {
		orders, err = h.orders.ListByUser(r.Context(), middleware.GetUserID(r.Context()))
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Orders retrieved successfully", orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Users can only read their own orders; admins can read all.
	if !canAccess(w, r, o.UserID) {
		return
	}
	respondSuccess(w, http.StatusOK, "Order retrieved successfully", o)
}

func (h *Handlers) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.orders.Update(r.Context(), chi.URLParam(r, "id"), order.UpdateRequest{
		Status:    req.Status,
		OrderType: req.OrderType,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Order updated successfully", nil)
}

func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Order deleted successfully", nil)
}

// Helper functions

// canAccess reports whether the caller is ownerID or an admin, writing the
// failure response when not.
func canAccess(w http.ResponseWriter, r *http.Request, ownerID string) bool {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Missing authorization token", http.StatusUnauthorized)
		return false
	}
	if claims.UserID != ownerID && claims.Role != user.RoleAdmin {
		respondJSONError(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// isAdmin checks if the current user has admin role
func isAdmin(r *http.Request) bool {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return false
	}
	return claims.Role == user.RoleAdmin
}
