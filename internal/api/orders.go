package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/storefront/internal/checkout"
)

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := checkout.CreateOrderInput{
		CustomerEmail:   req.CustomerEmail,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress.model(),
		BillingAddress:  req.ShippingAddress.model(),
		ShippingCost:    req.ShippingCost,
		Tax:             req.Tax,
		CouponCode:      req.CouponCode,
		Notes:           req.Notes,
	}
	if req.BillingAddress != nil {
		in.BillingAddress = req.BillingAddress.model()
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, checkout.LineItemInput{
			ProductID: item.ProductID,
			Name:      item.Name,
			SKU:       item.SKU,
			Category:  item.Category,
			Image:     item.Image,
			UnitPrice: string(item.Price),
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orders.CreateOrder(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusCreated, createOrderResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Total:       order.Total.StringFixed(2),
	})
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	result, err := h.repo.ListOrders(r.Context(), q.Get("email"), q.Get("cursor"), limit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, result)
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "Invalid order ID")
	if !ok {
		return
	}

	order, err := h.repo.GetOrder(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, order)
}

func (h *handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "Invalid order ID")
	if !ok {
		return
	}

	var req updateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, order)
}

func (h *handler) claimNextOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.ClaimNextPaidOrder(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, order)
}

func (h *handler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	url, err := h.orders.CreateCheckoutSession(r.Context(), req.OrderID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, checkoutSessionResponse{CheckoutURL: url})
}

func (h *handler) verifySession(w http.ResponseWriter, r *http.Request) {
	var req verifySessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	status, err := h.orders.VerifyAndRecord(r.Context(), req.OrderID, req.SessionID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, verifySessionResponse{PaymentStatus: status})
}

func (h *handler) idParam(w http.ResponseWriter, r *http.Request, message string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		h.respondError(w, r, http.StatusBadRequest, message)
		return 0, false
	}
	return id, true
}
