package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

func (h *handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.CartTotal.IsNegative() {
		h.respondError(w, r, http.StatusBadRequest, "cartTotal must not be negative")
		return
	}

	result, err := h.coupons.Validate(r.Context(), req.CouponCode, req.CartTotal, req.Email)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, validateCouponResponse{
		Code:           result.Coupon.Code,
		DiscountAmount: result.DiscountAmount.StringFixed(2),
		DiscountType:   result.Coupon.DiscountType,
		DiscountValue:  result.Coupon.DiscountValue.String(),
	})
}

func (h *handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.DiscountValue.IsNegative() {
		h.respondError(w, r, http.StatusBadRequest, "discountValue must not be negative")
		return
	}
	if req.MinimumPurchase != nil && req.MinimumPurchase.IsNegative() {
		h.respondError(w, r, http.StatusBadRequest, "minimumPurchase must not be negative")
		return
	}
	if req.ValidFrom != nil && req.ValidUntil != nil && req.ValidUntil.Before(*req.ValidFrom) {
		h.respondError(w, r, http.StatusBadRequest, "validUntil must not be before validFrom")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	created, err := h.repo.CreateCoupon(r.Context(), &models.Coupon{
		Code:                   req.Code,
		Description:            req.Description,
		DiscountType:           req.DiscountType,
		DiscountValue:          req.DiscountValue,
		MinimumPurchase:        req.MinimumPurchase,
		MaximumUses:            req.MaximumUses,
		MaximumUsesPerCustomer: req.MaximumUsesPerCustomer,
		ValidFrom:              req.ValidFrom,
		ValidUntil:             req.ValidUntil,
		IsActive:               active,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.requestLog(r).WithField("coupon", created.Code).Info("coupon created")
	h.respondJSON(w, r, http.StatusCreated, created)
}

func (h *handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	result, err := h.repo.ListCoupons(r.Context(), page, pageSize)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, result)
}

// getCoupon returns a coupon regardless of its active flag, with its
// current usage count.
func (h *handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.repo.GetCoupon(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, c)
}

func (h *handler) deactivateCoupon(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.repo.DeactivateCoupon(r.Context(), code); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.requestLog(r).WithField("coupon", code).Info("coupon deactivated")
	w.WriteHeader(http.StatusNoContent)
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return store.NormalizePage(page, pageSize)
}
