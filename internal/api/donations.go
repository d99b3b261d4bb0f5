package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/safar/storefront/internal/models"
)

func (h *handler) createDonation(w http.ResponseWriter, r *http.Request) {
	var req createDonationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.UnitValue.IsNegative() {
		h.respondError(w, r, http.StatusBadRequest, "unitValue must not be negative")
		return
	}

	donatedAt := time.Now().UTC()
	if req.DonatedAt != nil {
		donatedAt = *req.DonatedAt
	}

	donation, err := h.repo.CreateDonation(r.Context(), &models.Donation{
		ProductName:    req.ProductName,
		ProductSKU:     req.ProductSKU,
		Quantity:       req.Quantity,
		UnitValue:      req.UnitValue,
		FireDepartment: req.FireDepartment,
		City:           req.City,
		State:          req.State,
		DonatedAt:      donatedAt,
		Notes:          req.Notes,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusCreated, donation)
}

func (h *handler) listDonations(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	result, err := h.repo.ListDonations(r.Context(), page, pageSize)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, result)
}

func (h *handler) getDonation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "Invalid donation ID")
	if !ok {
		return
	}

	donation, err := h.repo.GetDonation(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, donation)
}

func (h *handler) monthlyDonationStats(w http.ResponseWriter, r *http.Request) {
	months, _ := strconv.Atoi(r.URL.Query().Get("months"))
	if months < 1 || months > 36 {
		months = 12
	}

	stats, err := h.repo.MonthlyDonationStats(r.Context(), months)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, stats)
}
