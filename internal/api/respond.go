package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/safar/storefront/internal/checkout"
	"github.com/safar/storefront/internal/coupon"
	"github.com/safar/storefront/internal/database"
)

const maxBodyBytes = 1 << 20

func (h *handler) respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.requestLog(r).WithError(err).Error("encode JSON response")
	}
}

func (h *handler) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.respondJSON(w, r, status, map[string]string{"error": message})
}

type errorBody struct {
	Error           string `json:"error"`
	MinimumPurchase string `json:"minimumPurchase,omitempty"`
}

// respondServiceError maps domain errors onto HTTP statuses. Anything it
// does not recognise is logged and reported as a 500 without detail.
func (h *handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case coupon.IsRuleViolation(err):
		body := errorBody{Error: err.Error()}
		if minimum, ok := coupon.Minimum(err); ok {
			body.MinimumPurchase = minimum.StringFixed(2)
		}
		h.requestLog(r).WithError(err).Info("coupon rejected")
		h.respondJSON(w, r, http.StatusBadRequest, body)

	case errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrCouponNotFound),
		errors.Is(err, database.ErrDonationNotFound):
		h.respondError(w, r, http.StatusNotFound, err.Error())

	case errors.Is(err, database.ErrCouponExists),
		errors.Is(err, database.ErrStatusConflict):
		h.respondError(w, r, http.StatusConflict, err.Error())

	case checkout.IsInputError(err):
		h.requestLog(r).WithError(err).Warn("request rejected")
		h.respondError(w, r, http.StatusBadRequest, err.Error())

	default:
		h.requestLog(r).WithError(err).Error("request failed")
		h.respondError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and runs its validate tags. It writes
// the 400 response itself and returns false when the body is unusable.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			h.respondError(w, r, http.StatusBadRequest, describeValidation(verrs))
			return false
		}
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return false
	}

	return true
}

func describeValidation(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "min", "gt", "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
