package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/auth"
	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/payment"
	"github.com/xenking/foodcart/internal/domain/restaurant"
	"github.com/xenking/foodcart/pkg/httpmiddleware"
)

// badRequestError marks malformed request bodies and parameters.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return &badRequestError{msg: msg} }

// statusOf maps a domain error to its HTTP status and client message.
func statusOf(err error) (int, string) {
	var (
		invalidDish *cart.InvalidDishError
		bad         *badRequestError
	)
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.msg
	case errors.Is(err, auth.ErrNotAuthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "insufficient scope"
	case errors.As(err, &invalidDish):
		return http.StatusUnprocessableEntity, invalidDish.Error()
	case errors.Is(err, payment.ErrGatewayRejected):
		return http.StatusPaymentRequired, "payment rejected"
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return http.StatusBadGateway, "payment gateway unavailable"
	case errors.Is(err, cart.ErrStoreUnavailable),
		errors.Is(err, order.ErrStoreUnavailable),
		errors.Is(err, auth.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "store unavailable"
	case errors.Is(err, restaurant.ErrNotFound):
		return http.StatusNotFound, "restaurant not found"
	case errors.Is(err, restaurant.ErrSlugTaken):
		return http.StatusConflict, "restaurant slug already taken"
	}
	for _, sentinel := range validationErrors {
		if errors.Is(err, sentinel) {
			// The sentinel text alone keeps operation context out of
			// client responses.
			return http.StatusBadRequest, sentinel.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

// validationErrors are domain errors reported to clients as 400.
var validationErrors = []error{
	cart.ErrInvalidOwner,
	order.ErrOwnerRequired,
	order.ErrAddressRequired,
	order.ErrEmptyDishes,
	payment.ErrInvalidAmount,
	restaurant.ErrNameRequired,
	restaurant.ErrDishNameRequired,
	restaurant.ErrInvalidPrice,
}

// fail writes the error response for err. Server-side failures are logged
// and their details withheld from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.Int("http.status", status),
			zap.Error(err),
		)
	}
	httpmiddleware.WriteError(w, status, msg)
}
