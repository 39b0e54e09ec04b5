package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/foodcart/internal/domain/order"
)

// placeOrder handles POST /api/orders. Dishes keep their order and
// duplicates.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var (
		req       order.PlaceRequest
		hasAmount bool
	)
	err = decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "address":
			v, err := stringField(d, key)
			req.Address = v
			return err
		case "amount":
			v, err := decodeDecimal(d, "amount")
			req.Amount = v
			hasAmount = err == nil
			return err
		case "dishes":
			if d.Next() != jx.Array {
				return badRequest("dishes must be an array")
			}
			return d.Arr(func(d *jx.Decoder) error {
				id, err := decodeID(d)
				if err != nil {
					return err
				}
				req.Dishes = append(req.Dishes, id)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !hasAmount {
		h.fail(w, r, badRequest("amount required"))
		return
	}

	o, err := h.orders.Place(r.Context(), owner, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusCreated, &e)
}

// myOrders handles GET /api/me/orders.
func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	orders, err := h.orders.ListByOwner(r.Context(), owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var e jx.Encoder
	e.ArrStart()
	for i := range orders {
		encodeOrder(&e, &orders[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}
