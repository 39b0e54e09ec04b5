package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/restaurant"
)

func (h *Handler) listRestaurants(w http.ResponseWriter, r *http.Request) {
	list, err := h.restaurants.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var e jx.Encoder
	e.ArrStart()
	for i := range list {
		encodeRestaurant(&e, &list[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) restaurantBySlug(w http.ResponseWriter, r *http.Request) {
	rest, err := h.restaurants.BySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeRestaurant(w, http.StatusOK, rest)
}

func (h *Handler) createRestaurant(w http.ResponseWriter, r *http.Request) {
	var req restaurant.CreateRequest
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			v, err := stringField(d, key)
			req.Name = v
			return err
		case "description":
			v, err := stringField(d, key)
			req.Description = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rest, err := h.restaurants.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeRestaurant(w, http.StatusCreated, rest)
}

func (h *Handler) renameRestaurant(w http.ResponseWriter, r *http.Request) {
	var name string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "name" {
			return d.Skip()
		}
		v, err := stringField(d, key)
		name = v
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rest, err := h.restaurants.Rename(r.Context(), r.PathValue("id"), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeRestaurant(w, http.StatusOK, rest)
}

func (h *Handler) addDish(w http.ResponseWriter, r *http.Request) {
	var (
		name     string
		price    decimal.Decimal
		hasPrice bool
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			v, err := stringField(d, key)
			name = v
			return err
		case "price":
			v, err := decodeDecimal(d, key)
			price = v
			hasPrice = err == nil
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !hasPrice {
		h.fail(w, r, badRequest("price required"))
		return
	}
	dish, err := h.restaurants.AddDish(r.Context(), r.PathValue("id"), name, price)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeDish(&e, dish)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) writeRestaurant(w http.ResponseWriter, status int, rest *restaurant.Restaurant) {
	var e jx.Encoder
	encodeRestaurant(&e, rest)
	writeJSON(w, status, &e)
}

func stringField(d *jx.Decoder, field string) (string, error) {
	if d.Next() != jx.String {
		return "", badRequest(field + " must be a string")
	}
	return d.Str()
}
