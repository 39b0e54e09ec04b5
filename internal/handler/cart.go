package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/foodcart/internal/domain/cart"
)

// addToCart handles POST /api/cart/dishes with body {"dish": id}.
func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var dish string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "dish" {
			return d.Skip()
		}
		v, err := decodeID(d)
		dish = v
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dish = strings.TrimSpace(dish)
	if dish == "" {
		h.fail(w, r, badRequest("dish required"))
		return
	}
	h.cartResponse(w, r, func(owner string) (*cart.Cart, error) {
		return h.carts.AddDish(r.Context(), owner, dish)
	})
}

// removeFromCart handles DELETE /api/cart/dishes/{dish}.
func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	dish := strings.TrimSpace(r.PathValue("dish"))
	if dish == "" {
		h.fail(w, r, badRequest("dish required"))
		return
	}
	h.cartResponse(w, r, func(owner string) (*cart.Cart, error) {
		return h.carts.RemoveDish(r.Context(), owner, dish)
	})
}

// clearCart handles DELETE /api/cart.
func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.cartResponse(w, r, func(owner string) (*cart.Cart, error) {
		return h.carts.Clear(r.Context(), owner)
	})
}

// myCart handles GET /api/me/cart.
func (h *Handler) myCart(w http.ResponseWriter, r *http.Request) {
	h.cartResponse(w, r, func(owner string) (*cart.Cart, error) {
		return h.carts.Get(r.Context(), owner)
	})
}

func (h *Handler) cartResponse(w http.ResponseWriter, r *http.Request, fn func(owner string) (*cart.Cart, error)) {
	owner, err := ownerOf(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := fn(owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeCart(&e, c)
	writeJSON(w, http.StatusOK, &e)
}
