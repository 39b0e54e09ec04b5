package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/restaurant"
)

const maxBodyBytes = 64 << 10

// Bounds on client-supplied decimals. Rounding rescales by the exponent, so
// it must be checked before any arithmetic.
const (
	maxDecimalDigits   = 20
	minDecimalExponent = -10
	maxDecimalExponent = 12
)

// decodeBody reads a JSON object from the request body and calls fn for
// every field. Decoding errors are reported as bad requests.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("request body too large")
		}
		return badRequest("read request body")
	}
	if len(body) == 0 {
		return badRequest("request body required")
	}
	d := jx.DecodeBytes(body)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	}); err != nil {
		var bad *badRequestError
		if errors.As(err, &bad) {
			return bad
		}
		return badRequest("invalid JSON body")
	}
	return nil
}

// decodeID accepts identifiers encoded either as strings or as integers.
func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		if !n.IsInt() {
			return "", badRequest("identifier must be an integer or string")
		}
		return n.String(), nil
	default:
		return "", badRequest("identifier must be an integer or string")
	}
}

// decodeDecimal accepts decimals encoded as JSON numbers or strings.
func decodeDecimal(d *jx.Decoder, field string) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, badRequest(field + " must be a number")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, badRequest(field + " must be a number")
	}
	if exp := v.Exponent(); exp < minDecimalExponent || exp > maxDecimalExponent || v.NumDigits() > maxDecimalDigits {
		return decimal.Zero, badRequest(field + " is out of range")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("owner")
	e.Str(c.Owner)
	e.FieldStart("dishes")
	encodeStrings(e, c.Dishes)
	if !c.UpdatedAt.IsZero() {
		e.FieldStart("updatedAt")
		e.Str(c.UpdatedAt.UTC().Format(time.RFC3339))
	}
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("address")
	e.Str(o.Address)
	e.FieldStart("amount")
	e.Raw([]byte(o.Amount.StringFixed(2)))
	e.FieldStart("currency")
	e.Str(o.Currency)
	e.FieldStart("dishes")
	encodeStrings(e, o.Dishes)
	e.FieldStart("token")
	e.Str(o.Token)
	e.FieldStart("authorized")
	e.Bool(o.Authorized())
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}

func encodeDish(e *jx.Encoder, d *restaurant.Dish) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(d.ID)
	e.FieldStart("restaurantId")
	e.Str(d.RestaurantID)
	e.FieldStart("name")
	e.Str(d.Name)
	e.FieldStart("price")
	e.Raw([]byte(d.Price.StringFixed(2)))
	e.ObjEnd()
}

func encodeRestaurant(e *jx.Encoder, r *restaurant.Restaurant) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(r.ID)
	e.FieldStart("name")
	e.Str(r.Name)
	e.FieldStart("slug")
	e.Str(r.Slug)
	e.FieldStart("description")
	e.Str(r.Description)
	e.FieldStart("dishes")
	e.ArrStart()
	for i := range r.Dishes {
		encodeDish(e, &r.Dishes[i])
	}
	e.ArrEnd()
	e.FieldStart("createdAt")
	e.Str(r.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}
