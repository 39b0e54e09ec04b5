package menu

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Prices are rounded to cents on import, which rescales by the exponent.
const (
	minPriceExponent = -10
	maxPriceExponent = 12
)

// DecodeEntry reads one restaurant object:
//
//	{"name": "...", "description": "...", "dishes": [{"id": 1, "name": "...", "price": "4.50"}]}
//
// Dish IDs may be strings or integers and prices numbers or strings.
// Unknown fields are ignored.
func DecodeEntry(d *jx.Decoder) (Entry, error) {
	var e Entry
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "name":
			v, err := d.Str()
			e.Name = v
			return err
		case "description":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			e.Description = v
			return err
		case "dishes":
			return d.Arr(func(d *jx.Decoder) error {
				dish, err := decodeDish(d)
				if err != nil {
					return err
				}
				e.Dishes = append(e.Dishes, dish)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return Entry{}, errors.Wrap(err, "decode restaurant")
	}
	return e, nil
}

// DecodeEntries reads a JSON array of restaurant objects.
func DecodeEntries(d *jx.Decoder) ([]Entry, error) {
	var entries []Entry
	err := d.Arr(func(d *jx.Decoder) error {
		e, err := DecodeEntry(d)
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

func decodeDish(d *jx.Decoder) (Dish, error) {
	var dish Dish
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := numberOrString(d)
			dish.ID = v
			return err
		case "name":
			v, err := d.Str()
			dish.Name = v
			return err
		case "price":
			raw, err := numberOrString(d)
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(raw)
			if err != nil {
				return errors.Wrapf(err, "price %q", raw)
			}
			if exp := price.Exponent(); exp < minPriceExponent || exp > maxPriceExponent {
				return errors.Errorf("price %q out of range", raw)
			}
			dish.Price = price
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return Dish{}, errors.Wrap(err, "decode dish")
	}
	return dish, nil
}

func numberOrString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", errors.Errorf("expected number or string, got %s", d.Next())
	}
}
