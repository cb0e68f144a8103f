package remote

import (
	"fmt"

	"github.com/ikkim/udonggeum-cartsync/internal/cart"
	"github.com/tidwall/gjson"
)

// decodeCart reads the backend's cart payload. The backend has shipped a few
// shapes over time (flat items, nested product objects, numeric ids), so
// fields are looked up by path instead of unmarshalled into a fixed struct.
func decodeCart(body []byte) ([]cart.RemoteLine, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidResponse)
	}

	root := gjson.ParseBytes(body)
	items := root.Get("cart_items")
	if !items.Exists() {
		items = root.Get("items")
	}
	if !items.Exists() || items.Type == gjson.Null {
		return nil, nil
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("%w: cart items is not a list", ErrInvalidResponse)
	}

	var lines []cart.RemoteLine
	items.ForEach(func(_, item gjson.Result) bool {
		lines = append(lines, decodeLine(item))
		return true
	})
	return lines, nil
}

func decodeLine(item gjson.Result) cart.RemoteLine {
	return cart.RemoteLine{
		Product: cart.Product{
			ID:              first(item, "product_id", "item_id", "product.id").String(),
			Name:            first(item, "name", "product.name").String(),
			ImageURL:        first(item, "image_url", "product.image_url").String(),
			Price:           number(first(item, "price", "product.price")),
			ReferencePrice:  number(first(item, "original_price", "product.original_price")),
			DiscountPercent: number(first(item, "discount_percent", "product.discount_percent")),
			Material:        first(item, "material", "product.material").String(),
			Color:           first(item, "color", "product.color").String(),
			Brand:           first(item, "brand", "product.brand").String(),
		},
		Quantity: int(item.Get("quantity").Int()),
	}
}

func first(item gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := item.Get(p); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func number(r gjson.Result) *float64 {
	switch r.Type {
	case gjson.Number:
		return cart.Float(r.Float())
	case gjson.String:
		if f := r.Float(); f != 0 || r.Str == "0" {
			return cart.Float(f)
		}
	}
	return nil
}
