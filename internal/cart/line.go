package cart

import "math"

// Product is the catalog payload a caller may hand to AddProduct so a line
// can be shown before the server has confirmed it.
type Product struct {
	ID              string   `json:"item_id"`
	Name            string   `json:"name"`
	ImageURL        string   `json:"image_url"`
	Price           *float64 `json:"price,omitempty"`
	ReferencePrice  *float64 `json:"reference_price,omitempty"`
	DiscountPercent *float64 `json:"discount_percent,omitempty"`
	Material        string   `json:"material,omitempty"`
	Color           string   `json:"color,omitempty"`
	Brand           string   `json:"brand,omitempty"`
}

// RemoteLine is one entry of the authoritative cart as returned by the backend.
type RemoteLine struct {
	Product
	Quantity int `json:"quantity"`
}

// Line is the local replica of one cart entry.
type Line struct {
	ItemID         string `json:"item_id"`
	Name           string `json:"name"`
	ImageURL       string `json:"image_url"`
	UnitPrice      int64  `json:"unit_price"`
	ReferencePrice int64  `json:"reference_price"`
	Quantity       int    `json:"quantity"`
	Material       string `json:"material,omitempty"`
	Color          string `json:"color,omitempty"`
	Brand          string `json:"brand,omitempty"`
}

// Subtotal is UnitPrice * Quantity.
func (l Line) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Snapshot is a read-only copy of the cart handed to presentation code.
// Version grows with every change, so consumers can discard stale copies.
type Snapshot struct {
	Lines   []Line `json:"lines"`
	Total   int64  `json:"total"`
	Count   int    `json:"count"`
	Loading bool   `json:"loading"`
	Version uint64 `json:"version"`
}

// Line looks up a line by item id.
func (s Snapshot) Line(itemID string) (Line, bool) {
	for _, l := range s.Lines {
		if l.ItemID == itemID {
			return l, true
		}
	}
	return Line{}, false
}

// DerivePrice picks the unit price a line is charged at. An explicit price
// wins; otherwise the reference price is discounted by discountPercent and
// rounded to the nearest whole currency unit. Missing inputs yield 0.
func DerivePrice(price, reference, discountPercent *float64) (unit int64, ref int64) {
	switch {
	case price != nil:
		unit = int64(math.Round(*price))
	case reference != nil && discountPercent != nil:
		unit = int64(math.Round(*reference * (100 - *discountPercent) / 100))
	case reference != nil:
		unit = int64(math.Round(*reference))
	}

	if reference != nil {
		ref = int64(math.Round(*reference))
	} else {
		ref = unit
	}
	return unit, ref
}

// Line synthesizes a cart line for the product at the given quantity.
func (p Product) Line(quantity int) Line {
	unit, ref := DerivePrice(p.Price, p.ReferencePrice, p.DiscountPercent)
	return Line{
		ItemID:         p.ID,
		Name:           p.Name,
		ImageURL:       p.ImageURL,
		UnitPrice:      unit,
		ReferencePrice: ref,
		Quantity:       quantity,
		Material:       p.Material,
		Color:          p.Color,
		Brand:          p.Brand,
	}
}

// FromRemote maps the backend's cart into local lines. Entries without an
// id or with a quantity below one are dropped; repeated ids are merged into
// the first occurrence so the result never holds two lines for one item.
func FromRemote(remote []RemoteLine) []Line {
	lines := make([]Line, 0, len(remote))
	index := make(map[string]int, len(remote))
	for _, r := range remote {
		if r.ID == "" || r.Quantity < 1 {
			continue
		}
		if i, ok := index[r.ID]; ok {
			lines[i].Quantity += r.Quantity
			continue
		}
		index[r.ID] = len(lines)
		lines = append(lines, r.Product.Line(r.Quantity))
	}
	return lines
}

// normalize applies the same rules as FromRemote to lines from a local source.
func normalize(in []Line) []Line {
	out := make([]Line, 0, len(in))
	index := make(map[string]int, len(in))
	for _, l := range in {
		if l.ItemID == "" || l.Quantity < 1 {
			continue
		}
		if i, ok := index[l.ItemID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ItemID] = len(out)
		out = append(out, l)
	}
	return out
}

func totals(lines []Line) (total int64, count int) {
	for _, l := range lines {
		total += l.Subtotal()
		count += l.Quantity
	}
	return total, count
}

func indexOf(lines []Line, itemID string) int {
	for i, l := range lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}

func cloneLines(lines []Line) []Line {
	if lines == nil {
		return nil
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}

func without(lines []Line, itemID string) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.ItemID != itemID {
			out = append(out, l)
		}
	}
	return out
}

// Float is a convenience for building optional price fields.
func Float(v float64) *float64 {
	return &v
}
