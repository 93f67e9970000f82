// Package search filters, ranks and resolves ordinal references over the
// vehicle catalog.
package search

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ricmunrom/botAtencionClientes/agent/catalog"
)

// Criteria is a set of optional constraints. Nil fields are unconstrained;
// present fields combine with AND.
type Criteria struct {
	Brand      *string  `json:"brand,omitempty"`
	Model      *string  `json:"model,omitempty"`
	YearMin    *int     `json:"year_min,omitempty"`
	YearMax    *int     `json:"year_max,omitempty"`
	PriceMin   *float64 `json:"price_min,omitempty"`
	PriceMax   *float64 `json:"price_max,omitempty"`
	MileageMin *int     `json:"km_min,omitempty"`
	MileageMax *int     `json:"km_max,omitempty"`
	Bluetooth  *bool    `json:"bluetooth,omitempty"`
	CarPlay    *bool    `json:"car_play,omitempty"`

	// Limit truncates the ranked result; zero keeps every match.
	Limit int `json:"limit,omitempty"`
}

// Result is the ordered output of one search. Ordinal selection indexes
// into Vehicles exactly as returned.
type Result struct {
	Criteria Criteria          `json:"criteria"`
	Vehicles []catalog.Vehicle `json:"vehicles"`
}

func (r Result) Len() int {
	return len(r.Vehicles)
}

func (r Result) Contains(id int64) bool {
	for _, v := range r.Vehicles {
		if v.ID == id {
			return true
		}
	}
	return false
}

// OutOfRangeError reports an ordinal outside the last result. Available is
// zero when the result was empty.
type OutOfRangeError struct {
	Position  int
	Available int
}

func (e *OutOfRangeError) Error() string {
	if e.Available == 0 {
		return fmt.Sprintf("position %d out of range: result is empty", e.Position)
	}
	return fmt.Sprintf("position %d out of range: valid positions are 1..%d", e.Position, e.Available)
}

func (e *OutOfRangeError) Empty() bool {
	return e.Available == 0
}

type Engine struct {
	catalog *catalog.Catalog
}

func New(c *catalog.Catalog) *Engine {
	return &Engine{catalog: c}
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

type scored struct {
	vehicle catalog.Vehicle
	score   int
}

// Search evaluates every criterion against every vehicle and returns the
// matches ordered by score desc, price asc, then catalog order.
func (e *Engine) Search(c Criteria) Result {
	preds := c.predicates()

	var matches []scored
	for _, v := range e.catalog.All() {
		score := 0
		ok := true
		for _, p := range preds {
			if !p(v) {
				ok = false
				break
			}
			score++
		}
		if ok {
			matches = append(matches, scored{vehicle: v, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].vehicle.Price < matches[j].vehicle.Price
	})

	if c.Limit > 0 && len(matches) > c.Limit {
		matches = matches[:c.Limit]
	}

	out := Result{
		Criteria: c,
		Vehicles: make([]catalog.Vehicle, 0, len(matches)),
	}
	for _, m := range matches {
		out.Vehicles = append(out.Vehicles, m.vehicle)
	}
	return out
}

// SelectByOrdinal returns the vehicle at the 1-based position.
func SelectByOrdinal(r Result, position int) (catalog.Vehicle, error) {
	if position < 1 || position > len(r.Vehicles) {
		return catalog.Vehicle{}, &OutOfRangeError{Position: position, Available: len(r.Vehicles)}
	}
	return r.Vehicles[position-1], nil
}

type predicate func(catalog.Vehicle) bool

func (c Criteria) predicates() []predicate {
	var preds []predicate

	if c.Brand != nil {
		want := normalize(*c.Brand)
		preds = append(preds, func(v catalog.Vehicle) bool {
			return normalize(v.Brand) == want
		})
	}
	if c.Model != nil {
		want := normalize(*c.Model)
		preds = append(preds, func(v catalog.Vehicle) bool {
			return strings.Contains(normalize(v.Model), want)
		})
	}
	if c.YearMin != nil {
		lo := *c.YearMin
		preds = append(preds, func(v catalog.Vehicle) bool { return v.Year >= lo })
	}
	if c.YearMax != nil {
		hi := *c.YearMax
		preds = append(preds, func(v catalog.Vehicle) bool { return v.Year <= hi })
	}
	if c.PriceMin != nil {
		lo := *c.PriceMin
		preds = append(preds, func(v catalog.Vehicle) bool { return v.Price >= lo })
	}
	if c.PriceMax != nil {
		hi := *c.PriceMax
		preds = append(preds, func(v catalog.Vehicle) bool { return v.Price <= hi })
	}
	if c.MileageMin != nil {
		lo := *c.MileageMin
		preds = append(preds, func(v catalog.Vehicle) bool { return v.Mileage >= lo })
	}
	if c.MileageMax != nil {
		hi := *c.MileageMax
		preds = append(preds, func(v catalog.Vehicle) bool { return v.Mileage <= hi })
	}
	if c.Bluetooth != nil {
		want := *c.Bluetooth
		preds = append(preds, func(v catalog.Vehicle) bool { return v.Bluetooth == want })
	}
	if c.CarPlay != nil {
		want := *c.CarPlay
		preds = append(preds, func(v catalog.Vehicle) bool { return v.CarPlay == want })
	}
	return preds
}

// IsEmpty reports whether no criterion is set.
func (c Criteria) IsEmpty() bool {
	return len(c.predicates()) == 0
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
