package catalog

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var ErrDuplicateID = errors.New("duplicate stock id")

// LoadError is returned when a source yields no usable vehicle. A process
// must not serve traffic with an empty catalog.
type LoadError struct {
	Source  string
	Rows    int
	Skipped int
	Err     error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("catalog load failed: source=%s rows=%d skipped=%d", e.Source, e.Rows, e.Skipped)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Vehicle is one immutable catalog entry.
type Vehicle struct {
	ID        int64   `json:"stock_id"`
	Brand     string  `json:"make"`
	Model     string  `json:"model"`
	Year      int     `json:"year"`
	Price     float64 `json:"price"`
	Mileage   int     `json:"km"`
	Condition string  `json:"condition,omitempty"`
	Version   string  `json:"version,omitempty"`
	Bluetooth bool    `json:"bluetooth"`
	CarPlay   bool    `json:"car_play"`
	Length    float64 `json:"length,omitempty"`
	Width     float64 `json:"width,omitempty"`
	Height    float64 `json:"height,omitempty"`
}

func (v Vehicle) Title() string {
	return fmt.Sprintf("%s %s %d", v.Brand, v.Model, v.Year)
}

// Row is one raw record from the operator's inventory table, keyed by
// lower-case column name.
type Row map[string]string

// Catalog holds the vehicle inventory. It is read-only after construction
// and safe for concurrent use without locking.
type Catalog struct {
	vehicles []Vehicle
	byID     map[int64]int
	skipped  int
}

// New validates rows and builds a Catalog. Invalid rows are skipped and
// counted; at least one valid row is required.
func New(source string, rows []Row) (*Catalog, error) {
	c := &Catalog{
		vehicles: make([]Vehicle, 0, len(rows)),
		byID:     make(map[int64]int, len(rows)),
	}

	for i, row := range rows {
		v, err := parseRow(row)
		if err == nil {
			if _, dup := c.byID[v.ID]; dup {
				err = fmt.Errorf("%w: %d", ErrDuplicateID, v.ID)
			}
		}
		if err != nil {
			c.skipped++
			log.Debug().Err(err).Str("source", source).Int("row", i+1).Msg("catalog row skipped")
			continue
		}
		c.byID[v.ID] = len(c.vehicles)
		c.vehicles = append(c.vehicles, v)
	}

	if len(c.vehicles) == 0 {
		return nil, &LoadError{Source: source, Rows: len(rows), Skipped: c.skipped}
	}

	log.Info().
		Str("source", source).
		Int("vehicles", len(c.vehicles)).
		Int("skipped", c.skipped).
		Msg("catalog loaded")
	return c, nil
}

// All returns every vehicle in insertion order. The slice is a copy.
func (c *Catalog) All() []Vehicle {
	out := make([]Vehicle, len(c.vehicles))
	copy(out, c.vehicles)
	return out
}

func (c *Catalog) ByID(id int64) (Vehicle, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Vehicle{}, false
	}
	return c.vehicles[idx], true
}

func (c *Catalog) Len() int {
	return len(c.vehicles)
}

// Skipped reports how many rows were rejected during load.
func (c *Catalog) Skipped() int {
	return c.skipped
}

// Stats summarizes the inventory for introspection and for answering
// broad questions ("what brands do you have?").
type Stats struct {
	Total         int      `json:"total"`
	Brands        []string `json:"brands"`
	PriceMin      float64  `json:"price_min"`
	PriceMax      float64  `json:"price_max"`
	PriceMean     float64  `json:"price_mean"`
	YearMin       int      `json:"year_min"`
	YearMax       int      `json:"year_max"`
	WithBluetooth int      `json:"with_bluetooth"`
	WithCarPlay   int      `json:"with_car_play"`
}

func (c *Catalog) Stats() Stats {
	st := Stats{
		Total:    len(c.vehicles),
		PriceMin: math.Inf(1),
		YearMin:  math.MaxInt,
	}
	brands := make(map[string]struct{}, 16)
	var sum float64
	for _, v := range c.vehicles {
		brands[v.Brand] = struct{}{}
		sum += v.Price
		st.PriceMin = math.Min(st.PriceMin, v.Price)
		st.PriceMax = math.Max(st.PriceMax, v.Price)
		st.YearMin = min(st.YearMin, v.Year)
		st.YearMax = max(st.YearMax, v.Year)
		if v.Bluetooth {
			st.WithBluetooth++
		}
		if v.CarPlay {
			st.WithCarPlay++
		}
	}
	st.PriceMean = sum / float64(len(c.vehicles))

	st.Brands = make([]string, 0, len(brands))
	for b := range brands {
		st.Brands = append(st.Brands, b)
	}
	sort.Strings(st.Brands)
	return st
}

/* ------------------------------ row parsing ------------------------------ */

func parseRow(row Row) (Vehicle, error) {
	var (
		v   Vehicle
		err error
	)

	if v.ID, err = requiredInt(row, "stock_id"); err != nil {
		return Vehicle{}, err
	}
	if v.Brand, err = requiredString(row, "make"); err != nil {
		return Vehicle{}, err
	}
	if v.Model, err = requiredString(row, "model"); err != nil {
		return Vehicle{}, err
	}
	year, err := requiredInt(row, "year")
	if err != nil {
		return Vehicle{}, err
	}
	v.Year = int(year)

	if v.Price, err = requiredFloat(row, "price"); err != nil {
		return Vehicle{}, err
	}
	if v.Price <= 0 || math.IsNaN(v.Price) || math.IsInf(v.Price, 0) {
		return Vehicle{}, fmt.Errorf("price must be positive, got %v", v.Price)
	}

	km, err := optionalFloat(row, "km")
	if err != nil {
		return Vehicle{}, err
	}
	if km < 0 {
		return Vehicle{}, fmt.Errorf("km must be >= 0, got %v", km)
	}
	v.Mileage = int(km)

	if v.Length, err = optionalFloat(row, "largo"); err != nil {
		return Vehicle{}, err
	}
	if v.Width, err = optionalFloat(row, "ancho"); err != nil {
		return Vehicle{}, err
	}
	if v.Height, err = optionalFloat(row, "altura"); err != nil {
		return Vehicle{}, err
	}

	v.Version = strings.TrimSpace(row["version"])
	v.Condition = strings.TrimSpace(row["condition"])
	v.Bluetooth = parseFlag(row["bluetooth"])
	v.CarPlay = parseFlag(row["car_play"])
	return v, nil
}

func requiredString(row Row, key string) (string, error) {
	val := strings.TrimSpace(row[key])
	if val == "" {
		return "", fmt.Errorf("missing required field %q", key)
	}
	return val, nil
}

func requiredInt(row Row, key string) (int64, error) {
	raw, err := requiredString(row, key)
	if err != nil {
		return 0, err
	}
	// Spreadsheet exports frequently render integers as "2019.0".
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("field %q: invalid integer %q", key, raw)
	}
	return int64(f), nil
}

func requiredFloat(row Row, key string) (float64, error) {
	raw, err := requiredString(row, key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("field %q: invalid number %q", key, raw)
	}
	return f, nil
}

func optionalFloat(row Row, key string) (float64, error) {
	if strings.TrimSpace(row[key]) == "" {
		return 0, nil
	}
	return requiredFloat(row, key)
}

func parseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "si", "sí", "true", "1", "y":
		return true
	default:
		return false
	}
}
