package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/uptrace/bun"
)

const postgresSource = "postgres:vehicles"

// vehicleRecord mirrors the operator's inventory table. Every column is
// nullable so malformed rows reach the same validation as CSV rows.
type vehicleRecord struct {
	bun.BaseModel `bun:"table:vehicles,alias:v"`

	StockID   *int64   `bun:"stock_id"`
	Make      *string  `bun:"make"`
	Model     *string  `bun:"model"`
	Year      *int     `bun:"year"`
	Price     *float64 `bun:"price"`
	Km        *float64 `bun:"km"`
	Version   *string  `bun:"version"`
	Condition *string  `bun:"condition"`
	Bluetooth *string  `bun:"bluetooth"`
	CarPlay   *string  `bun:"car_play"`
	Largo     *float64 `bun:"largo"`
	Ancho     *float64 `bun:"ancho"`
	Altura    *float64 `bun:"altura"`
}

func (r vehicleRecord) toRow() Row {
	row := make(Row, 13)
	if r.StockID != nil {
		row["stock_id"] = strconv.FormatInt(*r.StockID, 10)
	}
	if r.Year != nil {
		row["year"] = strconv.Itoa(*r.Year)
	}
	setString(row, "make", r.Make)
	setString(row, "model", r.Model)
	setString(row, "version", r.Version)
	setString(row, "condition", r.Condition)
	setString(row, "bluetooth", r.Bluetooth)
	setString(row, "car_play", r.CarPlay)
	setFloat(row, "price", r.Price)
	setFloat(row, "km", r.Km)
	setFloat(row, "largo", r.Largo)
	setFloat(row, "ancho", r.Ancho)
	setFloat(row, "altura", r.Altura)
	return row
}

// LoadPostgres reads the vehicles table ordered by stock id.
func LoadPostgres(ctx context.Context, db bun.IDB) (*Catalog, error) {
	var records []vehicleRecord
	if err := db.NewSelect().Model(&records).OrderExpr("stock_id ASC").Scan(ctx); err != nil {
		return nil, &LoadError{Source: postgresSource, Err: fmt.Errorf("select vehicles: %w", err)}
	}
	return New(postgresSource, recordsToRows(records))
}

func recordsToRows(records []vehicleRecord) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.toRow())
	}
	return rows
}

func setString(row Row, key string, v *string) {
	if v != nil {
		row[key] = *v
	}
}

func setFloat(row Row, key string, v *float64) {
	if v != nil {
		row[key] = strconv.FormatFloat(*v, 'f', -1, 64)
	}
}
