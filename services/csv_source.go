package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cadeo/cadeo-dashboard/dashboard"
	"github.com/cadeo/cadeo-dashboard/models"
)

// FileOpener opens a named file from wherever the CSV files live
type FileOpener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Describe() string
}

// LocalFiles opens files from a directory on disk
type LocalFiles struct {
	Dir string
}

// Open opens name inside the directory
func (l LocalFiles) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !filepath.IsLocal(name) {
		return nil, fmt.Errorf("invalid file name %q", name)
	}
	return os.Open(filepath.Join(l.Dir, name))
}

// Describe names the directory
func (l LocalFiles) Describe() string {
	return l.Dir
}

// Melted order file layout: one row per (order, field, value).
const (
	meltedKeyColumn   = "full_order_number"
	meltedFieldColumn = "field"
	meltedValueColumn = "value"
)

var (
	cityHeaders      = []string{"city", "name"}
	latitudeHeaders  = []string{"lat", "latitude"}
	longitudeHeaders = []string{"lon", "lng", "longitude"}
)

// timestampLayouts are tried in order for updated_at values
var timestampLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// CSVSource reads the map dashboard's city and order files
type CSVSource struct {
	files      FileOpener
	citiesFile string
	ordersFile string
}

// NewCSVSource creates a source reading citiesFile and ordersFile from files
func NewCSVSource(files FileOpener, citiesFile, ordersFile string) *CSVSource {
	return &CSVSource{files: files, citiesFile: citiesFile, ordersFile: ordersFile}
}

// FetchCities parses the coordinate table. City names must be unique and
// coordinates in range; any bad row fails the whole file.
func (s *CSVSource) FetchCities(ctx context.Context) ([]models.CityCoordinate, error) {
	header, rows, lines, err := s.readAll(ctx, s.citiesFile)
	if err != nil {
		return nil, err
	}

	cityIdx, err := findHeader(header, cityHeaders, s.citiesFile)
	if err != nil {
		return nil, err
	}
	latIdx, err := findHeader(header, latitudeHeaders, s.citiesFile)
	if err != nil {
		return nil, err
	}
	lonIdx, err := findHeader(header, longitudeHeaders, s.citiesFile)
	if err != nil {
		return nil, err
	}

	coords := make([]models.CityCoordinate, 0, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		line := lines[i]
		city := strings.TrimSpace(row[cityIdx])
		if city == "" {
			return nil, dashboard.InvalidRecord("%s line %d: empty city name", s.citiesFile, line)
		}
		if first, dup := seen[city]; dup {
			return nil, dashboard.InvalidRecord("%s line %d: duplicate city %q (first on line %d)", s.citiesFile, line, city, first)
		}
		seen[city] = line

		lat, err := parseCoordinate(row[latIdx], 90)
		if err != nil {
			return nil, dashboard.InvalidRecord("%s line %d: latitude: %v", s.citiesFile, line, err)
		}
		lon, err := parseCoordinate(row[lonIdx], 180)
		if err != nil {
			return nil, dashboard.InvalidRecord("%s line %d: longitude: %v", s.citiesFile, line, err)
		}

		coords = append(coords, models.CityCoordinate{City: city, Latitude: lat, Longitude: lon})
	}

	return coords, nil
}

// FetchOrders reads the melted order file and reshapes it into one row per
// order, in order of first appearance. The table provides full_order_number
// plus every field present in the file. total_order_price is required for
// every order and goes through dashboard.ParseCurrency.
func (s *CSVSource) FetchOrders(ctx context.Context) (*dashboard.OrderTable, error) {
	header, rows, lines, err := s.readAll(ctx, s.ordersFile)
	if err != nil {
		return nil, err
	}

	keyIdx, err := findHeader(header, []string{meltedKeyColumn}, s.ordersFile)
	if err != nil {
		return nil, err
	}
	fieldIdx, err := findHeader(header, []string{meltedFieldColumn}, s.ordersFile)
	if err != nil {
		return nil, err
	}
	valueIdx, err := findHeader(header, []string{meltedValueColumn}, s.ordersFile)
	if err != nil {
		return nil, err
	}

	long := make([]MeltedRow, 0, len(rows))
	for i, row := range rows {
		long = append(long, MeltedRow{
			Key:   strings.TrimSpace(row[keyIdx]),
			Field: strings.TrimSpace(row[fieldIdx]),
			Value: strings.TrimSpace(row[valueIdx]),
			Line:  lines[i],
		})
	}

	table, err := ReshapeOrders(long)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.ordersFile, err)
	}
	return table, nil
}

// MeltedRow is one (order, field, value) triple of the long layout
type MeltedRow struct {
	Key   string
	Field string
	Value string
	Line  int // line in the source file, 0 when unknown
}

// ReshapeOrders pivots long rows into wide orders
func ReshapeOrders(rows []MeltedRow) (*dashboard.OrderTable, error) {
	index := make(map[string]int)
	orders := make([]models.Order, 0)
	fieldsByOrder := make([]map[dashboard.Column]bool, 0)
	present := map[dashboard.Column]bool{dashboard.ColumnFullOrderNumber: true}

	for i, row := range rows {
		line := row.Line
		if line == 0 {
			line = i + 2
		}
		if row.Key == "" {
			return nil, dashboard.InvalidRecord("line %d: empty %s", line, meltedKeyColumn)
		}

		column, err := dashboard.ParseColumn(row.Field)
		if err != nil || column == dashboard.ColumnFullOrderNumber {
			return nil, dashboard.InvalidRecord("line %d: unknown field %q", line, row.Field)
		}

		pos, ok := index[row.Key]
		if !ok {
			pos = len(orders)
			index[row.Key] = pos
			orders = append(orders, models.Order{FullOrderNumber: row.Key})
			fieldsByOrder = append(fieldsByOrder, make(map[dashboard.Column]bool))
		}
		if fieldsByOrder[pos][column] {
			return nil, dashboard.InvalidRecord("line %d: duplicate field %q for order %s", line, row.Field, row.Key)
		}
		fieldsByOrder[pos][column] = true
		present[column] = true

		if err := setField(&orders[pos], column, row.Value); err != nil {
			return nil, dashboard.InvalidRecord("line %d: order %s field %s: %v", line, row.Key, row.Field, err)
		}
	}

	for i, o := range orders {
		if !fieldsByOrder[i][dashboard.ColumnTotalOrderPrice] {
			return nil, dashboard.InvalidRecord("order %s has no %s", o.FullOrderNumber, dashboard.ColumnTotalOrderPrice)
		}
	}

	columns := make([]dashboard.Column, 0, len(present))
	for _, c := range dashboard.AllColumns {
		if present[c] {
			columns = append(columns, c)
		}
	}

	return dashboard.NewOrderTable(orders, columns...), nil
}

func setField(o *models.Order, column dashboard.Column, value string) error {
	switch column {
	case dashboard.ColumnID:
		id, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		o.ID = uint(id)
	case dashboard.ColumnTotalOrderPrice:
		price, err := dashboard.ParseCurrency(value)
		if err != nil {
			return err
		}
		o.TotalOrderPrice = price
	case dashboard.ColumnSenderStatus:
		o.SenderStatus = value
	case dashboard.ColumnSendingMethod:
		o.SendingMethod = value
	case dashboard.ColumnSenderName:
		o.SenderName = value
	case dashboard.ColumnDestinationCity:
		if value != "" {
			city := value
			o.DestinationCity = &city
		}
	case dashboard.ColumnUpdatedAt:
		ts, err := parseTimestamp(value)
		if err != nil {
			return err
		}
		o.UpdatedAt = ts
	default:
		return fmt.Errorf("field %s cannot be set", column)
	}
	return nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func parseCoordinate(value string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, err
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("%v out of range [-%v, %v]", v, limit, limit)
	}
	return v, nil
}

// readAll reads a whole CSV file along with the line each record starts
// on. The header row is lower-cased and trimmed; every record must have as
// many fields as the header.
func (s *CSVSource) readAll(ctx context.Context, name string) ([]string, [][]string, []int, error) {
	f, err := s.files.Open(ctx, name)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil, dashboard.InvalidRecord("%s is empty", name)
	}
	if err != nil {
		return nil, nil, nil, dashboard.InvalidRecord("%s: %v", name, err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	var (
		rows  [][]string
		lines []int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, nil, dashboard.InvalidRecord("%s: %v", name, err)
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, record)
		lines = append(lines, line)
	}
	return header, rows, lines, nil
}

func findHeader(header []string, names []string, file string) (int, error) {
	for _, name := range names {
		for i, h := range header {
			if h == name {
				return i, nil
			}
		}
	}
	return -1, dashboard.InvalidRecord("%s: missing column %s", file, strings.Join(names, "/"))
}
