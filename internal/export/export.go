package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"pdo/internal/model"
	"pdo/internal/pipeline"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: export format %q", model.ErrInvalidValue, s)
}

func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// FileName is the download name for the filtered dataset.
func (f Format) FileName() string { return "delivery_data." + string(f) }

func Write(w io.Writer, f Format, t pipeline.Table) error {
	if f == FormatJSON {
		return WriteJSON(w, t)
	}
	return WriteCSV(w, t)
}

// WriteCSV writes a header row then one line per row. Null cells are empty.
func WriteCSV(w io.Writer, t pipeline.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	line := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range line {
			line[i] = ""
			if i < len(row) {
				line[i] = cell(row[i])
			}
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes an array of objects keyed by column name. Null cells are
// JSON null.
func WriteJSON(w io.Writer, t pipeline.Table) error {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		obj := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(row) {
				obj[c] = row[i]
			} else {
				obj[c] = nil
			}
		}
		out = append(out, obj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// SampleFileName is the download name for Sample.
const SampleFileName = "sample_logistics_data.csv"

// Sample is a fixed five-row table showing the expected column shapes.
func Sample() pipeline.Table {
	return pipeline.Table{
		Columns: []string{"order_id", "priority", "status", "customer_rating", "delivery_cost"},
		Rows: [][]any{
			{1, "Express", "Delivered", 5, 200},
			{2, "Standard", "Delayed", 2, 150},
			{3, "Economy", "In Transit", 4, 100},
			{4, "Express", "Delivered", 5, 220},
			{5, "Standard", "Delayed", 3, 130},
		},
	}
}
