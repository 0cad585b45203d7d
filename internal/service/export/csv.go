package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"time"

	"smartkeiba/internal/domain"
)

// RenderCSV writes a header row of fields followed by one record per row.
// Lines end in CRLF.
func RenderCSV(fields []string, rows []domain.Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	if err := w.Write(fields); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(fields))
	for _, row := range rows {
		for i, f := range fields {
			record[i] = cell(row[f])
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// cell renders one value the way downstream loaders expect: empty for
// NULL, True/False for booleans and a space between date and time.
func cell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float32:
		return pyFloat(float64(x), 32)
	case float64:
		return pyFloat(x, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case *big.Int:
		if x == nil {
			return ""
		}
		return x.String()
	case time.Time:
		return pyDatetime(x)
	case fmt.Stringer:
		if rv := reflect.ValueOf(x); rv.Kind() == reflect.Ptr && rv.IsNil() {
			return ""
		}
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
