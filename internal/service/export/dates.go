package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"smartkeiba/internal/domain"
)

const dateKeyLayout = "20060102"

// DateKey converts a date column value to YYYYMMDD. Strings are parsed
// with layout when one is given, otherwise taken as they are; a string
// that does not match layout but starts with an ISO date is accepted.
func DateKey(v interface{}, layout string) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", fmt.Errorf("date value is NULL")
	case time.Time:
		return x.Format(dateKeyLayout), nil
	case domain.Date:
		return x.Format(dateKeyLayout), nil
	case domain.ZonedTime:
		return x.Format(dateKeyLayout), nil
	case []byte:
		return DateKey(string(x), layout)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return "", fmt.Errorf("date value is empty")
		}
		if layout == "" {
			return s, nil
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateKeyLayout), nil
		}
		if len(s) >= 10 {
			if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
				return t.Format(dateKeyLayout), nil
			}
		}
		return "", fmt.Errorf("date %q does not match layout %q", s, layout)
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	default:
		return "", fmt.Errorf("unsupported date value of type %T", v)
	}
}

// keyString renders a key column value as the state key.
func keyString(v interface{}) (string, error) {
	if v == nil {
		return "", fmt.Errorf("key value is NULL")
	}
	s := cell(v)
	if s == "" {
		return "", fmt.Errorf("key value is empty")
	}
	return s, nil
}
