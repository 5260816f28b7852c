package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/yourorg/table-export/internal/types"
)

// ErrFormatting indicates a value could not be coerced for its column's rule.
var ErrFormatting = errors.New("formatting failed")

// Error locates a formatting failure.
type Error struct {
	Row   int
	Key   string
	Value any
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("row %d column %q value %v: %v", e.Row, e.Key, e.Value, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrFormatting, e.Err} }

// Formatter turns raw rows into display strings. The zero value formats dates in UTC.
type Formatter struct {
	Location *time.Location
}

// New returns a Formatter rendering dates in loc (UTC when nil).
func New(loc *time.Location) *Formatter {
	return &Formatter{Location: loc}
}

var defaultFormatter = &Formatter{}

// Row formats a single row with the default (UTC) formatter.
func Row(row types.Row, cols []types.ColumnSpec) (types.FormattedRow, error) {
	return defaultFormatter.Row(0, row, cols)
}

// Rows formats all rows with the default (UTC) formatter.
func Rows(rows []types.Row, cols []types.ColumnSpec) ([]types.FormattedRow, error) {
	return defaultFormatter.Rows(rows, cols)
}

func (f *Formatter) loc() *time.Location {
	if f == nil || f.Location == nil {
		return time.UTC
	}
	return f.Location
}

// Rows stops at the first failure; no partial output is returned.
func (f *Formatter) Rows(rows []types.Row, cols []types.ColumnSpec) ([]types.FormattedRow, error) {
	out := make([]types.FormattedRow, len(rows))
	for i, r := range rows {
		fr, err := f.Row(i, r, cols)
		if err != nil {
			return nil, err
		}
		out[i] = fr
	}
	return out, nil
}

// Row produces a FormattedRow holding every column key. idx only labels errors.
func (f *Formatter) Row(idx int, row types.Row, cols []types.ColumnSpec) (types.FormattedRow, error) {
	out := make(types.FormattedRow, len(cols))
	for _, c := range cols {
		v, ok := row[c.Key]
		if !ok || v == nil {
			out[c.Key] = types.Missing
			continue
		}
		s, err := f.Value(v, c.Format)
		if err != nil {
			return nil, &Error{Row: idx, Key: c.Key, Value: v, Err: err}
		}
		out[c.Key] = s
	}
	return out, nil
}

// Value renders one non-nil value according to rule.
func (f *Formatter) Value(v any, rule types.FormatRule) (string, error) {
	switch rule.Kind {
	case types.FormatDecimal:
		return decimal(v, rule.Precision)
	case types.FormatDate:
		t, err := f.toTime(v)
		if err != nil {
			return "", err
		}
		pattern := rule.Pattern
		if pattern == "" {
			pattern = types.DefaultDatePattern
		}
		return Pattern(t.In(f.loc()), pattern), nil
	default:
		return plain(v)
	}
}

func decimal(v any, precision int) (string, error) {
	if b, ok := v.(bool); ok {
		if b {
			v = 1
		} else {
			v = 0
		}
	}
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	n, err := cast.ToFloat64E(v)
	if err != nil {
		return "", err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return "", fmt.Errorf("non-finite number %v", n)
	}
	return toFixed(n, precision), nil
}

// toFixed rounds the exact binary value of n half away from zero, so 2.5
// becomes "3" while 1.005 (stored as 1.00499...) stays "1.00".
func toFixed(n float64, precision int) string {
	if precision < 0 {
		precision = 0
	}
	x := new(big.Float).SetPrec(2048).SetFloat64(math.Abs(n))
	scale := new(big.Float).SetPrec(2048).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(precision)), nil))
	x.Mul(x, scale)
	x.Add(x, big.NewFloat(0.5))
	i, _ := x.Int(nil)

	digits := i.String()
	if len(digits) <= precision {
		digits = strings.Repeat("0", precision-len(digits)+1) + digits
	}
	out := digits
	if precision > 0 {
		cut := len(digits) - precision
		out = digits[:cut] + "." + digits[cut:]
	}
	if n < 0 {
		out = "-" + out
	}
	return out
}

func (f *Formatter) toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case *time.Time:
		if x == nil {
			return time.Time{}, errors.New("nil time")
		}
		return *x, nil
	case string:
		return cast.ToTimeInDefaultLocationE(x, f.loc())
	case json.Number:
		return millis(x)
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return millis(v)
	default:
		return time.Time{}, fmt.Errorf("unsupported date value of type %T", v)
	}
}

// millis interprets a number as milliseconds since the Unix epoch.
// maxMillis bounds epoch milliseconds to ±100,000,000 days.
const maxMillis = 8.64e15

func millis(v any) (time.Time, error) {
	n, err := cast.ToFloat64E(v)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return time.Time{}, fmt.Errorf("non-finite timestamp %v", n)
	}
	if math.Abs(n) > maxMillis {
		return time.Time{}, fmt.Errorf("timestamp %v out of range", n)
	}
	return time.UnixMilli(int64(n)), nil
}

func plain(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case time.Time:
		return x.Format(time.RFC3339), nil
	case []byte:
		return string(x), nil
	}
	s, err := cast.ToStringE(v)
	if err == nil {
		return s, nil
	}
	// composite values (nested objects, arrays) fall back to their JSON form
	b, jerr := json.Marshal(v)
	if jerr != nil {
		return "", err
	}
	return string(b), nil
}
