package remote

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type FilterOp string

const (
	OpEq    FilterOp = "eq"
	OpIn    FilterOp = "in"
	OpILike FilterOp = "ilike" // case-insensitive substring
)

type Filter struct {
	Column string
	Op     FilterOp
	Value  any   // eq, ilike
	Values []any // in
}

func Eq(col string, v any) Filter { return Filter{Column: col, Op: OpEq, Value: v} }

func In(col string, vs ...any) Filter { return Filter{Column: col, Op: OpIn, Values: vs} }

// ILike matches rows whose column contains s, ignoring case.
func ILike(col, s string) Filter { return Filter{Column: col, Op: OpILike, Value: s} }

type Order struct {
	Column    string
	Ascending bool
}

// Range selects rows From..To inclusive (zero-based), like PostgREST ranges.
type Range struct {
	From int
	To   int
}

type Query struct {
	Filters []Filter
	Order   Order
	Range   *Range
}

// Fields are column values for inserts and updates.
type Fields map[string]any

// Row is one record as returned by the backend. Numeric values may arrive
// as int64 (SQL drivers) or float64 (JSON), so read them through the
// typed accessors.
type Row map[string]any

func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	}
	return 0
}

func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Time reads unix seconds, RFC 3339 strings or time.Time.
func (r Row) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	if n := r.Int64(col); n != 0 {
		return time.Unix(n, 0).UTC()
	}
	return time.Time{}
}
