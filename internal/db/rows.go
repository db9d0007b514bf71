package db

import (
	"strconv"
)

// row gives typed access to one result row by column name.
type row struct {
	index  map[string]int
	values []any
}

func rowsOf(r *Result) []row {
	index := make(map[string]int, len(r.Columns))
	for i, c := range r.Columns {
		index[c] = i
	}
	out := make([]row, len(r.Rows))
	for i, values := range r.Rows {
		out[i] = row{index: index, values: values}
	}
	return out
}

func (r row) value(col string) any {
	i, ok := r.index[col]
	if !ok || i >= len(r.values) {
		return nil
	}
	return r.values[i]
}

func (r row) str(col string) string {
	switch v := r.value(col).(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func (r row) strPtr(col string) *string {
	if r.value(col) == nil {
		return nil
	}
	s := r.str(col)
	return &s
}

func (r row) int(col string) int {
	switch v := r.value(col).(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func (r row) float(col string) float64 {
	switch v := r.value(col).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func (r row) floatPtr(col string) *float64 {
	if r.value(col) == nil {
		return nil
	}
	f := r.float(col)
	return &f
}
