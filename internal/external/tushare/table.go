package tushare

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/limitup/internal/contracts"
)

// table is a decoded {fields, items} payload
type table struct {
	fields []string
	items  [][]interface{}
	index  map[string]int
	loc    *time.Location
}

func newTable(fields []string, items [][]interface{}, loc *time.Location) *table {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		index[f] = i
	}
	return &table{fields: fields, items: items, index: index, loc: loc}
}

// Len returns the number of rows
func (t *table) Len() int {
	return len(t.items)
}

func (t *table) value(row int, field string) interface{} {
	i, ok := t.index[field]
	if !ok || row >= len(t.items) || i >= len(t.items[row]) {
		return nil
	}
	return t.items[row][i]
}

// str returns a string cell ("" for null)
func (t *table) str(row int, field string) string {
	switch v := t.value(row, field).(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// num returns a numeric cell and whether it was present
func (t *table) num(row int, field string) (float64, bool) {
	switch v := t.value(row, field).(type) {
	case float64:
		if math.IsNaN(v) {
			return 0, false
		}
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// float returns a numeric cell or 0
func (t *table) float(row int, field string) float64 {
	v, _ := t.num(row, field)
	return v
}

// integer returns a numeric cell truncated to int
func (t *table) integer(row int, field string) int {
	return int(t.float(row, field))
}

// date parses a YYYYMMDD cell in the exchange timezone
func (t *table) date(row int, field string) (time.Time, bool) {
	s := t.str(row, field)
	if s == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(contracts.DateLayout, s, t.loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// clock returns an HHMMSS cell zero-padded to six digits ("" if absent)
func (t *table) clock(row int, field string) string {
	switch v := t.value(row, field).(type) {
	case float64:
		return fmt.Sprintf("%06d", int(v))
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ":", "")
		if s == "" {
			return ""
		}
		if len(s) < 6 {
			s = strings.Repeat("0", 6-len(s)) + s
		}
		return s
	default:
		return ""
	}
}
