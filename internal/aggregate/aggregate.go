package aggregate

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/denisok6893-rgb/building-insights/internal/domain"
	"github.com/denisok6893-rgb/building-insights/internal/filtering"
)

// Mean is an arithmetic mean that may be undefined (NaN). Undefined means
// encode as JSON null so clients can render a blank.
type Mean float64

func (m Mean) Valid() bool {
	f := float64(m)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (m Mean) MarshalJSON() ([]byte, error) {
	if !m.Valid() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(m), 'f', -1, 64), nil
}

// Undefined is the mean of an empty sequence.
var Undefined = Mean(math.NaN())

// MeanOf sums field over records and divides by len(records). A value that
// does not parse as a number makes the mean undefined.
func MeanOf(records []domain.Record, field string) Mean {
	if len(records) == 0 {
		return Undefined
	}
	var sum float64
	for _, r := range records {
		v, ok := parseFloat(r.Get(field))
		if !ok {
			return Undefined
		}
		sum += v
	}
	return Mean(sum / float64(len(records)))
}

// Count is one group of a grouped count.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// GroupCount counts records per distinct value of field, in first-seen order.
func GroupCount(records []domain.Record, field string) []Count {
	idx := make(map[string]int)
	var out []Count
	for _, r := range records {
		key := filtering.Normalize(field, r.Get(field))
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, Count{Value: key})
		}
		out[i].Count++
	}
	return out
}

// CountMap flattens grouped counts into value -> count.
func CountMap(counts []Count) map[string]int {
	m := make(map[string]int, len(counts))
	for _, c := range counts {
		m[c.Value] = c.Count
	}
	return m
}

// Order selects the direction for value-sorted series.
type Order int

const (
	Ascending Order = iota
	Descending
)

// SortCounts sorts groups by value, numerically when both values are numbers.
// Each value keeps its own count.
func SortCounts(counts []Count, order Order) []Count {
	out := append([]Count(nil), counts...)
	sort.SliceStable(out, func(i, j int) bool {
		if order == Descending {
			return lessValue(out[j].Value, out[i].Value)
		}
		return lessValue(out[i].Value, out[j].Value)
	})
	return out
}

// GroupMean is the mean of a numeric field within one category.
type GroupMean struct {
	Value string `json:"value"`
	Mean  Mean   `json:"mean"`
	Count int    `json:"count"`
}

// GroupMeans computes, per distinct groupField value in first-seen order, the
// mean of valueField over the records carrying that value.
func GroupMeans(records []domain.Record, groupField, valueField string) []GroupMean {
	groups := make(map[string][]domain.Record)
	var order []string
	for _, r := range records {
		key := filtering.Normalize(groupField, r.Get(groupField))
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	out := make([]GroupMean, 0, len(order))
	for _, key := range order {
		g := groups[key]
		out = append(out, GroupMean{Value: key, Mean: MeanOf(g, valueField), Count: len(g)})
	}
	return out
}

// DistinctValues returns the non-empty values of field in first-seen order.
func DistinctValues(records []domain.Record, field string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		v := filtering.Normalize(field, r.Get(field))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SortValues orders values the same way SortCounts orders groups.
func SortValues(values []string, order Order) []string {
	out := append([]string(nil), values...)
	sort.SliceStable(out, func(i, j int) bool {
		if order == Descending {
			return lessValue(out[j], out[i])
		}
		return lessValue(out[i], out[j])
	})
	return out
}

func lessValue(a, b string) bool {
	fa, okA := parseFloat(a)
	fb, okB := parseFloat(b)
	switch {
	case okA && okB:
		return fa < fb
	case okA != okB:
		// numbers before text
		return okA
	default:
		return a < b
	}
}

func parseFloat(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
