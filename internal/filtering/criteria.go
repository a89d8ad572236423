package filtering

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/denisok6893-rgb/building-insights/internal/domain"
)

// Kind says how a criterion constrains its field.
type Kind int

const (
	Exact Kind = iota
	Min
	Max
)

// Parse says how field values and criterion values are read before comparing.
type Parse int

const (
	// Text compares trimmed strings.
	Text Parse = iota
	// Canonical compares numbers in canonical decimal form, falling back to
	// trimmed text for values that are not numbers.
	Canonical
	Integer
	Float
)

// Definition binds a criterion name (the form field) to a record field.
type Definition struct {
	Name  string
	Field string
	Kind  Kind
	Parse Parse
}

// Criterion names, matching the filter form field names.
const (
	Area         = "area"
	BuildingType = "type"
	Status       = "status"
	Year         = "year"
	Cluster      = "cluster"
	Priority     = "priority"
	Green        = "green"
	MinFloors    = "minFloors"
	MaxFloors    = "maxFloors"
	MinDevices   = "minDevices"
	MaxDevices   = "maxDevices"
	MinOccupancy = "minOccupancy"
	MaxOccupancy = "maxOccupancy"
	MinEnergy    = "minEnergy"
	MaxEnergy    = "maxEnergy"
)

var definitions = []Definition{
	{Area, domain.FieldArea, Exact, Text},
	{BuildingType, domain.FieldBuildingType, Exact, Text},
	{Status, domain.FieldBuildingStatus, Exact, Text},
	{Year, domain.FieldConstructionYr, Exact, Canonical},
	{Cluster, domain.FieldCluster, Exact, Canonical},
	{Priority, domain.FieldMaintenance, Exact, Text},
	{Green, domain.FieldGreenCertified, Exact, Text},
	{MinFloors, domain.FieldFloors, Min, Integer},
	{MaxFloors, domain.FieldFloors, Max, Integer},
	{MinDevices, domain.FieldSmartDevices, Min, Integer},
	{MaxDevices, domain.FieldSmartDevices, Max, Integer},
	{MinOccupancy, domain.FieldOccupancyRate, Min, Float},
	{MaxOccupancy, domain.FieldOccupancyRate, Max, Float},
	{MinEnergy, domain.FieldEnergyPerSqM, Min, Float},
	{MaxEnergy, domain.FieldEnergyPerSqM, Max, Float},
}

var byName = func() map[string]Definition {
	m := make(map[string]Definition, len(definitions))
	for _, d := range definitions {
		m[d.Name] = d
	}
	return m
}()

// Definitions returns every known criterion in form order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the definition for a criterion name.
func Lookup(name string) (Definition, bool) {
	d, ok := byName[name]
	return d, ok
}

// Criteria is a set of active constraints. The zero value constrains nothing.
type Criteria struct {
	exact  map[string]string
	bounds map[string]float64
}

// InvalidValue reports a form value that could not be used as a criterion.
type InvalidValue struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// SetExact activates an exact-match criterion. An empty value clears it.
func (c *Criteria) SetExact(name, value string) bool {
	d, ok := byName[name]
	if !ok || d.Kind != Exact {
		return false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		delete(c.exact, name)
		return true
	}
	if c.exact == nil {
		c.exact = make(map[string]string)
	}
	c.exact[name] = normalize(value, d.Parse)
	return true
}

// SetBound activates an inclusive range bound.
func (c *Criteria) SetBound(name string, bound float64) bool {
	d, ok := byName[name]
	if !ok || d.Kind == Exact || math.IsNaN(bound) {
		return false
	}
	if c.bounds == nil {
		c.bounds = make(map[string]float64)
	}
	c.bounds[name] = bound
	return true
}

func (c Criteria) IsEmpty() bool {
	return len(c.exact) == 0 && len(c.bounds) == 0
}

// Active lists the names of set criteria in form order.
func (c Criteria) Active() []string {
	var out []string
	for _, d := range definitions {
		if _, ok := c.exact[d.Name]; ok {
			out = append(out, d.Name)
			continue
		}
		if _, ok := c.bounds[d.Name]; ok {
			out = append(out, d.Name)
		}
	}
	return out
}

// Only returns a copy restricted to the given names.
func (c Criteria) Only(names []string) Criteria {
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	var out Criteria
	for n, v := range c.exact {
		if _, ok := allowed[n]; ok {
			if out.exact == nil {
				out.exact = make(map[string]string)
			}
			out.exact[n] = v
		}
	}
	for n, v := range c.bounds {
		if _, ok := allowed[n]; ok {
			if out.bounds == nil {
				out.bounds = make(map[string]float64)
			}
			out.bounds[n] = v
		}
	}
	return out
}

// Form renders the criteria back into form values.
func (c Criteria) Form() map[string]string {
	out := make(map[string]string, len(c.exact)+len(c.bounds))
	for n, v := range c.exact {
		out[n] = v
	}
	for n, v := range c.bounds {
		out[n] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out
}

// FromForm builds criteria from raw form values. Empty values mean no
// constraint. Unknown names and bounds that are not numbers are skipped and
// reported, never treated as errors.
func FromForm(form map[string]string) (Criteria, []InvalidValue) {
	names := make([]string, 0, len(form))
	for n := range form {
		names = append(names, n)
	}
	sort.Strings(names)

	var (
		c       Criteria
		invalid []InvalidValue
	)
	for _, name := range names {
		raw := strings.TrimSpace(form[name])
		if raw == "" {
			continue
		}
		d, ok := byName[name]
		if !ok {
			invalid = append(invalid, InvalidValue{Name: name, Value: raw, Reason: "unknown_criterion"})
			continue
		}
		if d.Kind == Exact {
			c.SetExact(name, raw)
			continue
		}
		bound, ok := parseNumber(raw, d.Parse)
		if !ok {
			invalid = append(invalid, InvalidValue{Name: name, Value: raw, Reason: "not_a_number"})
			continue
		}
		c.SetBound(name, bound)
	}
	return c, invalid
}

// normalize maps a value to the representation used for exact comparison.
func normalize(v string, p Parse) string {
	v = strings.TrimSpace(v)
	if p != Canonical {
		return v
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return v
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Normalize exposes the comparison form of a field value for callers that
// group or list values of categorical-but-numeric fields.
func Normalize(field, value string) string {
	for _, d := range definitions {
		if d.Field == field && d.Kind == Exact {
			return normalize(value, d.Parse)
		}
	}
	return strings.TrimSpace(value)
}

// parseNumber reads v as the numeric type p describes. Integers accept a
// decimal form and truncate it toward zero.
func parseNumber(v string, p Parse) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if p == Integer {
		if n, err := strconv.Atoi(v); err == nil {
			return float64(n), true
		}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if p == Integer {
		return math.Trunc(f), true
	}
	return f, true
}
