package filtering

import (
	"errors"
	"fmt"

	"github.com/denisok6893-rgb/building-insights/internal/domain"
)

var ErrUnknownView = errors.New("unknown view")

type Engine struct {
	views map[string]View
	order []string
}

func NewEngine(views []View) (*Engine, error) {
	if err := ValidateViews(views); err != nil {
		return nil, err
	}
	e := &Engine{views: make(map[string]View, len(views))}
	for _, v := range views {
		e.views[v.Name] = v
		e.order = append(e.order, v.Name)
	}
	return e, nil
}

// Views returns the configured views in configuration order.
func (e *Engine) Views() []View {
	out := make([]View, 0, len(e.order))
	for _, n := range e.order {
		out = append(out, e.views[n])
	}
	return out
}

func (e *Engine) View(name string) (View, bool) {
	v, ok := e.views[name]
	return v, ok
}

// Restrict drops criteria the named view does not expose.
func (e *Engine) Restrict(view string, c Criteria) (Criteria, error) {
	v, ok := e.views[view]
	if !ok {
		return Criteria{}, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
	return c.Only(v.Criteria), nil
}

// ApplyView filters records with the criteria the named view exposes.
func (e *Engine) ApplyView(view string, records []domain.Record, c Criteria) ([]domain.Record, error) {
	rc, err := e.Restrict(view, c)
	if err != nil {
		return nil, err
	}
	return Apply(records, rc), nil
}

type exactCheck struct {
	field string
	parse Parse
	want  string
}

type boundCheck struct {
	field string
	parse Parse
	kind  Kind
	bound float64
}

// Apply returns the records passing every active criterion, in input order.
// With no active criteria the input slice is returned as is.
func Apply(records []domain.Record, c Criteria) []domain.Record {
	if c.IsEmpty() {
		return records
	}

	// resolve once, in definition order, so evaluation is deterministic
	var (
		exacts []exactCheck
		bounds []boundCheck
	)
	for _, d := range definitions {
		if v, ok := c.exact[d.Name]; ok {
			exacts = append(exacts, exactCheck{d.Field, d.Parse, v})
		}
		if b, ok := c.bounds[d.Name]; ok {
			bounds = append(bounds, boundCheck{d.Field, d.Parse, d.Kind, b})
		}
	}

	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if passes(r, exacts, bounds) {
			out = append(out, r)
		}
	}
	return out
}

func passes(r domain.Record, exacts []exactCheck, bounds []boundCheck) bool {
	for _, x := range exacts {
		if normalize(r.Get(x.field), x.parse) != x.want {
			return false
		}
	}
	for _, b := range bounds {
		// a value that does not parse fails every bound on its field
		v, ok := parseNumber(r.Get(b.field), b.parse)
		if !ok {
			return false
		}
		if b.kind == Min && v < b.bound {
			return false
		}
		if b.kind == Max && v > b.bound {
			return false
		}
	}
	return true
}
