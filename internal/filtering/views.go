package filtering

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// View names a page variant and the criteria its form exposes.
type View struct {
	Name     string   `yaml:"name" json:"name"`
	Criteria []string `yaml:"criteria" json:"criteria"`
}

// Exposes reports whether the view accepts the named criterion.
func (v View) Exposes(name string) bool {
	for _, c := range v.Criteria {
		if c == name {
			return true
		}
	}
	return false
}

// DefaultViews mirrors the dashboard pages: the overview page with the
// four basic selects, the main dashboard with the extra filters, and the
// analytics page with the full sidebar.
func DefaultViews() []View {
	all := make([]string, 0, len(definitions))
	for _, d := range definitions {
		all = append(all, d.Name)
	}
	return []View{
		{Name: "overview", Criteria: []string{Area, BuildingType, Status, Year}},
		{Name: "dashboard", Criteria: append([]string(nil), all...)},
		{Name: "analytics", Criteria: append([]string(nil), all...)},
	}
}

type viewsFile struct {
	Views []View `yaml:"views"`
}

// LoadViewsFromFile reads view definitions from a YAML (or JSON) file. On
// read or parse errors the defaults are returned together with the error.
func LoadViewsFromFile(path string) ([]View, error) {
	def := DefaultViews()
	b, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("read views file: %w", err)
	}
	var vf viewsFile
	if err := yaml.Unmarshal(b, &vf); err != nil {
		return def, fmt.Errorf("unmarshal views: %w", err)
	}
	if err := ValidateViews(vf.Views); err != nil {
		return def, err
	}
	return vf.Views, nil
}

func ValidateViews(views []View) error {
	if len(views) == 0 {
		return errors.New("no views configured")
	}
	seen := make(map[string]struct{}, len(views))
	for _, v := range views {
		if v.Name == "" {
			return errors.New("view without name")
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("duplicate view %q", v.Name)
		}
		seen[v.Name] = struct{}{}
		for _, c := range v.Criteria {
			if _, ok := byName[c]; !ok {
				return fmt.Errorf("view %q: unknown criterion %q", v.Name, c)
			}
		}
	}
	return nil
}
