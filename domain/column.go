package domain

import (
	"fmt"
	"strings"
)

// Column is one stage of the board. Tasks belong to the column whose ID equals
// their Status.
type Column struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Layout is the fixed, ordered list of columns of a board.
type Layout []Column

// DefaultLayout mirrors the three stages used by the admin dashboard.
func DefaultLayout() Layout {
	return Layout{
		{ID: "0", Name: "DOEN"},
		{ID: "1", Name: "ONDERHANDEN"},
		{ID: "2", Name: "KLAAR"},
	}
}

// Has reports whether status names a column of the layout.
func (l Layout) Has(status string) bool {
	for _, c := range l {
		if c.ID == status {
			return true
		}
	}
	return false
}

// ParseLayout reads a layout from "id:Name,id:Name". A bare id is used as its
// own name.
func ParseLayout(raw string) (Layout, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty column layout")
	}
	var out Layout
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, name, ok := strings.Cut(part, ":")
		id = strings.TrimSpace(id)
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			name = id
		}
		if id == "" {
			return nil, fmt.Errorf("column %q has no id", part)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate column id %q", id)
		}
		seen[id] = struct{}{}
		out = append(out, Column{ID: id, Name: name})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty column layout")
	}
	return out, nil
}
