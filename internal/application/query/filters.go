package query

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Filters is the current set of list filters, keyed by query parameter
type Filters map[string]string

// Apply returns a copy of f with one edit applied:
//
//	key=value  sets key
//	key=       clears key
//	reset      clears everything
func (f Filters) Apply(edit string) (Filters, error) {
	edit = strings.TrimSpace(edit)
	if edit == "reset" {
		return Filters{}, nil
	}

	key, value, ok := strings.Cut(edit, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return f, fmt.Errorf("expected key=value, got %q", edit)
	}

	out := make(Filters, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	if value = strings.TrimSpace(value); value == "" {
		delete(out, key)
	} else {
		out[key] = value
	}
	return out, nil
}

// Values encodes the non-empty filters as query parameters
func (f Filters) Values() url.Values {
	q := url.Values{}
	for k, v := range f {
		if v != "" {
			q.Set(k, v)
		}
	}
	return q
}

// String renders the filters as sorted key=value pairs
func (f Filters) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+f[k])
	}
	return strings.Join(parts, " ")
}
