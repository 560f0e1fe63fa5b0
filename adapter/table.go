package adapter

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/pageclip/cleaner"
	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultSelectors []byte

// Table holds the compiled selector rules of every platform.
type Table map[string]Rules

// Rules is one platform's compiled selector lists, keyed by field name.
type Rules struct {
	platform string
	fields   map[string]field
}

type field struct {
	each  []cascadia.Selector
	group cascadia.Selector
}

// DefaultTable compiles the embedded selector tables.
func DefaultTable() (Table, error) {
	return LoadTable(defaultSelectors)
}

// LoadTable parses and compiles a YAML selector document. Any selector that
// does not compile fails the whole load.
func LoadTable(data []byte) (Table, error) {
	var raw map[string]map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("adapter: parse selector table: %w", err)
	}

	table := make(Table, len(raw))
	for platform, fields := range raw {
		rules := Rules{platform: platform, fields: make(map[string]field, len(fields))}
		for name, list := range fields {
			if len(list) == 0 {
				return nil, fmt.Errorf("adapter: %s.%s: empty selector list", platform, name)
			}
			f := field{each: make([]cascadia.Selector, 0, len(list))}
			for _, s := range list {
				m, err := cascadia.Compile(s)
				if err != nil {
					return nil, fmt.Errorf("adapter: %s.%s: selector %q: %w", platform, name, s, err)
				}
				f.each = append(f.each, m)
			}
			group, err := cascadia.Compile(strings.Join(list, ", "))
			if err != nil {
				return nil, fmt.Errorf("adapter: %s.%s: %w", platform, name, err)
			}
			f.group = group
			rules.fields[name] = f
		}
		table[platform] = rules
	}
	return table, nil
}

// Rules returns a platform's rules. Unknown platforms get empty rules whose
// lookups all come back empty.
func (t Table) Rules(platform string) Rules {
	if r, ok := t[platform]; ok {
		return r
	}
	return Rules{platform: platform}
}

// Platforms lists the platforms in the table, sorted.
func (t Table) Platforms() []string {
	out := make([]string, 0, len(t))
	for p := range t {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Has reports whether the field has selectors.
func (r Rules) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Node returns the first element matched by the earliest selector in the
// field's list that matches anything, or an empty selection.
func (r Rules) Node(scope *goquery.Selection, name string) *goquery.Selection {
	f, ok := r.fields[name]
	if !ok || scope == nil {
		return empty(scope)
	}
	for _, m := range f.each {
		if hit := scope.FindMatcher(m); hit.Length() > 0 {
			return hit.First()
		}
	}
	return empty(scope)
}

// First is like Node but skips elements without text.
func (r Rules) First(scope *goquery.Selection, name string) *goquery.Selection {
	f, ok := r.fields[name]
	if !ok || scope == nil {
		return empty(scope)
	}
	for _, m := range f.each {
		var hit *goquery.Selection
		scope.FindMatcher(m).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if strings.TrimSpace(s.Text()) != "" {
				hit = s
				return false
			}
			return true
		})
		if hit != nil {
			return hit
		}
	}
	return empty(scope)
}

// Earliest returns every element matched by the earliest selector in the
// field's list that matches anything.
func (r Rules) Earliest(scope *goquery.Selection, name string) *goquery.Selection {
	f, ok := r.fields[name]
	if !ok || scope == nil {
		return empty(scope)
	}
	for _, m := range f.each {
		if hit := scope.FindMatcher(m); hit.Length() > 0 {
			return hit
		}
	}
	return empty(scope)
}

// Closest returns the nearest ancestor-or-self of sel matched by the field.
func (r Rules) Closest(sel *goquery.Selection, name string) *goquery.Selection {
	f, ok := r.fields[name]
	if !ok || sel == nil {
		return empty(sel)
	}
	return sel.ClosestMatcher(f.group)
}

// Text is the cleaned text of First.
func (r Rules) Text(scope *goquery.Selection, name string) string {
	return cleaner.CleanContent(r.First(scope, name).Text())
}

// TextOr is Text with a fallback for a missing element.
func (r Rules) TextOr(scope *goquery.Selection, name, fallback string) string {
	if v := r.Text(scope, name); v != "" {
		return v
	}
	return fallback
}

// All returns every element any of the field's selectors matches, in
// document order.
func (r Rules) All(scope *goquery.Selection, name string) *goquery.Selection {
	f, ok := r.fields[name]
	if !ok || scope == nil {
		return empty(scope)
	}
	return scope.FindMatcher(f.group)
}

// Texts returns the distinct non-empty cleaned texts of All.
func (r Rules) Texts(scope *goquery.Selection, name string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	r.All(scope, name).Each(func(_ int, s *goquery.Selection) {
		text := cleaner.CleanContent(s.Text())
		if text == "" {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		out = append(out, text)
	})
	return out
}

func empty(scope *goquery.Selection) *goquery.Selection {
	if scope == nil {
		return &goquery.Selection{}
	}
	return scope.FindNodes()
}
