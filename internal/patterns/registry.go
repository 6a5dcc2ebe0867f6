package patterns

import (
	"sort"
)

// Registry maps normalized language codes to immutable pattern tables.
// A Registry is read-only after construction.
type Registry struct {
	tables map[Language]*Table
}

// Builtin returns a registry holding the compiled-in tables.
func Builtin() *Registry {
	r := &Registry{tables: make(map[Language]*Table, len(builtin))}
	for lang, t := range builtin {
		r.tables[lang] = t.clone()
	}
	return r
}

var defaultRegistry = Builtin()

// For returns a matcher from the built-in tables.
func For(code string) *Matcher {
	return defaultRegistry.Matcher(code)
}

// Matcher returns the matcher for a language code. Unknown codes use the
// English table.
func (r *Registry) Matcher(code string) *Matcher {
	lang := NormalizeLanguage(code)
	if t, ok := r.tables[lang]; ok {
		return &Matcher{lang: lang, table: t}
	}
	return &Matcher{lang: DefaultLanguage, table: r.tables[DefaultLanguage]}
}

// Supports reports whether the registry has a dedicated table for code.
func (r *Registry) Supports(code string) bool {
	_, ok := r.tables[NormalizeLanguage(code)]
	return ok
}

// Languages lists the configured languages in sorted order.
func (r *Registry) Languages() []Language {
	out := make([]Language, 0, len(r.tables))
	for lang := range r.tables {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
