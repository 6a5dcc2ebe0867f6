package patterns

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk override format:
//
//	languages:
//	  en:
//	    chapter: ['(?i)^episode\s+(\d+)\s*(?::\s*(.*))?$']
//	    dialogue: ['"']
//	  nl:
//	    replace: true
//	    chapter: ['(?i)^hoofdstuk\s+(\d+)\s*(?::\s*(.*))?$']
type FileConfig struct {
	Languages map[string]LanguageOverride `yaml:"languages"`
}

// LanguageOverride holds extra patterns for one language. Patterns are
// tried before the built-in ones unless Replace is set.
type LanguageOverride struct {
	Replace  bool     `yaml:"replace"`
	Chapter  []string `yaml:"chapter"`
	Section  []string `yaml:"section"`
	Dialogue []string `yaml:"dialogue"`
}

// LoadFile reads a YAML override file and merges it over the built-in tables.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patterns file: %w", err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse patterns file %s: %w", path, err)
	}
	return Builtin().Merge(cfg)
}

// Merge returns a new registry with cfg applied. Languages without a
// built-in table start from a copy of the English one.
func (r *Registry) Merge(cfg FileConfig) (*Registry, error) {
	out := &Registry{tables: make(map[Language]*Table, len(r.tables)+len(cfg.Languages))}
	for lang, t := range r.tables {
		out.tables[lang] = t.clone()
	}

	for code, o := range cfg.Languages {
		lang := NormalizeLanguage(code)
		chapter, err := compileAll(o.Chapter)
		if err != nil {
			return nil, fmt.Errorf("language %s chapter: %w", code, err)
		}
		section, err := compileAll(o.Section)
		if err != nil {
			return nil, fmt.Errorf("language %s section: %w", code, err)
		}

		base, ok := out.tables[lang]
		if !ok {
			base = out.tables[DefaultLanguage].clone()
		}
		if o.Replace {
			base = &Table{Dialogue: base.Dialogue}
		}
		t := &Table{
			Chapter:  append(chapter, base.Chapter...),
			Section:  append(section, base.Section...),
			Dialogue: base.Dialogue,
		}
		if len(o.Dialogue) > 0 {
			t.Dialogue = append([]string(nil), o.Dialogue...)
		}
		out.tables[lang] = t
	}
	return out, nil
}

func compileAll(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}
