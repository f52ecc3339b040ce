// Package i18n resolves recipient languages and renders localized, pluralized phrases
// from the embedded language tables under lang/.
package i18n

import (
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed lang/*.yaml
var langFS embed.FS

// Phrase is a structured description resolved against a language table.
type Phrase struct {
	Key    string
	Count  int
	Params map[string]string
}

type pluralForms struct {
	One   string `yaml:"one"`
	Other string `yaml:"other"`
}

type table struct {
	Name       string                 `yaml:"name"`
	DateFormat string                 `yaml:"date_format"`
	Months     []string               `yaml:"months"`
	Phrases    map[string]pluralForms `yaml:"phrases"`
}

// Catalog holds the language tables of every supported language.
type Catalog struct {
	tables    map[string]*table
	supported []string
	fallback  string
}

// Load reads the embedded tables for the supported languages. fallback must be one of them.
func Load(supported []string, fallback string) (*Catalog, error) {
	c := &Catalog{tables: make(map[string]*table, len(supported))}
	for _, code := range supported {
		code = strings.ToLower(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		data, err := langFS.ReadFile("lang/" + code + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("no language table for %q: %w", code, err)
		}
		var t table
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse language table %q: %w", code, err)
		}
		if len(t.Months) != 12 {
			return nil, fmt.Errorf("language table %q: expected 12 month names, got %d", code, len(t.Months))
		}
		c.tables[code] = &t
		c.supported = append(c.supported, code)
	}
	fallback = strings.ToLower(strings.TrimSpace(fallback))
	if _, ok := c.tables[fallback]; !ok {
		return nil, fmt.Errorf("default language %q is not in the supported set %v", fallback, c.supported)
	}
	c.fallback = fallback
	return c, nil
}

// Default returns the fallback language code.
func (c *Catalog) Default() string { return c.fallback }

// Supported returns the supported language codes in configured order.
func (c *Catalog) Supported() []string {
	out := make([]string, len(c.supported))
	copy(out, c.supported)
	return out
}

// IsSupported reports whether code is exactly one of the supported base languages.
func (c *Catalog) IsSupported(code string) bool {
	_, ok := c.tables[code]
	return ok
}

// Name returns the native display name of a supported language.
func (c *Catalog) Name(code string) string {
	if t, ok := c.tables[code]; ok {
		return t.Name
	}
	return code
}

// Resolve maps any language tag ("de-AT", "FR", "pt") to a supported base language,
// falling back to the default for unknown or unsupported codes.
func (c *Catalog) Resolve(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return c.fallback
	}
	tag, err := language.Parse(code)
	if err != nil {
		return c.fallback
	}
	base, _ := tag.Base()
	if c.IsSupported(base.String()) {
		return base.String()
	}
	return c.fallback
}

// FromAcceptLanguage resolves the highest weighted entry of an Accept-Language header.
func (c *Catalog) FromAcceptLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return c.fallback
	}
	return c.Resolve(tags[0].String())
}

// Translate renders p in lang. Missing keys fall back to the default language and then to the key itself.
func (c *Catalog) Translate(lang string, p Phrase) string {
	forms, ok := c.table(lang).Phrases[p.Key]
	if !ok {
		forms, ok = c.tables[c.fallback].Phrases[p.Key]
	}
	if !ok {
		return p.Key
	}
	text := forms.Other
	if p.Count == 1 && forms.One != "" {
		text = forms.One
	}
	text = strings.ReplaceAll(text, "{count}", strconv.Itoa(p.Count))
	for k, v := range p.Params {
		text = strings.ReplaceAll(text, "{"+k+"}", v)
	}
	return text
}

// FormatDate renders t as day, month name and year in the language's order.
func (c *Catalog) FormatDate(lang string, t time.Time) string {
	tbl := c.table(lang)
	r := strings.NewReplacer(
		"{day}", strconv.Itoa(t.Day()),
		"{month}", tbl.Months[int(t.Month())-1],
		"{year}", strconv.Itoa(t.Year()),
	)
	return r.Replace(tbl.DateFormat)
}

func (c *Catalog) table(lang string) *table {
	if t, ok := c.tables[lang]; ok {
		return t
	}
	return c.tables[c.fallback]
}
