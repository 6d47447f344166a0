package sms

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Templates renders the message text for each booking event type.
type Templates struct {
	byType map[string]*template.Template
}

// templateFile is the YAML layout: event type to template text.
type templateFile struct {
	Templates map[string]string `yaml:"templates"`
}

// DefaultTemplates returns the built-in message templates.
func DefaultTemplates() (*Templates, error) { return ParseTemplates(defaultTemplates) }

// LoadTemplates reads templates from a YAML file.  An empty path
// returns the defaults.  Types missing from the file fall back to the
// default text.
func LoadTemplates(path string) (*Templates, error) {
	if path == "" {
		return DefaultTemplates()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sms templates: %w", err)
	}
	t, err := ParseTemplates(raw)
	if err != nil {
		return nil, err
	}
	def, err := DefaultTemplates()
	if err != nil {
		return nil, err
	}
	for typ, tpl := range def.byType {
		if _, ok := t.byType[typ]; !ok {
			t.byType[typ] = tpl
		}
	}
	return t, nil
}

// ParseTemplates parses YAML template definitions.
func ParseTemplates(raw []byte) (*Templates, error) {
	var f templateFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse sms templates: %w", err)
	}
	t := &Templates{byType: make(map[string]*template.Template, len(f.Templates))}
	for typ, text := range f.Templates {
		tpl, err := template.New(typ).Option("missingkey=error").Parse(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("parse sms template %q: %w", typ, err)
		}
		t.byType[typ] = tpl
	}
	return t, nil
}

// Has reports whether a template exists for the event type.
func (t *Templates) Has(typ string) bool {
	_, ok := t.byType[typ]
	return ok
}

// Render executes the template for typ against data.
func (t *Templates) Render(typ string, data any) (string, error) {
	tpl, ok := t.byType[typ]
	if !ok {
		return "", fmt.Errorf("no sms template for %q", typ)
	}
	var b strings.Builder
	if err := tpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render sms template %q: %w", typ, err)
	}
	return b.String(), nil
}
