// Package prompts holds the stage prompt templates sent to the completion API.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/Messijah/PedagogiskDialog/internal/models"
)

//go:embed templates.yaml
var defaultCatalogue []byte

// Input carries the values a stage template may reference. Body is the long
// text (transcript or conclusions) that gets chunked when it is too large.
type Input struct {
	Problem              string
	Participants         string
	Context              string
	SelectedPerspectives string
	Body                 string
	Supplement           string
}

type catalogue struct {
	System  string         `yaml:"system"`
	Stages  map[int]string `yaml:"stages"`
	Combine string         `yaml:"combine"`
	Merge   string         `yaml:"merge"`
}

// Catalogue is a parsed, ready to render set of templates.
type Catalogue struct {
	system  string
	stages  map[int]*template.Template
	combine *template.Template
	merge   *template.Template
}

// Default returns the built-in templates.
func Default() *Catalogue {
	c, err := Parse(defaultCatalogue)
	if err != nil {
		panic(fmt.Sprintf("prompts: built-in templates are invalid: %v", err))
	}
	return c
}

// LoadFile reads a replacement catalogue from disk.
func LoadFile(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompts: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("prompts: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and compiles a YAML catalogue. Every stage must be present.
func Parse(data []byte) (*Catalogue, error) {
	var raw catalogue
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode catalogue: %w", err)
	}
	if strings.TrimSpace(raw.System) == "" {
		return nil, fmt.Errorf("system prompt is empty")
	}

	c := &Catalogue{
		system: strings.TrimSpace(raw.System),
		stages: make(map[int]*template.Template, models.StageCount),
	}
	for n := 1; n <= models.StageCount; n++ {
		text, ok := raw.Stages[n]
		if !ok || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("template for stage %d is missing", n)
		}
		tmpl, err := template.New(fmt.Sprintf("stage%d", n)).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse stage %d: %w", n, err)
		}
		c.stages[n] = tmpl
	}

	var err error
	if c.combine, err = template.New("combine").Parse(raw.Combine); err != nil {
		return nil, fmt.Errorf("parse combine: %w", err)
	}
	if c.merge, err = template.New("merge").Parse(raw.Merge); err != nil {
		return nil, fmt.Errorf("parse merge: %w", err)
	}
	return c, nil
}

// System returns the system prompt sent with every request.
func (c *Catalogue) System() string {
	return c.system
}

// Stage renders the template of stage n.
func (c *Catalogue) Stage(n int, in Input) (string, error) {
	tmpl, ok := c.stages[n]
	if !ok {
		return "", models.ErrInvalidStage
	}
	return render(tmpl, in)
}

// Combine renders the prompt that joins partial analyses into one.
func (c *Catalogue) Combine(parts []string) (string, error) {
	return render(c.combine, struct{ Parts []string }{parts})
}

// Merge renders the prompt that joins already combined summaries.
func (c *Catalogue) Merge(parts []string) (string, error) {
	return render(c.merge, struct{ Parts []string }{parts})
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
