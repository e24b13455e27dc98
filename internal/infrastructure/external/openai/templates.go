package openai

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
)

//go:embed default_templates.yaml
var defaultTemplates []byte

// MessageTemplate is the subject and body source of one notification template
type MessageTemplate struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// TemplateSet holds parsed templates keyed by template name
type TemplateSet struct {
	subjects map[string]*template.Template
	bodies   map[string]*template.Template
}

// TemplateData is what templates can reference
type TemplateData struct {
	StudentRef    string
	ItemRef       string
	ItemKind      string
	Status        string
	ProjectType   string
	AdvanceAmount float64
	FinalAmount   float64
	PaymentNotes  string
	FileCount     int
}

// DefaultTemplates returns the built-in template set
func DefaultTemplates() (*TemplateSet, error) {
	return ParseTemplates(defaultTemplates)
}

// LoadTemplates reads a YAML template file and layers it over the defaults
func LoadTemplates(path string) (*TemplateSet, error) {
	set, err := DefaultTemplates()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}

	overrides, err := ParseTemplates(data)
	if err != nil {
		return nil, err
	}
	for name := range overrides.subjects {
		set.subjects[name] = overrides.subjects[name]
		set.bodies[name] = overrides.bodies[name]
	}
	return set, nil
}

// ParseTemplates parses a YAML document of name -> {subject, body}
func ParseTemplates(data []byte) (*TemplateSet, error) {
	var raw map[string]MessageTemplate
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal templates: %w", err)
	}

	set := &TemplateSet{
		subjects: make(map[string]*template.Template, len(raw)),
		bodies:   make(map[string]*template.Template, len(raw)),
	}
	for name, mt := range raw {
		subject, err := template.New(name + ".subject").Option("missingkey=error").Parse(mt.Subject)
		if err != nil {
			return nil, fmt.Errorf("failed to parse subject of %s: %w", name, err)
		}
		body, err := template.New(name + ".body").Option("missingkey=error").Parse(mt.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse body of %s: %w", name, err)
		}
		set.subjects[name] = subject
		set.bodies[name] = body
	}
	return set, nil
}

// Render produces the subject and body of a template for an assignment
func (s *TemplateSet) Render(name string, a *entity.Assignment) (string, string, error) {
	subjectTmpl, ok := s.subjects[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", name)
	}

	data := NewTemplateData(a)
	subject, err := execute(subjectTmpl, data)
	if err != nil {
		return "", "", err
	}
	body, err := execute(s.bodies[name], data)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

// Has reports whether the set defines the template
func (s *TemplateSet) Has(name string) bool {
	_, ok := s.subjects[name]
	return ok
}

// NewTemplateData flattens an assignment for template rendering
func NewTemplateData(a *entity.Assignment) TemplateData {
	data := TemplateData{
		StudentRef:    a.StudentRef,
		ItemRef:       a.ItemRef,
		ItemKind:      string(a.ItemKind),
		Status:        a.Status.String(),
		AdvanceAmount: a.Payment.AdvanceAmount,
		FinalAmount:   a.Payment.FinalAmount,
		PaymentNotes:  a.Payment.Notes,
		FileCount:     len(a.DeliveryFiles),
	}
	if a.Requirement != nil {
		data.ProjectType = a.Requirement.ProjectType
	}
	return data
}

func execute(tmpl *template.Template, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
