package notify

import (
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/conference-hub/internal/domain"
)

// Template is the Liquid source of one notification kind.
type Template struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// DefaultTemplates are used for any template not overridden in config.
var DefaultTemplates = map[string]Template{
	domain.TemplateRegistrationConfirmation: {
		Subject: "Registration confirmed: {{ form_title }}",
		Body: "<p>Dear {{ first_name | default: \"participant\" }},</p>" +
			"<p>your registration to {{ form_title }} has been received.</p>",
	},
	domain.TemplateRegistrationModified: {
		Subject: "Registration updated: {{ form_title }}",
		Body: "<p>Dear {{ first_name | default: \"participant\" }},</p>" +
			"<p>your registration to {{ form_title }} was updated.</p>" +
			"{% if changed_fields.size > 0 %}<p>Changed: {{ changed_fields | join: \", \" }}</p>{% endif %}",
	},
	domain.TemplateInvitation: {
		Subject: "{{ subject | default: form_title }}",
		Body:    "<p>Dear {{ first_name }} {{ last_name }},</p>{{ body }}",
	},
	domain.TemplateReminder: {
		Subject: "{{ subject }}",
		Body:    "{{ body }}",
	},
}

// Rendered is a notification turned into message content.
type Rendered struct {
	Subject string
	HTML    string
}

// Renderer renders notification templates. Parsed templates are cached.
type Renderer struct {
	engine    *liquid.Engine
	templates map[string]Template
	cache     sync.Map // map[string]*liquid.Template
}

// NewRenderer creates a renderer. overrides replace DefaultTemplates entries
// with the same name.
func NewRenderer(overrides map[string]Template) *Renderer {
	engine := liquid.NewEngine()
	engine.RegisterFilter("default", func(value interface{}, fallback interface{}) interface{} {
		if value == nil || fmt.Sprint(value) == "" {
			return fallback
		}
		return value
	})
	engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})

	templates := make(map[string]Template, len(DefaultTemplates)+len(overrides))
	for name, t := range DefaultTemplates {
		templates[name] = t
	}
	for name, t := range overrides {
		templates[name] = t
	}
	return &Renderer{engine: engine, templates: templates}
}

// Render produces subject and body for n.
func (r *Renderer) Render(n domain.Notification) (*Rendered, error) {
	t, ok := r.templates[n.Template]
	if !ok {
		return nil, fmt.Errorf("unknown notification template %q", n.Template)
	}
	subject, err := r.render(n.Template+":subject", t.Subject, n.Context)
	if err != nil {
		return nil, fmt.Errorf("render %s subject: %w", n.Template, err)
	}
	body, err := r.render(n.Template+":body", t.Body, n.Context)
	if err != nil {
		return nil, fmt.Errorf("render %s body: %w", n.Template, err)
	}
	return &Rendered{Subject: strings.TrimSpace(subject), HTML: body}, nil
}

// RenderString renders user-provided Liquid source without caching it.
func (r *Renderer) RenderString(src string, vars map[string]any) (string, error) {
	out, err := r.engine.ParseAndRenderString(src, vars)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (r *Renderer) render(key, src string, vars map[string]any) (string, error) {
	var tpl *liquid.Template
	if cached, ok := r.cache.Load(key); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := r.engine.ParseString(src)
		if err != nil {
			return "", err
		}
		r.cache.Store(key, parsed)
		tpl = parsed
	}
	out, err := tpl.RenderString(vars)
	if err != nil {
		return "", err
	}
	return out, nil
}
