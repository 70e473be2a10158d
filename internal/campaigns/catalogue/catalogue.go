// Package catalogue holds the built-in campaign templates.
package catalogue

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var embeddedTemplates []byte

// Triggers a template can start on. Manual templates only go out through a
// launched campaign.
const (
	TriggerManual          = "manual"
	TriggerProspectCreated = "prospect_created"
)

// Template is one reusable campaign message.
type Template struct {
	Key         string `yaml:"key" json:"key"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Channel     string `yaml:"channel" json:"channel"`
	Target      string `yaml:"target" json:"target"`
	Trigger     string `yaml:"trigger" json:"trigger"`
	DelayDays   int    `yaml:"delay_days" json:"delayDays"`
	Subject     string `yaml:"subject" json:"subject"`
	Body        string `yaml:"body" json:"body"`

	subject *template.Template
	body    *template.Template
}

// Recipient is the data a template can reference.
type Recipient struct {
	FirstName string
	LastName  string
	FullName  string
	City      string
	Segment   string
}

type Catalogue struct {
	Templates []Template `yaml:"templates"`
	byKey     map[string]*Template
}

// Load parses the embedded catalogue.
func Load() (*Catalogue, error) {
	return Parse(embeddedTemplates)
}

// Parse decodes a catalogue and compiles every template. Keys must be unique.
func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode campaign templates: %w", err)
	}

	c.byKey = make(map[string]*Template, len(c.Templates))
	for i := range c.Templates {
		t := &c.Templates[i]
		if t.Key == "" {
			return nil, fmt.Errorf("campaign template %d has no key", i)
		}
		if _, dup := c.byKey[t.Key]; dup {
			return nil, fmt.Errorf("duplicate campaign template %q", t.Key)
		}
		var err error
		if t.subject, err = template.New(t.Key + ".subject").Parse(t.Subject); err != nil {
			return nil, fmt.Errorf("campaign template %q subject: %w", t.Key, err)
		}
		if t.body, err = template.New(t.Key + ".body").Parse(t.Body); err != nil {
			return nil, fmt.Errorf("campaign template %q body: %w", t.Key, err)
		}
		c.byKey[t.Key] = t
	}
	return &c, nil
}

// Get returns the template for key.
func (c *Catalogue) Get(key string) (*Template, bool) {
	t, ok := c.byKey[key]
	return t, ok
}

// Triggered returns the email templates started by trigger for a prospect in
// segment.
func (c *Catalogue) Triggered(trigger, segment string) []*Template {
	var out []*Template
	for i := range c.Templates {
		t := &c.Templates[i]
		if t.Trigger != trigger || t.Channel != "email" {
			continue
		}
		if t.Target != "all" && t.Target != segment {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Delay is how long after the trigger the message goes out.
func (t *Template) Delay() time.Duration {
	if t.DelayDays <= 0 {
		return 0
	}
	return time.Duration(t.DelayDays) * 24 * time.Hour
}

// Render fills the subject and body for one recipient.
func (t *Template) Render(r Recipient) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := t.subject.Execute(&buf, r); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", t.Key, err)
	}
	subject = strings.TrimSpace(buf.String())

	buf.Reset()
	if err := t.body.Execute(&buf, r); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", t.Key, err)
	}
	return subject, strings.TrimSpace(buf.String()), nil
}
