package catalogue

import (
	"strings"
	"testing"
	"time"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, key := range []string{"welcome_senior", "health_reminder", "premium_offer", "sms_urgent"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("missing template %q", key)
		}
	}
}

func TestRender(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tpl, _ := c.Get("health_reminder")

	subject, body, err := tpl.Render(Recipient{FirstName: "Jeanne", FullName: "Jeanne Martin", City: "Lyon"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "Votre couverture santé, Jeanne" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Bonjour Jeanne Martin") || !strings.Contains(body, "près de Lyon") {
		t.Fatalf("unexpected body %q", body)
	}

	_, body, _ = tpl.Render(Recipient{FirstName: "Paul", FullName: "Paul Durand"})
	if strings.Contains(body, "près de") {
		t.Fatalf("empty city should be omitted: %q", body)
	}
}

func TestTriggered(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	premium := c.Triggered(TriggerProspectCreated, "premium")
	if len(premium) != 1 || premium[0].Key != "welcome_senior" || premium[0].Delay() != 0 {
		t.Fatalf("unexpected premium intake templates %+v", premium)
	}
	if got := c.Triggered(TriggerProspectCreated, "standard"); len(got) != 0 {
		t.Fatalf("welcome sequence targets premium only, got %+v", got)
	}
	if got := c.Triggered(TriggerManual, "premium"); len(got) != 2 {
		t.Fatalf("sms templates are never triggered, got %d", len(got))
	}

	tpl, _ := c.Get("health_reminder")
	if tpl.Delay() != 72*time.Hour {
		t.Fatalf("unexpected delay %v", tpl.Delay())
	}
}

func TestParseRejectsDuplicates(t *testing.T) {
	data := []byte(`
templates:
  - key: a
    subject: x
    body: y
  - key: a
    subject: x
    body: y
`)
	if _, err := Parse(data); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestParseRejectsBrokenTemplate(t *testing.T) {
	data := []byte(`
templates:
  - key: broken
    subject: "{{.FirstName"
    body: ok
`)
	if _, err := Parse(data); err == nil {
		t.Fatal("expected template parse error")
	}
}
