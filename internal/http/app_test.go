package http

import (
	"context"
	"reflect"
	"testing"

	"premunia_crm_backend/internal/events"
)

type nopBus struct{ subscribed []string }

func (b *nopBus) Publish(context.Context, events.Event)           {}
func (b *nopBus) PublishSync(context.Context, events.Event) error { return nil }
func (b *nopBus) Subscribe(name string, _ events.Handler) {
	b.subscribed = append(b.subscribed, name)
}

type routesOnly struct{ name string }

func (m routesOnly) Name() string                  { return m.name }
func (m routesOnly) RegisterRoutes(*RouterContext) {}

type subscribing struct {
	routesOnly
	event string
}

func (m subscribing) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(m.event, events.HandlerFunc(func(context.Context, events.Event) error { return nil }))
}

func TestSubscribeModules(t *testing.T) {
	bus := &nopBus{}
	app := &App{
		EventBus: bus,
		Modules: []Module{
			routesOnly{name: "goals"},
			subscribing{routesOnly{name: "reporting"}, events.TaskChanged{}.EventName()},
			subscribing{routesOnly{name: "campaigns"}, events.ProspectCreated{}.EventName()},
		},
	}

	got := app.SubscribeModules()
	if want := []string{"reporting", "campaigns"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("subscribed modules = %v, want %v", got, want)
	}
	if want := []string{"tasks.task.changed", "prospects.prospect.created"}; !reflect.DeepEqual(bus.subscribed, want) {
		t.Fatalf("subscriptions = %v, want %v", bus.subscribed, want)
	}
}

func TestSubscribeModulesWithoutBus(t *testing.T) {
	app := &App{Modules: []Module{subscribing{routesOnly{name: "reporting"}, "x"}}}
	if got := app.SubscribeModules(); got != nil {
		t.Fatalf("expected no subscriptions, got %v", got)
	}
}
