package store

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func newTestAction(plugin string) *Action {
	return &Action{
		ID:         uuid.New().String(),
		Event:      EventBlink,
		PluginName: plugin,
		ActionName: "press",
		Config:     json.RawMessage(`{"key":"space"}`),
		Enabled:    true,
	}
}

func TestActionRepository_CRUD(t *testing.T) {
	s := newTestStore(t)
	repo := s.Actions()

	a := newTestAction("keyboard")
	if err := repo.Create(a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if a.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, err := repo.GetByID(a.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Event != EventBlink || got.PluginName != "keyboard" || !got.Enabled {
		t.Errorf("unexpected action: %+v", got)
	}
	if string(got.Config) != `{"key":"space"}` {
		t.Errorf("expected config round trip, got %s", got.Config)
	}
	if string(got.Params) != "{}" {
		t.Errorf("expected empty params object, got %s", got.Params)
	}

	got.ActionName = "type"
	got.Enabled = false
	if err := repo.Update(got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	updated, err := repo.GetByID(a.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if updated.ActionName != "type" || updated.Enabled {
		t.Errorf("update not applied: %+v", updated)
	}

	if err := repo.Delete(a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestActionRepository_NotFound(t *testing.T) {
	s := newTestStore(t)
	repo := s.Actions()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"get", func() error { _, err := repo.GetByID("missing"); return err }},
		{"update", func() error { return repo.Update(&Action{ID: "missing", Event: EventBlink}) }},
		{"delete", func() error { return repo.Delete("missing") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestActionRepository_RejectsUnknownEvent(t *testing.T) {
	s := newTestStore(t)

	a := newTestAction("keyboard")
	a.Event = "wink"
	if err := s.Actions().Create(a); err == nil {
		t.Error("expected constraint error for unknown event")
	}
}

func TestActionRepository_ListEnabled(t *testing.T) {
	s := newTestStore(t)
	repo := s.Actions()

	enabled := newTestAction("keyboard")
	disabled := newTestAction("system-control")
	disabled.Enabled = false

	for _, a := range []*Action{enabled, disabled} {
		if err := repo.Create(a); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	all, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 actions, got %d", len(all))
	}

	active, err := repo.ListEnabled(EventBlink)
	if err != nil {
		t.Fatalf("ListEnabled() error = %v", err)
	}
	if len(active) != 1 || active[0].ID != enabled.ID {
		t.Errorf("expected only enabled action, got %+v", active)
	}
}

func TestValidEvent(t *testing.T) {
	if !ValidEvent(EventBlink) {
		t.Error("blink should be a valid event")
	}
	if ValidEvent("wink") {
		t.Error("wink should not be a valid event")
	}
}
