package components

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"trender/internal/config"
	"trender/internal/history"
	_ "trender/internal/storage/sqlite"
)

type recorder struct {
	events []string
}

type fakeComponent struct {
	name    string
	deps    []string
	initErr error
	rec     *recorder
}

func (f *fakeComponent) Name() string           { return f.name }
func (f *fakeComponent) Dependencies() []string { return f.deps }
func (f *fakeComponent) Validate() error        { return nil }

func (f *fakeComponent) Initialize(ctx context.Context) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.rec.events = append(f.rec.events, "init:"+f.name)
	return nil
}

func (f *fakeComponent) Close(ctx context.Context) error {
	f.rec.events = append(f.rec.events, "close:"+f.name)
	return nil
}

func TestRegistryOrdersInitAndClose(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(nil)
	r.Register(&fakeComponent{name: "engine", deps: []string{"storage"}, rec: rec})
	r.Register(&fakeComponent{name: "storage", rec: rec})

	if err := r.Register(&fakeComponent{name: "storage", rec: rec}); err == nil {
		t.Error("expected duplicate registration error")
	}

	ctx := context.Background()
	if err := r.InitializeAll(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	r.CloseAll(ctx)

	want := []string{"init:storage", "init:engine", "close:engine", "close:storage"}
	if !reflect.DeepEqual(rec.events, want) {
		t.Errorf("expected %v, got %v", want, rec.events)
	}
}

func TestRegistryClosesOnInitFailure(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(nil)
	r.Register(&fakeComponent{name: "a", rec: rec})
	r.Register(&fakeComponent{name: "b", deps: []string{"a"}, initErr: errors.New("boom"), rec: rec})

	if err := r.InitializeAll(context.Background()); err == nil {
		t.Fatal("expected init failure")
	}
	want := []string{"init:a", "close:a"}
	if !reflect.DeepEqual(rec.events, want) {
		t.Errorf("expected %v, got %v", want, rec.events)
	}
}

func TestRegistryMissingDependency(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeComponent{name: "a", deps: []string{"ghost"}, rec: &recorder{}})
	if err := r.InitializeAll(context.Background()); err == nil {
		t.Error("expected missing dependency error")
	}
}

func TestStorageAndHistoryComponents(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)

	storageComp := NewStorageComponent(config.StorageConfig{Type: "sqlite", Path: filepath.Join(t.TempDir(), "c.db")})
	historyComp := NewHistoryComponent(history.Options{Backend: "memory"}, nil)
	publisherComp := NewPublisherComponent(config.NATSConfig{}, "test", nil)
	r.Register(storageComp)
	r.Register(historyComp)
	r.Register(publisherComp)

	if err := r.InitializeAll(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	defer r.CloseAll(ctx)

	if storageComp.Store() == nil || storageComp.Store().Cadence() == nil {
		t.Fatal("storage component did not open a store")
	}

	historyComp.Store().Record(ctx, 1, 2, time.Now())
	if got := historyComp.Store().Window(ctx, 1); len(got) != 1 {
		t.Errorf("expected history to be usable, got %v", got)
	}

	if len(publisherComp.Publishers()) != 1 {
		t.Errorf("expected only the log publisher, got %d", len(publisherComp.Publishers()))
	}
}

func TestLookup(t *testing.T) {
	r := NewRegistry(nil)
	comp := NewHistoryComponent(history.Options{Backend: "memory"}, nil)
	r.Register(comp)

	got, err := Lookup[*HistoryComponent](r, HistoryComponentName)
	if err != nil || got != comp {
		t.Errorf("expected registered history component, got %v (err=%v)", got, err)
	}
	if _, err := Lookup[*StorageComponent](r, HistoryComponentName); err == nil {
		t.Error("expected type mismatch error")
	}
	if _, err := Lookup[*StorageComponent](r, StorageComponentName); err == nil {
		t.Error("expected missing component error")
	}
}
