package schema_test

import (
	"strings"
	"testing"

	"github.com/docent-go/docent/schema"
)

func TestEntityTypeMetadata(t *testing.T) {
	et := movieType.EntityType()

	if et.Name() != "movie" {
		t.Errorf("expected entity name 'movie', got %q", et.Name())
	}
	if !et.IsRoot() {
		t.Error("movie should be a root entity type")
	}
	if actorType.EntityType().IsRoot() {
		t.Error("actor should be an embedded entity type")
	}

	id := et.ID()
	if id == nil {
		t.Fatal("root entity should carry an identifier property")
	}
	if id.Name() != "_id" {
		t.Errorf("expected identifier field '_id', got %q", id.Name())
	}

	p, ok := et.Property("title")
	if !ok {
		t.Fatal("expected property 'title' to be declared")
	}
	if p.Kind() != schema.KindString {
		t.Errorf("expected title kind %s, got %s", schema.KindString, p.Kind())
	}

	if _, ok := et.Property("missing"); ok {
		t.Error("undeclared property should not resolve")
	}
}

func TestLookupFindsRegisteredTypes(t *testing.T) {
	for _, name := range []string{"movie", "actor", "rating"} {
		et, ok := schema.Lookup(name)
		if !ok {
			t.Fatalf("expected %q to be registered", name)
		}
		if et.Name() != name {
			t.Errorf("lookup returned %q for %q", et.Name(), name)
		}
	}
	if _, ok := schema.Lookup("unknown"); ok {
		t.Error("unknown name should not resolve")
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	type Clone struct{ ID string }
	b := schema.NewRoot[Clone]("movie")
	b.ID(func(c *Clone) *string { return &c.ID })
	if _, err := b.Build(); err == nil {
		t.Fatal("expected duplicate entity name to fail")
	}
}

func TestRootWithoutIdentifierRejected(t *testing.T) {
	type Orphan struct{ Name string }
	b := schema.NewRoot[Orphan]("orphan")
	schema.String(b, "name", func(o *Orphan) *string { return &o.Name })
	_, err := b.Build()
	if err == nil {
		t.Fatal("expected root without identifier to fail")
	}
	if !strings.Contains(err.Error(), "identifier") {
		t.Errorf("error should mention the identifier, got %v", err)
	}
}

func TestEmbeddedCannotDeclareIdentifier(t *testing.T) {
	type Inner struct{ ID string }
	b := schema.NewEmbedded[Inner]("inner_with_id")
	b.ID(func(i *Inner) *string { return &i.ID })
	if _, err := b.Build(); err == nil {
		t.Fatal("expected identifier on embedded entity to fail")
	}
}

func TestIDValueAccess(t *testing.T) {
	et := movieType.EntityType()
	m := &Movie{ID: "m-1"}

	id, err := et.IDValue(m)
	if err != nil {
		t.Fatalf("IDValue failed: %v", err)
	}
	if id != "m-1" {
		t.Errorf("expected id 'm-1', got %q", id)
	}

	if err := et.SetIDValue(m, "m-2"); err != nil {
		t.Fatalf("SetIDValue failed: %v", err)
	}
	if m.ID != "m-2" {
		t.Errorf("expected id to be rewritten, got %q", m.ID)
	}
}
