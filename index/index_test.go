package index_test

import (
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/docent-go/docent/index"
	"github.com/docent-go/docent/query"
	"github.com/docent-go/docent/schema"
)

type Session struct {
	ID      string
	User    string
	Token   string
	Active  bool
	Expires time.Time
}

var sessionBuilder = schema.NewRoot[Session]("session")

var (
	sessionID      = sessionBuilder.ID(func(s *Session) *string { return &s.ID })
	sessionUser    = schema.String(sessionBuilder, "user", func(s *Session) *string { return &s.User })
	sessionToken   = schema.String(sessionBuilder, "token", func(s *Session) *string { return &s.Token })
	sessionActive  = schema.Bool(sessionBuilder, "active", func(s *Session) *bool { return &s.Active })
	sessionExpires = schema.Date(sessionBuilder, "expires", func(s *Session) *time.Time { return &s.Expires })

	sessionType = sessionBuilder.MustBuild()
)

func TestDescriptorKeys(t *testing.T) {
	d := index.New(index.Asc(sessionUser), index.Desc(sessionExpires))
	want := bson.D{
		{Key: "user", Value: int32(1)},
		{Key: "expires", Value: int32(-1)},
	}
	if !reflect.DeepEqual(d.Keys, want) {
		t.Errorf("got %v, want %v", d.Keys, want)
	}
}

func TestDescriptorOptions(t *testing.T) {
	d := index.New(index.Asc(sessionToken)).
		AsUnique().
		AsSparse().
		WithName("token_unique").
		WithTTL(30 * time.Minute)

	if !d.Unique || !d.Sparse {
		t.Error("unique and sparse flags should be set")
	}
	if d.Name != "token_unique" {
		t.Errorf("expected explicit name, got %q", d.Name)
	}
	if !d.HasExpiry || d.ExpireAfter != 30*time.Minute {
		t.Errorf("expected 30m expiry, got %v", d.ExpireAfter)
	}
}

func TestDoubleBuildIsStructurallyEqual(t *testing.T) {
	build := func() index.Descriptor {
		return index.New(index.Asc(sessionUser), index.Desc(sessionExpires)).AsUnique().WithName("by_user")
	}
	if !reflect.DeepEqual(build(), build()) {
		t.Error("building the same specification twice should yield equal descriptors")
	}
}

func TestTextKey(t *testing.T) {
	d := index.New(index.Text(sessionUser))
	want := bson.D{{Key: "user", Value: "text"}}
	if !reflect.DeepEqual(d.Keys, want) {
		t.Errorf("got %v, want %v", d.Keys, want)
	}
}

func TestPartialFilterRendersImmediately(t *testing.T) {
	d, err := index.Partial(index.New(index.Asc(sessionExpires)), query.Equal(sessionActive, true))
	if err != nil {
		t.Fatalf("Partial failed: %v", err)
	}
	want := bson.D{{Key: "active", Value: bson.D{{Key: "$eq", Value: true}}}}
	if !reflect.DeepEqual(d.PartialFilter, want) {
		t.Errorf("got %v, want %v", d.PartialFilter, want)
	}
}

func TestPartialFilterInvalidExpression(t *testing.T) {
	bad := query.Greater(sessionActive, true)
	if _, err := index.Partial(index.New(index.Asc(sessionID)), bad); err == nil {
		t.Fatal("invalid filter should fail descriptor construction")
	}
}
