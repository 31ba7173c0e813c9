package schema_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docent-go/docent/schema"
)

func sampleMovie() *Movie {
	runtime := int32(142)
	return &Movie{
		ID:       "m-1",
		Title:    "The Left Hand",
		Year:     1969,
		Runtime:  &runtime,
		Rated:    RatedPG,
		Genres:   []string{"scifi", "drama"},
		Released: time.Date(1969, 3, 1, 0, 0, 0, 0, time.UTC),
		Gross:    1_500_000,
		Lead:     Actor{Name: "A. Lee", Born: 1940},
		Cast: []Actor{
			{Name: "A. Lee", Born: 1940},
			{Name: "B. Chen", Born: 1952},
		},
		Ratings: map[string]Rating{
			"imdb": {Source: "imdb", Score: 8.1},
		},
		Poster: []byte{0x89, 0x50},
		Views:  12345,
		Note:   "in-memory only",
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	m := sampleMovie()
	doc, err := schema.Marshal(movieType, m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	back, err := schema.Unmarshal(movieType, doc)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	// Transient fields never travel.
	if back.Note != "" {
		t.Errorf("transient field should not round trip, got %q", back.Note)
	}
	back.Note = m.Note
	if !reflect.DeepEqual(m, back) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back, m)
	}
}

func TestMarshalShape(t *testing.T) {
	m := sampleMovie()
	doc, err := schema.Marshal(movieType, m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	byKey := map[string]any{}
	for _, e := range doc {
		byKey[e.Key] = e.Value
	}

	if _, ok := byKey["note"]; ok {
		t.Error("transient field should not be serialized")
	}
	if v, ok := byKey["rated"]; !ok || v != "PG" {
		t.Errorf("enum should serialize as its string value, got %v", v)
	}
	if v, ok := byKey["poster"]; !ok {
		t.Error("poster should be serialized")
	} else if bin, isBin := v.(primitive.Binary); !isBin || bin.Subtype != 0x00 {
		t.Errorf("binary should serialize as a subtype-0 blob, got %T", v)
	}
	if v, ok := byKey["runtime"]; !ok || v != int32(142) {
		t.Errorf("nullable with value should serialize the value, got %v", v)
	}
}

func TestMarshalOmitsOptionalAbsent(t *testing.T) {
	m := sampleMovie()
	m.Genres = nil
	m.Cast = nil
	m.Ratings = nil
	m.Poster = nil

	doc, err := schema.Marshal(movieType, m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, e := range doc {
		switch e.Key {
		case "genres", "cast", "ratings", "poster":
			t.Errorf("optional-absent field %q should be omitted", e.Key)
		}
	}
}

func TestMarshalNullableNilWritesNull(t *testing.T) {
	m := sampleMovie()
	m.Runtime = nil

	doc, err := schema.Marshal(movieType, m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	found := false
	for _, e := range doc {
		if e.Key == "runtime" {
			found = true
			if e.Value != nil {
				t.Errorf("nil nullable should serialize as explicit null, got %v", e.Value)
			}
		}
	}
	if !found {
		t.Error("nil nullable should keep its key")
	}
}

func TestUnmarshalAbsentKeyAppliesDefault(t *testing.T) {
	doc := bson.D{
		{Key: "_id", Value: "m-2"},
		{Key: "title", Value: "Sparse"},
	}
	m, err := schema.Unmarshal(movieType, doc)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m.Rated != RatedUnrated {
		t.Errorf("absent enum should backfill its default, got %q", m.Rated)
	}
	if m.Year != 0 || m.Views != 0 {
		t.Error("absent numerics without defaults should stay zero")
	}
	if m.Runtime != nil {
		t.Error("absent nullable should stay nil")
	}
	if m.Genres != nil {
		t.Error("absent optional sequence should stay nil")
	}
}

func TestUnmarshalNullContract(t *testing.T) {
	doc := bson.D{
		{Key: "_id", Value: "m-3"},
		{Key: "title", Value: "Nulls"},
		{Key: "runtime", Value: nil},
		{Key: "year", Value: nil},
	}
	m, rep, err := schema.UnmarshalWithReport(movieType, doc)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m.Runtime != nil {
		t.Error("explicit null on nullable should map to nil")
	}
	if m.Year != 0 {
		t.Errorf("explicit null on non-nullable should collapse to zero, got %d", m.Year)
	}
	if !reflect.DeepEqual(rep.LossyNulls, []string{"year"}) {
		t.Errorf("expected lossy null report for 'year', got %v", rep.LossyNulls)
	}
}

func TestUnmarshalDropsUnknownKeys(t *testing.T) {
	doc := bson.D{
		{Key: "_id", Value: "m-4"},
		{Key: "title", Value: "Extra"},
		{Key: "director", Value: "someone"},
		{Key: "budget", Value: int64(9)},
	}
	m, err := schema.Unmarshal(movieType, doc)
	if err != nil {
		t.Fatalf("unknown keys should be tolerated: %v", err)
	}
	if m.Title != "Extra" {
		t.Errorf("declared fields should still map, got %q", m.Title)
	}
}

func TestUnmarshalTypeMismatch(t *testing.T) {
	doc := bson.D{
		{Key: "_id", Value: "m-5"},
		{Key: "year", Value: "nineteen-sixty-nine"},
	}
	_, err := schema.Unmarshal(movieType, doc)
	if err == nil {
		t.Fatal("expected a deserialization error")
	}
	var de *schema.DeserializationError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeserializationError, got %T", err)
	}
	if de.Path != "year" {
		t.Errorf("error should name the field path, got %q", de.Path)
	}
}

func TestUnmarshalNestedMismatchNamesFullPath(t *testing.T) {
	doc := bson.D{
		{Key: "_id", Value: "m-6"},
		{Key: "lead", Value: bson.D{{Key: "born", Value: "old"}}},
	}
	_, err := schema.Unmarshal(movieType, doc)
	var de *schema.DeserializationError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeserializationError, got %v", err)
	}
	if de.Path != "lead.born" {
		t.Errorf("error should name the nested path, got %q", de.Path)
	}
}

func TestUnmarshalNumericWidening(t *testing.T) {
	doc := bson.D{
		{Key: "_id", Value: "m-7"},
		{Key: "year", Value: int64(1980)},
		{Key: "views", Value: int32(42)},
		{Key: "gross", Value: int32(100)},
		{Key: "released", Value: primitive.NewDateTimeFromTime(time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC))},
	}
	m, err := schema.Unmarshal(movieType, doc)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m.Year != 1980 {
		t.Errorf("int64 should narrow into int32 field, got %d", m.Year)
	}
	if m.Views != 42 {
		t.Errorf("int32 should widen into int64 field, got %d", m.Views)
	}
	if m.Gross != 100 {
		t.Errorf("integer should widen into double field, got %f", m.Gross)
	}
	want := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	if !m.Released.Equal(want) {
		t.Errorf("wire datetime should decode to UTC time, got %v", m.Released)
	}
}

func TestUnmarshalRejectsOutOfRangeNarrowing(t *testing.T) {
	doc := bson.D{
		{Key: "_id", Value: "m-8"},
		{Key: "year", Value: int64(5_000_000_000)},
	}
	_, err := schema.Unmarshal(movieType, doc)
	if err == nil {
		t.Fatal("an int64 beyond the int32 range must not narrow silently")
	}
	var de *schema.DeserializationError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeserializationError, got %T", err)
	}
	if de.Path != "year" {
		t.Errorf("error should name the field path, got %q", de.Path)
	}
}

func TestEmbeddedMapSortedKeys(t *testing.T) {
	m := sampleMovie()
	m.Ratings = map[string]Rating{
		"rotten": {Source: "rotten", Score: 7.0},
		"imdb":   {Source: "imdb", Score: 8.1},
		"meta":   {Source: "meta", Score: 6.5},
	}
	doc, err := schema.Marshal(movieType, m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, e := range doc {
		if e.Key != "ratings" {
			continue
		}
		sub := e.Value.(bson.D)
		keys := make([]string, len(sub))
		for i, el := range sub {
			keys[i] = el.Key
		}
		want := []string{"imdb", "meta", "rotten"}
		if !reflect.DeepEqual(keys, want) {
			t.Errorf("map keys should render sorted, got %v", keys)
		}
		return
	}
	t.Fatal("ratings key missing from document")
}
