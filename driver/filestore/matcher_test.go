package filestore

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func matchDoc() bson.D {
	return bson.D{
		{Key: "_id", Value: "b-1"},
		{Key: "title", Value: "Dune"},
		{Key: "year", Value: int32(1965)},
		{Key: "price", Value: 9.99},
		{Key: "tags", Value: bson.A{"classic", "desert"}},
		{Key: "author", Value: bson.D{{Key: "name", Value: "Herbert"}}},
		{Key: "editions", Value: bson.A{
			bson.D{{Key: "format", Value: "hardcover"}, {Key: "pages", Value: int32(412)}},
			bson.D{{Key: "format", Value: "paperback"}, {Key: "pages", Value: int32(604)}},
		}},
		{Key: "discount", Value: nil},
	}
}

func TestMatchesOperators(t *testing.T) {
	tests := []struct {
		name   string
		filter bson.D
		want   bool
	}{
		{"direct equality", bson.D{{Key: "title", Value: "Dune"}}, true},
		{"eq operator", bson.D{{Key: "title", Value: bson.D{{Key: "$eq", Value: "Dune"}}}}, true},
		{"eq mismatch", bson.D{{Key: "title", Value: bson.D{{Key: "$eq", Value: "Emma"}}}}, false},
		{"ne", bson.D{{Key: "title", Value: bson.D{{Key: "$ne", Value: "Emma"}}}}, true},
		{"numeric widening", bson.D{{Key: "year", Value: bson.D{{Key: "$eq", Value: int64(1965)}}}}, true},
		{"gt", bson.D{{Key: "year", Value: bson.D{{Key: "$gt", Value: int32(1960)}}}}, true},
		{"gt false", bson.D{{Key: "year", Value: bson.D{{Key: "$gt", Value: int32(1970)}}}}, false},
		{"lte boundary", bson.D{{Key: "year", Value: bson.D{{Key: "$lte", Value: int32(1965)}}}}, true},
		{"range both ends", bson.D{{Key: "year", Value: bson.D{{Key: "$gte", Value: int32(1960)}, {Key: "$lt", Value: int32(1970)}}}}, true},
		{"in", bson.D{{Key: "title", Value: bson.D{{Key: "$in", Value: bson.A{"Emma", "Dune"}}}}}, true},
		{"nin", bson.D{{Key: "title", Value: bson.D{{Key: "$nin", Value: bson.A{"Emma"}}}}}, true},
		{"exists true", bson.D{{Key: "price", Value: bson.D{{Key: "$exists", Value: true}}}}, true},
		{"exists false on missing", bson.D{{Key: "isbn", Value: bson.D{{Key: "$exists", Value: false}}}}, true},
		{"regex", bson.D{{Key: "title", Value: bson.D{{Key: "$regex", Value: "^Du"}}}}, true},
		{"array element equality", bson.D{{Key: "tags", Value: bson.D{{Key: "$eq", Value: "desert"}}}}, true},
		{"all", bson.D{{Key: "tags", Value: bson.D{{Key: "$all", Value: bson.A{"classic", "desert"}}}}}, true},
		{"all missing member", bson.D{{Key: "tags", Value: bson.D{{Key: "$all", Value: bson.A{"classic", "space"}}}}}, false},
		{"size", bson.D{{Key: "tags", Value: bson.D{{Key: "$size", Value: int32(2)}}}}, true},
		{"nested path", bson.D{{Key: "author.name", Value: bson.D{{Key: "$eq", Value: "Herbert"}}}}, true},
		{"array fanout path", bson.D{{Key: "editions.format", Value: bson.D{{Key: "$eq", Value: "paperback"}}}}, true},
		{"array fanout range", bson.D{{Key: "editions.pages", Value: bson.D{{Key: "$gt", Value: int32(500)}}}}, true},
		{"null matches explicit null", bson.D{{Key: "discount", Value: bson.D{{Key: "$eq", Value: nil}}}}, true},
		{"null matches missing", bson.D{{Key: "isbn", Value: bson.D{{Key: "$eq", Value: nil}}}}, true},
		{"missing path range", bson.D{{Key: "isbn", Value: bson.D{{Key: "$gt", Value: "a"}}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := matches(matchDoc(), tt.filter)
			if err != nil {
				t.Fatalf("matches failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("filter %v: got %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestMatchesLogicalOperators(t *testing.T) {
	doc := matchDoc()

	and := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "title", Value: "Dune"}},
		bson.D{{Key: "year", Value: bson.D{{Key: "$lt", Value: int32(2000)}}}},
	}}}
	if ok, _ := matches(doc, and); !ok {
		t.Error("conjunction should match")
	}

	or := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "title", Value: "Emma"}},
		bson.D{{Key: "title", Value: "Dune"}},
	}}}
	if ok, _ := matches(doc, or); !ok {
		t.Error("disjunction should match")
	}

	nor := bson.D{{Key: "$nor", Value: bson.A{
		bson.D{{Key: "title", Value: "Dune"}},
	}}}
	if ok, _ := matches(doc, nor); ok {
		t.Error("negated disjunction should not match")
	}

	matchNone := bson.D{{Key: "$nor", Value: bson.A{bson.D{}}}}
	if ok, _ := matches(doc, matchNone); ok {
		t.Error("negated match-all should match nothing")
	}

	if ok, _ := matches(doc, bson.D{}); !ok {
		t.Error("empty filter should match everything")
	}
}

func TestMatchesDates(t *testing.T) {
	when := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	doc := bson.D{{Key: "seen", Value: primitive.NewDateTimeFromTime(when)}}

	filter := bson.D{{Key: "seen", Value: bson.D{{Key: "$gte", Value: when.Add(-time.Hour)}}}}
	if ok, err := matches(doc, filter); err != nil || !ok {
		t.Errorf("wire datetime should compare against time values, ok=%v err=%v", ok, err)
	}

	eq := bson.D{{Key: "seen", Value: bson.D{{Key: "$eq", Value: when}}}}
	if ok, _ := matches(doc, eq); !ok {
		t.Error("wire datetime should equal the same instant")
	}
}

func TestMatchesUnknownOperator(t *testing.T) {
	if _, err := matches(matchDoc(), bson.D{{Key: "title", Value: bson.D{{Key: "$near", Value: 1}}}}); err == nil {
		t.Fatal("unknown operator should fail")
	}
}
