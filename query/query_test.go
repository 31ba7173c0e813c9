package query_test

import (
	"errors"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/docent-go/docent/query"
	"github.com/docent-go/docent/schema"
)

type Customer struct {
	Name string
	City string
}

type Line struct {
	SKU string
	Qty int32
}

type Order struct {
	ID       string
	Status   string
	Total    float64
	Qty      int32
	Tags     []string
	Customer Customer
	Lines    []Line
}

var customerBuilder = schema.NewEmbedded[Customer]("customer")

var (
	customerName = schema.String(customerBuilder, "name", func(c *Customer) *string { return &c.Name })
	customerCity = schema.String(customerBuilder, "city", func(c *Customer) *string { return &c.City })

	customerType = customerBuilder.MustBuild()
)

var lineBuilder = schema.NewEmbedded[Line]("line")

var (
	lineSKU = schema.String(lineBuilder, "sku", func(l *Line) *string { return &l.SKU })
	lineQty = schema.Int32(lineBuilder, "qty", func(l *Line) *int32 { return &l.Qty })

	lineType = lineBuilder.MustBuild()
)

var orderBuilder = schema.NewRoot[Order]("order")

var (
	orderID     = orderBuilder.ID(func(o *Order) *string { return &o.ID })
	orderStatus = schema.String(orderBuilder, "status", func(o *Order) *string { return &o.Status })
	orderTotal  = schema.Double(orderBuilder, "total", func(o *Order) *float64 { return &o.Total })
	orderQty    = schema.Int32(orderBuilder, "qty", func(o *Order) *int32 { return &o.Qty })
	orderTags   = schema.Strings(orderBuilder, "tags", func(o *Order) *[]string { return &o.Tags },
		schema.Optional[[]string]())
	orderCustomer = schema.Embedded(orderBuilder, "customer", customerType, func(o *Order) *Customer { return &o.Customer })
	orderLines    = schema.EmbeddedList(orderBuilder, "lines", lineType, func(o *Order) *[]Line { return &o.Lines },
		schema.Optional[[]Line]())

	orderType = orderBuilder.MustBuild()
)

var (
	orderCity    = schema.Join(orderCustomer, customerCity)
	orderLineSKU = schema.Join(schema.Elem(orderLines), lineSKU)
)

func TestRenderSimpleComparison(t *testing.T) {
	got := query.Equal(orderStatus, "open").MustRender()
	want := bson.D{{Key: "status", Value: bson.D{{Key: "$eq", Value: "open"}}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRenderMergesBoundsOnOnePath(t *testing.T) {
	got := query.And(
		query.GreaterEquals(orderTotal, 10.0),
		query.Less(orderTotal, 100.0),
	).MustRender()
	want := bson.D{{Key: "total", Value: bson.D{
		{Key: "$lt", Value: 100.0},
		{Key: "$gte", Value: 10.0},
	}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRenderIsCanonicalUnderReordering(t *testing.T) {
	a := query.And(
		query.Equal(orderStatus, "open"),
		query.Greater(orderTotal, 50.0),
		query.Equal(orderCity, "Lisbon"),
	).MustRender()
	b := query.And(
		query.Equal(orderCity, "Lisbon"),
		query.Greater(orderTotal, 50.0),
		query.Equal(orderStatus, "open"),
	).MustRender()
	if !reflect.DeepEqual(a, b) {
		t.Errorf("reordered conjunctions should render identically:\n a=%v\n b=%v", a, b)
	}
}

func TestRenderSamePathSameOperatorKeptSeparately(t *testing.T) {
	got := query.And(
		query.Equal(orderStatus, "open"),
		query.Equal(orderStatus, "closed"),
	).MustRender()
	want := bson.D{
		{Key: "status", Value: bson.D{{Key: "$eq", Value: "open"}}},
		{Key: "$and", Value: bson.A{
			bson.D{{Key: "status", Value: bson.D{{Key: "$eq", Value: "closed"}}}},
		}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRenderEmptyJunctions(t *testing.T) {
	and := query.And[Order]().MustRender()
	if !reflect.DeepEqual(and, bson.D{}) {
		t.Errorf("empty conjunction should render as match-all, got %v", and)
	}

	or := query.Or[Order]().MustRender()
	want := bson.D{{Key: "$nor", Value: bson.A{bson.D{}}}}
	if !reflect.DeepEqual(or, want) {
		t.Errorf("empty disjunction should render as match-none, got %v", or)
	}
}

func TestRenderOrAndNot(t *testing.T) {
	got := query.Or(
		query.Equal(orderStatus, "open"),
		query.Equal(orderStatus, "held"),
	).MustRender()
	want := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "status", Value: bson.D{{Key: "$eq", Value: "open"}}}},
		bson.D{{Key: "status", Value: bson.D{{Key: "$eq", Value: "held"}}}},
	}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	not := query.Not(query.Equal(orderStatus, "open")).MustRender()
	wantNot := bson.D{{Key: "$nor", Value: bson.A{
		bson.D{{Key: "status", Value: bson.D{{Key: "$eq", Value: "open"}}}},
	}}}
	if !reflect.DeepEqual(not, wantNot) {
		t.Errorf("got %v, want %v", not, wantNot)
	}
}

func TestRenderMembershipAndSequences(t *testing.T) {
	got := query.In(orderStatus, "open", "held").MustRender()
	want := bson.D{{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{"open", "held"}}}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	contains := query.Contains(orderTags, "rush").MustRender()
	wantContains := bson.D{{Key: "tags", Value: bson.D{{Key: "$eq", Value: "rush"}}}}
	if !reflect.DeepEqual(contains, wantContains) {
		t.Errorf("got %v, want %v", contains, wantContains)
	}

	all := query.ContainsAll(orderTags, "rush", "gift").MustRender()
	wantAll := bson.D{{Key: "tags", Value: bson.D{{Key: "$all", Value: bson.A{"rush", "gift"}}}}}
	if !reflect.DeepEqual(all, wantAll) {
		t.Errorf("got %v, want %v", all, wantAll)
	}

	size := query.Size(orderTags, 2).MustRender()
	wantSize := bson.D{{Key: "tags", Value: bson.D{{Key: "$size", Value: int32(2)}}}}
	if !reflect.DeepEqual(size, wantSize) {
		t.Errorf("got %v, want %v", size, wantSize)
	}
}

func TestRenderElementPath(t *testing.T) {
	got := query.Equal(orderLineSKU, "sku-1").MustRender()
	want := bson.D{{Key: "lines.sku", Value: bson.D{{Key: "$eq", Value: "sku-1"}}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRenderExistsAndNull(t *testing.T) {
	got := query.NotExists(orderTags).MustRender()
	want := bson.D{{Key: "tags", Value: bson.D{{Key: "$exists", Value: false}}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	isNull := query.IsNull(orderStatus).MustRender()
	wantNull := bson.D{{Key: "status", Value: bson.D{{Key: "$eq", Value: nil}}}}
	if !reflect.DeepEqual(isNull, wantNull) {
		t.Errorf("got %v, want %v", isNull, wantNull)
	}
}

func TestOrderedOperatorRejectsUnorderedKind(t *testing.T) {
	e := query.Greater(orderTags, []string{"a"})
	if e.Err() == nil {
		t.Fatal("range operator on a sequence should fail at construction")
	}
	if _, err := e.Render(); err == nil {
		t.Fatal("render should surface the construction error")
	}
}

func TestWhereDynamic(t *testing.T) {
	fp, err := schema.Resolve(orderType.EntityType(), "customer", "city")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	e, err := query.Where[Order](fp, query.OpEqual, "Lisbon")
	if err != nil {
		t.Fatalf("Where failed: %v", err)
	}
	got := e.MustRender()
	want := query.Equal(orderCity, "Lisbon").MustRender()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dynamic and static construction should agree:\n got %v\nwant %v", got, want)
	}
}

func TestWhereOperandKindMismatch(t *testing.T) {
	fp, err := schema.Resolve(orderType.EntityType(), "qty")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	_, err = query.Where[Order](fp, query.OpEqual, "twelve")
	if err == nil {
		t.Fatal("expected operand kind mismatch")
	}
	var tm *query.TypeMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("expected TypeMismatchError, got %T", err)
	}
	if tm.Path != "qty" {
		t.Errorf("error should name the path, got %q", tm.Path)
	}
}

func TestWhereOperandOutOfRange(t *testing.T) {
	fp, err := schema.Resolve(orderType.EntityType(), "qty")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	_, err = query.Where[Order](fp, query.OpEqual, int64(5_000_000_000))
	if err == nil {
		t.Fatal("an operand beyond the int32 range must not narrow silently")
	}
	var tm *query.TypeMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("expected TypeMismatchError, got %T", err)
	}
	if tm.Path != "qty" {
		t.Errorf("error should name the path, got %q", tm.Path)
	}
}

func TestWhereOperatorKindGuards(t *testing.T) {
	et := orderType.EntityType()

	tags, err := schema.Resolve(et, "tags")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	var tm *query.TypeMismatchError
	if _, err := query.Where[Order](tags, query.OpLess, "a"); !errors.As(err, &tm) {
		t.Errorf("range operator on a sequence should fail, got %v", err)
	}

	qty, err := schema.Resolve(et, "qty")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := query.Where[Order](qty, query.OpRegex, "^1"); !errors.As(err, &tm) {
		t.Errorf("regex on a non-string kind should fail, got %v", err)
	}
}

func TestRegexRendering(t *testing.T) {
	got := query.Regex(customerNamePath(), "(?i)^ana").MustRender()
	want := bson.D{{Key: "customer.name", Value: bson.D{{Key: "$regex", Value: "(?i)^ana"}}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func customerNamePath() schema.Path[Order, string] {
	return schema.Join(orderCustomer, customerName)
}
