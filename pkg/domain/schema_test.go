package domain

import (
	"strings"
	"testing"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	return MustSchema(
		RelationDefinition{Kind: OneToMany, Property: "Order.Customer", OppositeProperty: "Customer.Orders", Mandatory: true},
		RelationDefinition{Kind: OneToOne, Property: "Computer.Employee", OppositeProperty: "Employee.Computer"},
		RelationDefinition{Kind: Unidirectional, Property: "Order.Official", OppositeClass: "Official"},
	)
}

func TestSchemaDefinitions(t *testing.T) {
	s := testSchema(t)

	def, ok := s.Definition("Order.Customer")
	if !ok || def.Virtual || def.Cardinality != CardinalityOne || !def.Mandatory || !def.IsBidirectional() {
		t.Fatalf("unexpected foreign key side %+v", def)
	}
	opp := s.OppositeDefinition(def)
	if opp.Property != "Customer.Orders" || !opp.Virtual || opp.Cardinality != CardinalityMany || opp.OppositeClass != "Order" {
		t.Fatalf("unexpected collection side %+v", opp)
	}
	if one, _ := s.Definition("Employee.Computer"); one.Cardinality != CardinalityOne || !one.Virtual {
		t.Fatalf("one-to-one virtual side should be single valued: %+v", one)
	}

	uni, _ := s.Definition("Order.Official")
	anon := s.OppositeDefinition(uni)
	if !anon.IsAnonymous() || anon.Class != "Official" || anon.Property != "" || anon.IsBidirectional() {
		t.Fatalf("unexpected anonymous side %+v", anon)
	}
	if got := s.OppositeDefinition(anon); got != (RelationEndPointDefinition{}) {
		t.Fatalf("anonymous side has no opposite, got %+v", got)
	}

	var props []string
	for _, d := range s.EndPointDefinitions("Order") {
		props = append(props, string(d.Property))
	}
	if strings.Join(props, ",") != "Order.Customer,Order.Official" {
		t.Fatalf("unexpected Order end points %v", props)
	}
	if len(s.EndPointDefinitions("Official")) != 0 {
		t.Fatalf("anonymous end points must not be listed")
	}
	for _, class := range []string{"Order", "Customer", "Official", "Employee"} {
		if !s.HasClass(class) {
			t.Errorf("expected class %s", class)
		}
	}
	if s.HasClass("Invoice") {
		t.Fatalf("unexpected class Invoice")
	}
	s.AddClass("Invoice")
	if !s.HasClass("Invoice") {
		t.Fatalf("AddClass did not register Invoice")
	}
}

func TestSchemaDefineRejectsInvalidRelations(t *testing.T) {
	cases := map[string]RelationDefinition{
		"invalid property":      {Kind: OneToMany, Property: "Order", OppositeProperty: "Customer.Orders"},
		"duplicate property":    {Kind: OneToOne, Property: "Order.Customer", OppositeProperty: "Customer.Primary"},
		"duplicate opposite":    {Kind: OneToMany, Property: "Line.Customer", OppositeProperty: "Customer.Orders"},
		"unknown kind":          {Kind: "many_to_many", Property: "Order.Tags", OppositeProperty: "Tag.Orders"},
		"missing opposite":      {Kind: OneToMany, Property: "Order.Tags"},
		"class mismatch":        {Kind: OneToMany, Property: "Order.Tags", OppositeProperty: "Tag.Orders", OppositeClass: "Label"},
		"unidirectional class":  {Kind: Unidirectional, Property: "Order.Approver"},
		"unidirectional member": {Kind: Unidirectional, Property: "Order.Approver", OppositeClass: "Official", OppositeProperty: "Official.Orders"},
	}
	for name, rel := range cases {
		t.Run(name, func(t *testing.T) {
			if err := testSchema(t).Define(rel); err == nil {
				t.Fatalf("expected error defining %+v", rel)
			}
		})
	}
}

func TestMustSchemaPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustSchema(RelationDefinition{Kind: OneToMany, Property: "bad"})
}
