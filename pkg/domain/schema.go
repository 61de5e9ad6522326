package domain

import (
	"fmt"
	"sort"
)

// Cardinality distinguishes single-valued from multi-valued end points.
type Cardinality string

const (
	// CardinalityOne marks a reference end point.
	CardinalityOne Cardinality = "one"
	// CardinalityMany marks a collection end point.
	CardinalityMany Cardinality = "many"
)

// RelationKind enumerates the supported association shapes.
type RelationKind string

const (
	OneToOne       RelationKind = "one_to_one"
	OneToMany      RelationKind = "one_to_many"
	Unidirectional RelationKind = "unidirectional"
)

// RelationEndPointDefinition describes one side of an association.
type RelationEndPointDefinition struct {
	Property         PropertyID  `json:"property,omitempty"`
	Class            string      `json:"class"`
	OppositeClass    string      `json:"opposite_class"`
	OppositeProperty PropertyID  `json:"opposite_property,omitempty"`
	Cardinality      Cardinality `json:"cardinality"`
	Mandatory        bool        `json:"mandatory,omitempty"`
	// Virtual end points do not hold the foreign key.
	Virtual bool `json:"virtual,omitempty"`
	// Anonymous end points are the far side of a unidirectional relation.
	Anonymous bool `json:"anonymous,omitempty"`
}

// IsAnonymous reports whether the definition has no property of its own.
func (d RelationEndPointDefinition) IsAnonymous() bool {
	return d.Anonymous
}

// IsBidirectional reports whether the opposite side is navigable.
func (d RelationEndPointDefinition) IsBidirectional() bool {
	return !d.Anonymous && d.OppositeProperty != ""
}

// RelationDefinition is the authoring form of an association. Property is
// the side holding the foreign key.
type RelationDefinition struct {
	Kind              RelationKind
	Property          PropertyID
	OppositeProperty  PropertyID
	OppositeClass     string
	Mandatory         bool
	OppositeMandatory bool
}

// SchemaProvider exposes read-only relation metadata.
type SchemaProvider interface {
	Definition(property PropertyID) (RelationEndPointDefinition, bool)
	OppositeDefinition(def RelationEndPointDefinition) RelationEndPointDefinition
	EndPointDefinitions(class string) []RelationEndPointDefinition
	HasClass(class string) bool
}

// Schema is an in-memory SchemaProvider.
type Schema struct {
	classes map[string]struct{}
	defs    map[PropertyID]RelationEndPointDefinition
	byClass map[string][]PropertyID
}

var _ SchemaProvider = (*Schema)(nil)

// NewSchema constructs an empty schema.
func NewSchema() *Schema {
	return &Schema{
		classes: make(map[string]struct{}),
		defs:    make(map[PropertyID]RelationEndPointDefinition),
		byClass: make(map[string][]PropertyID),
	}
}

// MustSchema builds a schema from relation definitions and panics on error.
func MustSchema(relations ...RelationDefinition) *Schema {
	s := NewSchema()
	for _, rel := range relations {
		if err := s.Define(rel); err != nil {
			panic(fmt.Errorf("schema: %w", err))
		}
	}
	return s
}

// AddClass registers a class that may own no relations.
func (s *Schema) AddClass(class string) {
	s.classes[class] = struct{}{}
}

// Define registers both end points of a relation.
func (s *Schema) Define(rel RelationDefinition) error {
	if !rel.Property.Valid() {
		return fmt.Errorf("invalid property %q", rel.Property)
	}
	if _, exists := s.defs[rel.Property]; exists {
		return fmt.Errorf("property %s already defined", rel.Property)
	}
	class := rel.Property.Class()
	switch rel.Kind {
	case Unidirectional:
		if rel.OppositeClass == "" {
			return fmt.Errorf("unidirectional relation %s requires an opposite class", rel.Property)
		}
		if rel.OppositeProperty != "" {
			return fmt.Errorf("unidirectional relation %s cannot name an opposite property", rel.Property)
		}
		s.add(RelationEndPointDefinition{
			Property:      rel.Property,
			Class:         class,
			OppositeClass: rel.OppositeClass,
			Cardinality:   CardinalityOne,
			Mandatory:     rel.Mandatory,
		})
		s.classes[rel.OppositeClass] = struct{}{}
		return nil
	case OneToOne, OneToMany:
	default:
		return fmt.Errorf("unknown relation kind %q", rel.Kind)
	}
	if !rel.OppositeProperty.Valid() {
		return fmt.Errorf("invalid opposite property %q", rel.OppositeProperty)
	}
	if _, exists := s.defs[rel.OppositeProperty]; exists {
		return fmt.Errorf("property %s already defined", rel.OppositeProperty)
	}
	if rel.OppositeClass != "" && rel.OppositeClass != rel.OppositeProperty.Class() {
		return fmt.Errorf("opposite class %s does not declare %s", rel.OppositeClass, rel.OppositeProperty)
	}
	oppositeClass := rel.OppositeProperty.Class()
	oppositeCardinality := CardinalityOne
	if rel.Kind == OneToMany {
		oppositeCardinality = CardinalityMany
	}
	s.add(RelationEndPointDefinition{
		Property:         rel.Property,
		Class:            class,
		OppositeClass:    oppositeClass,
		OppositeProperty: rel.OppositeProperty,
		Cardinality:      CardinalityOne,
		Mandatory:        rel.Mandatory,
	})
	s.add(RelationEndPointDefinition{
		Property:         rel.OppositeProperty,
		Class:            oppositeClass,
		OppositeClass:    class,
		OppositeProperty: rel.Property,
		Cardinality:      oppositeCardinality,
		Mandatory:        rel.OppositeMandatory,
		Virtual:          true,
	})
	return nil
}

func (s *Schema) add(def RelationEndPointDefinition) {
	s.defs[def.Property] = def
	s.classes[def.Class] = struct{}{}
	props := append(s.byClass[def.Class], def.Property)
	sort.Slice(props, func(i, j int) bool { return props[i] < props[j] })
	s.byClass[def.Class] = props
}

// Definition returns the end point definition for a property.
func (s *Schema) Definition(property PropertyID) (RelationEndPointDefinition, bool) {
	def, ok := s.defs[property]
	return def, ok
}

// OppositeDefinition returns the far side of def. The far side of a
// unidirectional relation is an anonymous definition.
func (s *Schema) OppositeDefinition(def RelationEndPointDefinition) RelationEndPointDefinition {
	if def.Anonymous {
		return RelationEndPointDefinition{}
	}
	if def.OppositeProperty == "" {
		return RelationEndPointDefinition{
			Class:         def.OppositeClass,
			OppositeClass: def.Class,
			Cardinality:   CardinalityMany,
			Virtual:       true,
			Anonymous:     true,
		}
	}
	return s.defs[def.OppositeProperty]
}

// EndPointDefinitions lists the non-anonymous end points declared by class.
func (s *Schema) EndPointDefinitions(class string) []RelationEndPointDefinition {
	props := s.byClass[class]
	out := make([]RelationEndPointDefinition, 0, len(props))
	for _, p := range props {
		out = append(out, s.defs[p])
	}
	return out
}

// HasClass reports whether the class is known to the schema.
func (s *Schema) HasClass(class string) bool {
	_, ok := s.classes[class]
	return ok
}
