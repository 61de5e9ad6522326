// Package domain defines the identity, schema, collaborator, and rule
// evaluation primitives shared by the unit-of-work engine and its adapters.
package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ObjectID identifies a persistable entity. The zero value means "no object".
type ObjectID struct {
	Class string `json:"class"`
	Value string `json:"value"`
}

// NewObjectID mints a fresh identifier for the given class.
func NewObjectID(class string) ObjectID {
	return ObjectID{Class: class, Value: uuid.NewString()}
}

// ParseObjectID parses the Class/Value form produced by String.
func ParseObjectID(s string) (ObjectID, error) {
	class, value, ok := strings.Cut(s, "/")
	if !ok || class == "" || value == "" {
		return ObjectID{}, fmt.Errorf("invalid object id %q", s)
	}
	return ObjectID{Class: class, Value: value}, nil
}

// IsZero reports whether the identifier is unset.
func (id ObjectID) IsZero() bool {
	return id.Class == "" && id.Value == ""
}

func (id ObjectID) String() string {
	if id.IsZero() {
		return "<nil>"
	}
	return id.Class + "/" + id.Value
}

// Less orders identifiers by class, then value.
func (id ObjectID) Less(other ObjectID) bool {
	if id.Class != other.Class {
		return id.Class < other.Class
	}
	return id.Value < other.Value
}

// PropertyID names a relation property in Class.Name form.
type PropertyID string

// Class returns the declaring class of the property.
func (p PropertyID) Class() string {
	class, _, _ := strings.Cut(string(p), ".")
	return class
}

// Name returns the property name without its class prefix.
func (p PropertyID) Name() string {
	_, name, ok := strings.Cut(string(p), ".")
	if !ok {
		return ""
	}
	return name
}

// Valid reports whether the property follows the Class.Name form.
func (p PropertyID) Valid() bool {
	return p.Class() != "" && p.Name() != ""
}

// RelationEndPointID keys one side of one association for one object.
type RelationEndPointID struct {
	ObjectID ObjectID   `json:"object_id"`
	Property PropertyID `json:"property"`
}

// NewRelationEndPointID composes an end point key.
func NewRelationEndPointID(id ObjectID, property PropertyID) RelationEndPointID {
	return RelationEndPointID{ObjectID: id, Property: property}
}

func (id RelationEndPointID) String() string {
	return id.ObjectID.String() + "#" + string(id.Property)
}

// Less orders end point identifiers by object, then property.
func (id RelationEndPointID) Less(other RelationEndPointID) bool {
	if id.ObjectID != other.ObjectID {
		return id.ObjectID.Less(other.ObjectID)
	}
	return id.Property < other.Property
}
