package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"unitofwork/pkg/domain"
)

// SchemaFile is the YAML authoring form of a relation schema:
//
//	classes: [Official]
//	relations:
//	  - kind: one_to_many
//	    property: Order.Customer
//	    opposite_property: Customer.Orders
type SchemaFile struct {
	Classes   []string         `yaml:"classes"`
	Relations []RelationConfig `yaml:"relations"`
}

// RelationConfig mirrors domain.RelationDefinition.
type RelationConfig struct {
	Kind              string `yaml:"kind"`
	Property          string `yaml:"property"`
	OppositeProperty  string `yaml:"opposite_property"`
	OppositeClass     string `yaml:"opposite_class"`
	Mandatory         bool   `yaml:"mandatory"`
	OppositeMandatory bool   `yaml:"opposite_mandatory"`
}

// LoadSchema reads and builds the schema stored at path.
func LoadSchema(path string) (*domain.Schema, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied schema path
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return ParseSchema(data)
}

// ParseSchema builds a schema from its YAML form. Unknown fields are rejected.
func ParseSchema(data []byte) (*domain.Schema, error) {
	var file SchemaFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	schema := domain.NewSchema()
	for _, class := range file.Classes {
		schema.AddClass(class)
	}
	for i, rel := range file.Relations {
		err := schema.Define(domain.RelationDefinition{
			Kind:              domain.RelationKind(rel.Kind),
			Property:          domain.PropertyID(rel.Property),
			OppositeProperty:  domain.PropertyID(rel.OppositeProperty),
			OppositeClass:     rel.OppositeClass,
			Mandatory:         rel.Mandatory,
			OppositeMandatory: rel.OppositeMandatory,
		})
		if err != nil {
			return nil, fmt.Errorf("relation %d: %w", i, err)
		}
	}
	return schema, nil
}
