package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unitofwork/pkg/domain"
)

const ordersSchema = `
classes: [Archive]
relations:
  - kind: one_to_many
    property: Order.Customer
    opposite_property: Customer.Orders
  - kind: one_to_one
    property: Computer.Employee
    opposite_property: Employee.Computer
  - kind: unidirectional
    property: Order.Official
    opposite_class: Official
  - kind: one_to_many
    property: Line.Invoice
    opposite_property: Invoice.Lines
    mandatory: true
`

func TestLoadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ordersSchema), 0o600))

	schema, err := LoadSchema(path)
	require.NoError(t, err)

	def, ok := schema.Definition("Customer.Orders")
	require.True(t, ok)
	assert.Equal(t, domain.CardinalityMany, def.Cardinality)
	assert.True(t, def.Virtual)
	def, ok = schema.Definition("Line.Invoice")
	require.True(t, ok)
	assert.True(t, def.Mandatory)
	for _, class := range []string{"Archive", "Official", "Order", "Customer", "Employee"} {
		assert.True(t, schema.HasClass(class), class)
	}
	assert.Len(t, schema.EndPointDefinitions("Order"), 2)
}

func TestParseSchemaErrors(t *testing.T) {
	_, err := LoadSchema(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read schema")

	_, err = ParseSchema([]byte("relations:\n  - kind: one_to_many\n    propertee: Order.Customer\n"))
	assert.ErrorContains(t, err, "decode schema")

	_, err = ParseSchema([]byte("relations:\n  - kind: many_to_many\n    property: Order.Tags\n"))
	assert.ErrorContains(t, err, "relation 0")

	schema, err := ParseSchema(nil)
	require.NoError(t, err)
	assert.False(t, schema.HasClass("Order"))
}
