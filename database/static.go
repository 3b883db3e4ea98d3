package database

import (
	"context"

	"github.com/gaborage/go-rowkit/database/types"
)

type staticSchemaDriver struct {
	types.Driver
	schema types.Schema
}

// WithStaticSchema wraps drv so GetSchema returns schema instead of
// introspecting the database. Every other operation is delegated.
func WithStaticSchema(drv types.Driver, schema types.Schema) types.Driver {
	return &staticSchemaDriver{Driver: drv, schema: schema}
}

func (d *staticSchemaDriver) GetSchema(context.Context) (types.Schema, error) {
	return d.schema, nil
}
