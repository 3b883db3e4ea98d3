//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

// Dialect identifies the SQL family a driver speaks.
type Dialect string

const (
	DialectMySQL      Dialect = "mysql"
	DialectPostgreSQL Dialect = "postgresql"
)

// ColumnType is the canonical, dialect-independent type of a column.
type ColumnType string

const (
	ColumnTypeInteger  ColumnType = "integer"
	ColumnTypeString   ColumnType = "string"
	ColumnTypeText     ColumnType = "text"
	ColumnTypeDate     ColumnType = "date"
	ColumnTypeDatetime ColumnType = "datetime"
	ColumnTypeBoolean  ColumnType = "boolean"
)

// AllColumnTypes lists every canonical column type in declaration order.
var AllColumnTypes = []ColumnType{
	ColumnTypeInteger,
	ColumnTypeString,
	ColumnTypeText,
	ColumnTypeDate,
	ColumnTypeDatetime,
	ColumnTypeBoolean,
}

// Column describes a single table column as seen by the browse and edit operations.
// MaxLength, ReferencesTable and ReferencesColumn are empty when not applicable.
type Column struct {
	Name             string     `json:"name" yaml:"name" koanf:"name"`
	Type             ColumnType `json:"type" yaml:"type" koanf:"type"`
	Nullable         bool       `json:"nullable,omitempty" yaml:"nullable" koanf:"nullable"`
	AutoIncrements   bool       `json:"autoIncrements,omitempty" yaml:"autoincrements" koanf:"autoincrements"`
	MaxLength        *int       `json:"maxLength,omitempty" yaml:"maxlength" koanf:"maxlength"`
	ReferencesTable  string     `json:"referencesTable,omitempty" yaml:"referencestable" koanf:"referencestable"`
	ReferencesColumn string     `json:"referencesColumn,omitempty" yaml:"referencescolumn" koanf:"referencescolumn"`
	Secret           bool       `json:"secret,omitempty" yaml:"secret" koanf:"secret"`
	Comment          string     `json:"comment,omitempty" yaml:"comment" koanf:"comment"`
}

// Table is an ordered list of columns plus an optional single-column primary key.
// An empty PrimaryKey means the table has no usable primary key.
type Table struct {
	Name       string   `json:"name" yaml:"name" koanf:"name"`
	PrimaryKey string   `json:"primaryKey,omitempty" yaml:"primarykey" koanf:"primarykey"`
	Columns    []Column `json:"columns" yaml:"columns" koanf:"columns"`
}

// ColumnNames returns the column names in ordinal order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasPrimaryKey reports whether rows of the table can be addressed individually.
func (t Table) HasPrimaryKey() bool {
	return t.PrimaryKey != ""
}

// Schema is the list of tables exposed by a connection, sorted by name when introspected.
type Schema struct {
	Tables []Table `json:"tables" yaml:"tables" koanf:"tables"`
}

// Table looks up a table by name.
func (s Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
