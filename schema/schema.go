// Package schema defines table descriptors for fluxdb: per-table column
// metadata used for payload validation, default application, and DDL
// generation. A Table is immutable once constructed and is shared by all
// builders targeting it.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-openapi/inflect"

	"github.com/syssam/fluxdb/schema/field"
)

// Table describes the row shape of a single table.
type Table struct {
	name    string
	columns []*field.Descriptor
	index   map[string]*field.Descriptor
	err     error
}

// New creates a table descriptor from the given field builders.
// Construction errors (duplicate or invalid fields) are deferred to Err,
// surfaced by the client at registration time.
func New(name string, fields ...field.Builder) *Table {
	t := &Table{
		name:  name,
		index: make(map[string]*field.Descriptor, len(fields)),
	}
	if name == "" {
		t.err = fmt.Errorf("schema: table name is empty")
		return t
	}
	for _, fb := range fields {
		fd := fb.Descriptor()
		switch {
		case t.err != nil:
		case fd.Err != nil:
			t.err = fmt.Errorf("schema: table %q: %w", name, fd.Err)
		case fd.Name == "":
			t.err = fmt.Errorf("schema: table %q has a field with no name", name)
		case !fd.Type.Valid():
			t.err = fmt.Errorf("schema: table %q: field %q has invalid type", name, fd.Name)
		default:
			if _, ok := t.index[fd.Name]; ok {
				t.err = fmt.Errorf("schema: table %q: duplicate field %q", name, fd.Name)
				break
			}
			t.index[fd.Name] = fd
		}
		t.columns = append(t.columns, fd)
	}
	return t
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Err returns the first construction error, if any.
func (t *Table) Err() error { return t.err }

// Columns returns the column names in declaration order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Field returns the descriptor of the named column.
func (t *Table) Field(name string) (*field.Descriptor, bool) {
	fd, ok := t.index[name]
	return fd, ok
}

// ValidateInsert validates a full insert payload against the table.
//
// It returns a new map with defaults applied for absent columns. Required
// columns (neither optional nor defaulted) must be present. The input map
// is never modified.
func (t *Table) ValidateInsert(row map[string]any) (map[string]any, error) {
	if t.err != nil {
		return nil, t.err
	}
	ve := &ValidationError{Table: t.name}
	out := make(map[string]any, len(t.columns))
	for _, fd := range t.columns {
		v, ok := row[fd.Name]
		switch {
		case ok:
			if err := t.checkValue(fd, v); err != nil {
				ve.add(fd.Name, err)
				continue
			}
			out[fd.Name] = v
		case fd.HasDefault():
			out[fd.Name] = fd.DefaultValue()
		case !fd.Optional:
			ve.add(fd.Name, fmt.Errorf("missing required field"))
		}
	}
	t.checkUnknown(row, ve)
	if len(ve.Fields) > 0 {
		return nil, ve
	}
	return out, nil
}

// ValidatePartial validates a partial payload: only columns present in the
// map are checked. Used for updates.
func (t *Table) ValidatePartial(row map[string]any) (map[string]any, error) {
	if t.err != nil {
		return nil, t.err
	}
	ve := &ValidationError{Table: t.name}
	out := make(map[string]any, len(row))
	for _, fd := range t.columns {
		v, ok := row[fd.Name]
		if !ok {
			continue
		}
		if err := t.checkValue(fd, v); err != nil {
			ve.add(fd.Name, err)
			continue
		}
		out[fd.Name] = v
	}
	t.checkUnknown(row, ve)
	if len(ve.Fields) > 0 {
		return nil, ve
	}
	return out, nil
}

func (t *Table) checkValue(fd *field.Descriptor, v any) error {
	if v == nil {
		if !fd.Nillable {
			return fmt.Errorf("null value for non-nillable field")
		}
		return nil
	}
	if err := checkKind(fd.Type, v); err != nil {
		return err
	}
	for _, validate := range fd.Validators {
		if err := validate(v); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) checkUnknown(row map[string]any, ve *ValidationError) {
	var unknown []string
	for k := range row {
		if _, ok := t.index[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		ve.add(k, fmt.Errorf("unknown column"))
	}
}

// checkKind verifies the Go value is representable in the field type.
func checkKind(ft field.Type, v any) error {
	switch ft {
	case field.TypeBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
	case field.TypeInt, field.TypeInt64:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, float64:
		default:
			return fmt.Errorf("expected integer, got %T", v)
		}
	case field.TypeFloat64:
		switch v.(type) {
		case float32, float64, int, int64:
		default:
			return fmt.Errorf("expected float, got %T", v)
		}
	case field.TypeString, field.TypeText, field.TypeEnum, field.TypeUUID:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case field.TypeTime:
		switch v.(type) {
		case time.Time, string:
		default:
			return fmt.Errorf("expected time, got %T", v)
		}
	case field.TypeBytes:
		if _, ok := v.([]byte); !ok {
			return fmt.Errorf("expected bytes, got %T", v)
		}
	}
	return nil
}

// CreateSQL returns a CREATE TABLE statement for the table. This is a
// secondary utility for bootstrapping migrations from schema definitions;
// migrations remain the source of truth for persisted layout.
func (t *Table) CreateSQL(ifNotExists bool) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(t.name)
	b.WriteString(" (")
	for i, fd := range t.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fd.Name)
		b.WriteByte(' ')
		b.WriteString(fd.Type.SQLType())
		if fd.Unique {
			b.WriteString(" UNIQUE")
		}
		if !fd.Nillable {
			b.WriteString(" NOT NULL")
		}
		if lit, ok := defaultLiteral(fd); ok {
			b.WriteString(" DEFAULT ")
			b.WriteString(lit)
		}
	}
	b.WriteString(")")
	return b.String()
}

// DropSQL returns a DROP TABLE IF EXISTS statement for the table.
func (t *Table) DropSQL() string {
	return "DROP TABLE IF EXISTS " + t.name
}

// defaultLiteral renders a static default as a SQL literal. Factory
// defaults are applied at insert time and have no DDL representation.
func defaultLiteral(fd *field.Descriptor) (string, bool) {
	if fd.DefaultFunc != nil || fd.Default == nil {
		return "", false
	}
	switch v := fd.Default.(type) {
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// Tableize derives a conventional table name from a type-like identifier,
// e.g. "TodoItem" -> "todo_items".
func Tableize(ident string) string {
	return inflect.Tableize(ident)
}
