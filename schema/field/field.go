// Package field provides fluent builders for defining table fields.
//
// Field names follow database conventions (snake_case):
//
//	field.String("title").NotEmpty()
//	field.Bool("completed").Default(false)
//	field.Enum("priority").Values("low", "medium", "high").Default("medium")
//	field.UUID("id").DefaultNew()
//
// A builder is consumed by schema.New, which calls Descriptor to obtain the
// immutable column description used for validation and DDL generation.
package field

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// A Type represents a field SQL-relevant type.
type Type uint8

// List of field types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt
	TypeInt64
	TypeFloat64
	TypeString
	TypeText
	TypeTime
	TypeUUID
	TypeEnum
	TypeBytes
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeInt:     "int",
	TypeInt64:   "int64",
	TypeFloat64: "float64",
	TypeString:  "string",
	TypeText:    "text",
	TypeTime:    "time",
	TypeUUID:    "uuid",
	TypeEnum:    "enum",
	TypeBytes:   "bytes",
}

// String returns the name of the type.
func (t Type) String() string {
	if t >= endTypes {
		return fmt.Sprintf("invalid(%d)", t)
	}
	return typeNames[t]
}

// Valid reports if the given type is a valid field type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// SQLType returns the SQLite column type for t.
func (t Type) SQLType() string {
	switch t {
	case TypeBool, TypeInt, TypeInt64:
		return "INTEGER"
	case TypeFloat64:
		return "REAL"
	case TypeBytes:
		return "BLOB"
	case TypeTime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// A Descriptor for field configuration.
type Descriptor struct {
	Name        string            // field name
	Type        Type              // SQL-relevant type
	Optional    bool              // may be omitted on insert
	Nillable    bool              // NULL is a legal stored value
	Unique      bool              // unique constraint in DDL
	Default     any               // static default value
	DefaultFunc func() any        // default value factory, takes precedence over Default
	Validators  []func(any) error // payload validators
	Enums       []string          // enum values, for TypeEnum only
	Comment     string            // column comment
	Err         error             // builder error, surfaced at schema construction
}

// HasDefault reports whether the field has a default value or factory.
func (d *Descriptor) HasDefault() bool {
	return d.Default != nil || d.DefaultFunc != nil
}

// DefaultValue materializes the field default. Factories are invoked per call.
func (d *Descriptor) DefaultValue() any {
	if d.DefaultFunc != nil {
		return d.DefaultFunc()
	}
	return d.Default
}

// A Builder produces a field Descriptor. All constructors in this
// package return a Builder.
type Builder interface {
	Descriptor() *Descriptor
}

// String returns a new string field builder.
func String(name string) *stringBuilder {
	return &stringBuilder{&Descriptor{Name: name, Type: TypeString}}
}

// Text returns a new text field builder. It behaves like String, but is
// declared as unbounded text in the generated DDL.
func Text(name string) *stringBuilder {
	return &stringBuilder{&Descriptor{Name: name, Type: TypeText}}
}

// Int returns a new integer field builder.
func Int(name string) *intBuilder {
	return &intBuilder{&Descriptor{Name: name, Type: TypeInt}}
}

// Int64 returns a new int64 field builder.
func Int64(name string) *intBuilder {
	return &intBuilder{&Descriptor{Name: name, Type: TypeInt64}}
}

// Float64 returns a new float field builder.
func Float64(name string) *floatBuilder {
	return &floatBuilder{&Descriptor{Name: name, Type: TypeFloat64}}
}

// Bool returns a new boolean field builder.
func Bool(name string) *boolBuilder {
	return &boolBuilder{&Descriptor{Name: name, Type: TypeBool}}
}

// Time returns a new time field builder.
func Time(name string) *timeBuilder {
	return &timeBuilder{&Descriptor{Name: name, Type: TypeTime}}
}

// UUID returns a new uuid field builder.
func UUID(name string) *uuidBuilder {
	return &uuidBuilder{&Descriptor{Name: name, Type: TypeUUID}}
}

// Enum returns a new enum field builder.
func Enum(name string) *enumBuilder {
	return &enumBuilder{&Descriptor{Name: name, Type: TypeEnum}}
}

// Bytes returns a new bytes field builder.
func Bytes(name string) *bytesBuilder {
	return &bytesBuilder{&Descriptor{Name: name, Type: TypeBytes}}
}

// stringBuilder is the builder for string fields.
type stringBuilder struct {
	desc *Descriptor
}

// Optional marks the field as optional on insert.
func (b *stringBuilder) Optional() *stringBuilder {
	b.desc.Optional = true
	return b
}

// Nillable allows NULL as a stored value and implies Optional.
func (b *stringBuilder) Nillable() *stringBuilder {
	b.desc.Nillable = true
	b.desc.Optional = true
	return b
}

// Unique adds a unique constraint in the generated DDL.
func (b *stringBuilder) Unique() *stringBuilder {
	b.desc.Unique = true
	return b
}

// Default sets the default value of the field.
func (b *stringBuilder) Default(v string) *stringBuilder {
	b.desc.Default = v
	return b
}

// DefaultFunc sets a factory for generating the default value.
func (b *stringBuilder) DefaultFunc(fn func() any) *stringBuilder {
	b.desc.DefaultFunc = fn
	return b
}

// NotEmpty adds a validator rejecting empty strings.
func (b *stringBuilder) NotEmpty() *stringBuilder {
	return b.Validate(func(s string) error {
		if s == "" {
			return fmt.Errorf("value is empty")
		}
		return nil
	})
}

// MinLen adds a minimum length validator.
func (b *stringBuilder) MinLen(n int) *stringBuilder {
	return b.Validate(func(s string) error {
		if len(s) < n {
			return fmt.Errorf("value is less than the required length %d", n)
		}
		return nil
	})
}

// MaxLen adds a maximum length validator.
func (b *stringBuilder) MaxLen(n int) *stringBuilder {
	return b.Validate(func(s string) error {
		if len(s) > n {
			return fmt.Errorf("value is greater than the allowed length %d", n)
		}
		return nil
	})
}

// Match adds a regexp validator.
func (b *stringBuilder) Match(re *regexp.Regexp) *stringBuilder {
	return b.Validate(func(s string) error {
		if !re.MatchString(s) {
			return fmt.Errorf("value does not match validation")
		}
		return nil
	})
}

// Validate adds a custom string validator.
func (b *stringBuilder) Validate(fn func(string) error) *stringBuilder {
	b.desc.Validators = append(b.desc.Validators, func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		return fn(s)
	})
	return b
}

// Comment sets the comment of the field.
func (b *stringBuilder) Comment(c string) *stringBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Builder interface.
func (b *stringBuilder) Descriptor() *Descriptor {
	return b.desc
}

// intBuilder is the builder for integer fields.
type intBuilder struct {
	desc *Descriptor
}

// Optional marks the field as optional on insert.
func (b *intBuilder) Optional() *intBuilder {
	b.desc.Optional = true
	return b
}

// Nillable allows NULL as a stored value and implies Optional.
func (b *intBuilder) Nillable() *intBuilder {
	b.desc.Nillable = true
	b.desc.Optional = true
	return b
}

// Unique adds a unique constraint in the generated DDL.
func (b *intBuilder) Unique() *intBuilder {
	b.desc.Unique = true
	return b
}

// Default sets the default value of the field.
func (b *intBuilder) Default(v int64) *intBuilder {
	b.desc.Default = v
	return b
}

// DefaultFunc sets a factory for generating the default value.
func (b *intBuilder) DefaultFunc(fn func() any) *intBuilder {
	b.desc.DefaultFunc = fn
	return b
}

// Min adds a minimum value validator.
func (b *intBuilder) Min(n int64) *intBuilder {
	return b.Validate(func(v int64) error {
		if v < n {
			return fmt.Errorf("value out of range")
		}
		return nil
	})
}

// Max adds a maximum value validator.
func (b *intBuilder) Max(n int64) *intBuilder {
	return b.Validate(func(v int64) error {
		if v > n {
			return fmt.Errorf("value out of range")
		}
		return nil
	})
}

// Positive adds a validator requiring the value to be > 0.
func (b *intBuilder) Positive() *intBuilder {
	return b.Min(1)
}

// NonNegative adds a validator requiring the value to be >= 0.
func (b *intBuilder) NonNegative() *intBuilder {
	return b.Min(0)
}

// Validate adds a custom integer validator.
func (b *intBuilder) Validate(fn func(int64) error) *intBuilder {
	b.desc.Validators = append(b.desc.Validators, func(v any) error {
		n, ok := asInt64(v)
		if !ok {
			return fmt.Errorf("expected integer, got %T", v)
		}
		return fn(n)
	})
	return b
}

// Comment sets the comment of the field.
func (b *intBuilder) Comment(c string) *intBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Builder interface.
func (b *intBuilder) Descriptor() *Descriptor {
	return b.desc
}

// floatBuilder is the builder for float fields.
type floatBuilder struct {
	desc *Descriptor
}

// Optional marks the field as optional on insert.
func (b *floatBuilder) Optional() *floatBuilder {
	b.desc.Optional = true
	return b
}

// Nillable allows NULL as a stored value and implies Optional.
func (b *floatBuilder) Nillable() *floatBuilder {
	b.desc.Nillable = true
	b.desc.Optional = true
	return b
}

// Default sets the default value of the field.
func (b *floatBuilder) Default(v float64) *floatBuilder {
	b.desc.Default = v
	return b
}

// Min adds a minimum value validator.
func (b *floatBuilder) Min(n float64) *floatBuilder {
	return b.Validate(func(v float64) error {
		if v < n {
			return fmt.Errorf("value out of range")
		}
		return nil
	})
}

// Max adds a maximum value validator.
func (b *floatBuilder) Max(n float64) *floatBuilder {
	return b.Validate(func(v float64) error {
		if v > n {
			return fmt.Errorf("value out of range")
		}
		return nil
	})
}

// Positive adds a validator requiring the value to be > 0.
func (b *floatBuilder) Positive() *floatBuilder {
	return b.Validate(func(v float64) error {
		if v <= 0 {
			return fmt.Errorf("value out of range")
		}
		return nil
	})
}

// Validate adds a custom float validator.
func (b *floatBuilder) Validate(fn func(float64) error) *floatBuilder {
	b.desc.Validators = append(b.desc.Validators, func(v any) error {
		f, ok := asFloat64(v)
		if !ok {
			return fmt.Errorf("expected float, got %T", v)
		}
		return fn(f)
	})
	return b
}

// Comment sets the comment of the field.
func (b *floatBuilder) Comment(c string) *floatBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Builder interface.
func (b *floatBuilder) Descriptor() *Descriptor {
	return b.desc
}

// boolBuilder is the builder for boolean fields.
type boolBuilder struct {
	desc *Descriptor
}

// Optional marks the field as optional on insert.
func (b *boolBuilder) Optional() *boolBuilder {
	b.desc.Optional = true
	return b
}

// Nillable allows NULL as a stored value and implies Optional.
func (b *boolBuilder) Nillable() *boolBuilder {
	b.desc.Nillable = true
	b.desc.Optional = true
	return b
}

// Default sets the default value of the field.
func (b *boolBuilder) Default(v bool) *boolBuilder {
	b.desc.Default = v
	return b
}

// Comment sets the comment of the field.
func (b *boolBuilder) Comment(c string) *boolBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Builder interface.
func (b *boolBuilder) Descriptor() *Descriptor {
	return b.desc
}

// timeBuilder is the builder for time fields.
type timeBuilder struct {
	desc *Descriptor
}

// Optional marks the field as optional on insert.
func (b *timeBuilder) Optional() *timeBuilder {
	b.desc.Optional = true
	return b
}

// Nillable allows NULL as a stored value and implies Optional.
func (b *timeBuilder) Nillable() *timeBuilder {
	b.desc.Nillable = true
	b.desc.Optional = true
	return b
}

// Default sets a factory for generating the default value, commonly time.Now:
//
//	field.Time("created_at").Default(time.Now)
func (b *timeBuilder) Default(fn func() time.Time) *timeBuilder {
	b.desc.DefaultFunc = func() any { return fn() }
	return b
}

// Comment sets the comment of the field.
func (b *timeBuilder) Comment(c string) *timeBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Builder interface.
func (b *timeBuilder) Descriptor() *Descriptor {
	return b.desc
}

// uuidBuilder is the builder for uuid fields, stored as TEXT.
type uuidBuilder struct {
	desc *Descriptor
}

// Optional marks the field as optional on insert.
func (b *uuidBuilder) Optional() *uuidBuilder {
	b.desc.Optional = true
	return b
}

// Unique adds a unique constraint in the generated DDL.
func (b *uuidBuilder) Unique() *uuidBuilder {
	b.desc.Unique = true
	return b
}

// Default sets the default value of the field.
func (b *uuidBuilder) Default(v string) *uuidBuilder {
	if _, err := uuid.Parse(v); err != nil && b.desc.Err == nil {
		b.desc.Err = fmt.Errorf("field: invalid uuid default for %q: %w", b.desc.Name, err)
	}
	b.desc.Default = v
	return b
}

// DefaultNew generates a random UUID per inserted row:
//
//	field.UUID("id").DefaultNew()
func (b *uuidBuilder) DefaultNew() *uuidBuilder {
	b.desc.DefaultFunc = func() any { return uuid.NewString() }
	return b
}

// Comment sets the comment of the field.
func (b *uuidBuilder) Comment(c string) *uuidBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Builder interface.
func (b *uuidBuilder) Descriptor() *Descriptor {
	d := b.desc
	d.Validators = append(d.Validators, func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected uuid string, got %T", v)
		}
		if _, err := uuid.Parse(s); err != nil {
			return fmt.Errorf("invalid uuid: %w", err)
		}
		return nil
	})
	return d
}

// enumBuilder is the builder for enum fields, stored as TEXT.
type enumBuilder struct {
	desc *Descriptor
}

// Values sets the allowed values of the enum.
func (b *enumBuilder) Values(vs ...string) *enumBuilder {
	b.desc.Enums = vs
	return b
}

// Optional marks the field as optional on insert.
func (b *enumBuilder) Optional() *enumBuilder {
	b.desc.Optional = true
	return b
}

// Nillable allows NULL as a stored value and implies Optional.
func (b *enumBuilder) Nillable() *enumBuilder {
	b.desc.Nillable = true
	b.desc.Optional = true
	return b
}

// Default sets the default value of the field.
func (b *enumBuilder) Default(v string) *enumBuilder {
	b.desc.Default = v
	return b
}

// Comment sets the comment of the field.
func (b *enumBuilder) Comment(c string) *enumBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Builder interface.
func (b *enumBuilder) Descriptor() *Descriptor {
	d := b.desc
	if len(d.Enums) == 0 && d.Err == nil {
		d.Err = fmt.Errorf("field: enum %q has no values", d.Name)
	}
	if s, ok := d.Default.(string); ok && d.Err == nil && !contains(d.Enums, s) {
		d.Err = fmt.Errorf("field: enum %q default %q is not a declared value", d.Name, s)
	}
	enums := d.Enums
	d.Validators = append(d.Validators, func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected enum string, got %T", v)
		}
		if !contains(enums, s) {
			return fmt.Errorf("%q is not a valid enum value", s)
		}
		return nil
	})
	return d
}

// bytesBuilder is the builder for blob fields.
type bytesBuilder struct {
	desc *Descriptor
}

// Optional marks the field as optional on insert.
func (b *bytesBuilder) Optional() *bytesBuilder {
	b.desc.Optional = true
	return b
}

// Nillable allows NULL as a stored value and implies Optional.
func (b *bytesBuilder) Nillable() *bytesBuilder {
	b.desc.Nillable = true
	b.desc.Optional = true
	return b
}

// MaxLen adds a maximum length validator.
func (b *bytesBuilder) MaxLen(n int) *bytesBuilder {
	b.desc.Validators = append(b.desc.Validators, func(v any) error {
		p, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("expected bytes, got %T", v)
		}
		if len(p) > n {
			return fmt.Errorf("value is greater than the allowed length %d", n)
		}
		return nil
	})
	return b
}

// Comment sets the comment of the field.
func (b *bytesBuilder) Comment(c string) *bytesBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Builder interface.
func (b *bytesBuilder) Descriptor() *Descriptor {
	return b.desc
}

func contains(vs []string, s string) bool {
	for _, v := range vs {
		if v == s {
			return true
		}
	}
	return false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		if i, ok := asInt64(v); ok {
			return float64(i), true
		}
	}
	return 0, false
}
