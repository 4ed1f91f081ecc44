// Package schema resolves structural metadata from declared model types:
// table identity, datasource name, primary key, column-per-field mapping and
// relation declarations. Resolution happens once per type; the Registry caches
// the result for the process lifetime.
package schema

import (
	"fmt"
	"reflect"

	"github.com/go-openapi/inflect"
)

// DefaultPrimaryKey is the conventional primary-key field name used when no
// field is explicitly marked primary.
const DefaultPrimaryKey = "id"

// Kind represents the kind of a declared relation
type Kind int

const (
	// HasMany is a one-to-many relation held on the owning side as a slice
	HasMany Kind = iota
	// BelongsTo is a many-to-one reference held as a pointer to the target
	BelongsTo
)

// String returns the string representation of the relation kind
func (k Kind) String() string {
	switch k {
	case HasMany:
		return "has_many"
	case BelongsTo:
		return "belongs_to"
	default:
		return "unknown"
	}
}

// Relation describes a declared association between two model types
type Relation struct {
	Kind       Kind
	FieldName  string       // owning field on the source struct
	Target     reflect.Type // target struct type (never a pointer)
	ForeignKey string       // foreign-key column name
}

// Tabler overrides the derived table name for a model
type Tabler interface {
	TableName() string
}

// DataSourcer overrides the datasource a model is bound to
type DataSourcer interface {
	DataSourceName() string
}

// accessor reads and writes one struct field through its index path
type accessor struct {
	index []int
	typ   reflect.Type
}

// Metadata holds the derived structural facts for one declared type.
// It is immutable after resolution and safe for concurrent use.
type Metadata struct {
	Type           reflect.Type // struct type, never a pointer
	Name           string       // simple type name
	TableName      string
	DataSourceName string
	PrimaryKey     string // field name, empty when the model has none

	fields        []string          // declaration order
	columns       map[string]string // field name -> column name
	columnToField map[string]string
	relations     map[string]*Relation
	accessors     map[string]accessor
}

// Fields returns the mapped field names in declaration order
func (m *Metadata) Fields() []string {
	out := make([]string, len(m.fields))
	copy(out, m.fields)
	return out
}

// Column returns the column name mapped to a field
func (m *Metadata) Column(field string) (string, error) {
	col, ok := m.columns[field]
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, m.Name, field)
	}
	return col, nil
}

// FieldForColumn returns the field name a result column maps to
func (m *Metadata) FieldForColumn(column string) (string, bool) {
	f, ok := m.columnToField[column]
	return f, ok
}

// HasPrimaryKey reports whether the model resolved a primary-key field
func (m *Metadata) HasPrimaryKey() bool {
	return m.PrimaryKey != ""
}

// PrimaryKeyColumn returns the column name of the primary-key field
func (m *Metadata) PrimaryKeyColumn() (string, error) {
	if !m.HasPrimaryKey() {
		return "", fmt.Errorf("%w: %s", ErrNoPrimaryKey, m.Name)
	}
	return m.columns[m.PrimaryKey], nil
}

// Relation returns a declared relation by its owning field name
func (m *Metadata) Relation(name string) (*Relation, error) {
	rel, ok := m.relations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, m.Name, name)
	}
	return rel, nil
}

// Relations returns all declared relations keyed by owning field name
func (m *Metadata) Relations() map[string]*Relation {
	out := make(map[string]*Relation, len(m.relations))
	for k, v := range m.relations {
		out[k] = v
	}
	return out
}

// NewInstance allocates a fresh instance of the model type
func (m *Metadata) NewInstance() any {
	return reflect.New(m.Type).Interface()
}

// ReadField reads a field value from an entity of the model type
func (m *Metadata) ReadField(entity any, field string) (any, error) {
	acc, ok := m.accessors[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, m.Name, field)
	}
	v, err := m.structValue(entity)
	if err != nil {
		return nil, err
	}
	return v.FieldByIndex(acc.index).Interface(), nil
}

// WriteField writes a value into a field of an entity of the model type,
// converting between compatible representations where needed
func (m *Metadata) WriteField(entity any, field string, value any) error {
	acc, ok := m.accessors[field]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, m.Name, field)
	}
	v, err := m.structValue(entity)
	if err != nil {
		return err
	}
	return assign(v.FieldByIndex(acc.index), value)
}

// FieldAddr returns a pointer to a field of an entity, suitable as a
// database/sql scan destination
func (m *Metadata) FieldAddr(entity any, field string) (any, error) {
	acc, ok := m.accessors[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, m.Name, field)
	}
	v, err := m.structValue(entity)
	if err != nil {
		return nil, err
	}
	return v.FieldByIndex(acc.index).Addr().Interface(), nil
}

// PrimaryValue reads the primary-key value of an entity
func (m *Metadata) PrimaryValue(entity any) (any, error) {
	if !m.HasPrimaryKey() {
		return nil, fmt.Errorf("%w: %s", ErrNoPrimaryKey, m.Name)
	}
	return m.ReadField(entity, m.PrimaryKey)
}

// SetPrimaryValue writes the primary-key value of an entity
func (m *Metadata) SetPrimaryValue(entity any, value any) error {
	if !m.HasPrimaryKey() {
		return fmt.Errorf("%w: %s", ErrNoPrimaryKey, m.Name)
	}
	return m.WriteField(entity, m.PrimaryKey, value)
}

// structValue unwraps an entity down to its addressable struct value
func (m *Metadata) structValue(entity any) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%s: entity is nil", m.Name)
		}
		v = v.Elem()
	}
	if v.Type() != m.Type {
		return reflect.Value{}, fmt.Errorf("%s: entity has type %s", m.Name, v.Type())
	}
	return v, nil
}

// assign stores value into dst, converting where the representations differ
// (driver []byte for text columns, wider integers, etc.)
func assign(dst reflect.Value, value any) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(dst.Type()) {
		dst.Set(v)
		return nil
	}
	if b, ok := value.([]byte); ok && dst.Kind() == reflect.String {
		dst.SetString(string(b))
		return nil
	}
	if v.Type().ConvertibleTo(dst.Type()) {
		dst.Set(v.Convert(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Pointer && v.Type().AssignableTo(dst.Type().Elem()) {
		p := reflect.New(dst.Type().Elem())
		p.Elem().Set(v)
		dst.Set(p)
		return nil
	}
	return fmt.Errorf("cannot assign %T to field of type %s", value, dst.Type())
}

// EncodeDefaultKey derives the conventional foreign-key column for a name
func EncodeDefaultKey(name string) string {
	return inflect.Underscore(name) + "_" + DefaultPrimaryKey
}
