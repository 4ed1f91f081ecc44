package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-openapi/inflect"
)

// Resolve derives Metadata for a declared type. It is pure: repeated calls
// for the same type produce equivalent values. Callers normally go through a
// Registry so resolution happens once.
func Resolve(model any) (*Metadata, error) {
	t, err := normalize(model)
	if err != nil {
		return nil, err
	}
	return resolveType(t)
}

// normalize unwraps a model value or reflect.Type down to its struct type
func normalize(model any) (reflect.Type, error) {
	var t reflect.Type
	switch m := model.(type) {
	case reflect.Type:
		t = m
	default:
		t = reflect.TypeOf(model)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: nil", ErrNotModel)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotModel, t)
	}
	return t, nil
}

func resolveType(t reflect.Type) (*Metadata, error) {
	meta := &Metadata{
		Type:          t,
		Name:          t.Name(),
		columns:       make(map[string]string),
		columnToField: make(map[string]string),
		relations:     make(map[string]*Relation),
		accessors:     make(map[string]accessor),
	}
	meta.TableName = tableName(t)
	meta.DataSourceName = dataSourceName(t)

	var explicitPK, conventionalPK string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if tag, ok := f.Tag.Lookup("rel"); ok {
			rel, err := parseRelation(meta.Name, f, tag)
			if err != nil {
				return nil, err
			}
			meta.relations[f.Name] = rel
			meta.accessors[f.Name] = accessor{index: f.Index, typ: f.Type}
			continue
		}
		column, primary, skip := parseColumnTag(f)
		if skip {
			continue
		}
		if primary {
			if explicitPK != "" {
				return nil, fmt.Errorf("%w: %s (%s and %s)",
					ErrDuplicatePrimaryKey, meta.Name, explicitPK, f.Name)
			}
			explicitPK = f.Name
		}
		if column == DefaultPrimaryKey {
			conventionalPK = f.Name
		}
		meta.fields = append(meta.fields, f.Name)
		meta.columns[f.Name] = column
		meta.columnToField[column] = f.Name
		meta.accessors[f.Name] = accessor{index: f.Index, typ: f.Type}
	}

	// Explicit marking wins; otherwise fall back to the conventional "id"
	// field. A model without either stays resolvable, but keyed operations
	// on it fail with ErrNoPrimaryKey.
	switch {
	case explicitPK != "":
		meta.PrimaryKey = explicitPK
	case conventionalPK != "":
		meta.PrimaryKey = conventionalPK
	}

	return meta, nil
}

// parseColumnTag interprets a `db` struct tag: `db:"name"`, `db:",primary"`,
// `db:"-"`. An absent name derives the column by underscoring the field name.
func parseColumnTag(f reflect.StructField) (column string, primary, skip bool) {
	tag := f.Tag.Get("db")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	column = parts[0]
	if column == "" {
		column = inflect.Underscore(f.Name)
	}
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "primary" {
			primary = true
		}
	}
	return column, primary, false
}

// parseRelation interprets a `rel` struct tag: `rel:"has_many"`,
// `rel:"belongs_to,fk=author_id"`. The target type comes from the field's
// declared type: a slice element for has_many, a pointer element for
// belongs_to.
func parseRelation(owner string, f reflect.StructField, tag string) (*Relation, error) {
	parts := strings.Split(tag, ",")
	rel := &Relation{FieldName: f.Name}

	switch strings.TrimSpace(parts[0]) {
	case "has_many":
		rel.Kind = HasMany
		if f.Type.Kind() != reflect.Slice {
			return nil, fmt.Errorf("%w: %s.%s: has_many requires a slice field",
				ErrInvalidRelation, owner, f.Name)
		}
		elem := f.Type.Elem()
		for elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		rel.Target = elem
	case "belongs_to":
		rel.Kind = BelongsTo
		if f.Type.Kind() != reflect.Pointer || f.Type.Elem().Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: %s.%s: belongs_to requires a struct pointer field",
				ErrInvalidRelation, owner, f.Name)
		}
		rel.Target = f.Type.Elem()
	default:
		return nil, fmt.Errorf("%w: %s.%s: unknown kind %q",
			ErrInvalidRelation, owner, f.Name, parts[0])
	}
	if rel.Target.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s.%s: target %s is not a struct",
			ErrInvalidRelation, owner, f.Name, rel.Target)
	}

	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		if v, ok := strings.CutPrefix(opt, "fk="); ok {
			rel.ForeignKey = v
		}
	}
	if rel.ForeignKey == "" {
		switch rel.Kind {
		case HasMany:
			rel.ForeignKey = EncodeDefaultKey(owner)
		case BelongsTo:
			rel.ForeignKey = EncodeDefaultKey(rel.Target.Name())
		}
	}
	return rel, nil
}

// tableName honors a Tabler override, defaulting to the tableized type name
func tableName(t reflect.Type) string {
	if tb, ok := reflect.New(t).Interface().(Tabler); ok {
		if name := tb.TableName(); name != "" {
			return name
		}
	}
	return inflect.Tableize(t.Name())
}

// dataSourceName honors a DataSourcer override, defaulting to the well-known
// default datasource
func dataSourceName(t reflect.Type) string {
	if ds, ok := reflect.New(t).Interface().(DataSourcer); ok {
		if name := ds.DataSourceName(); name != "" {
			return name
		}
	}
	return DefaultDataSource
}
