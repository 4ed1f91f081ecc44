// Package relation populates declared relations on loaded entity sets with
// one batched follow-up query per relation, regardless of set size.
package relation

import (
	"context"
	"fmt"
	"reflect"

	"github.com/talangzhe005/objsql/engine"
	"github.com/talangzhe005/objsql/query"
	"github.com/talangzhe005/objsql/schema"
)

// Resolver loads relation fields through the execution engine
type Resolver struct {
	exec *engine.Executor
}

// NewResolver creates a resolver on top of an executor
func NewResolver(exec *engine.Executor) *Resolver {
	return &Resolver{exec: exec}
}

// Load populates the named relation on every entity in the set. Entities
// must be pointers to the source model type. The work costs at most one
// query against the target table.
func (r *Resolver) Load(ctx context.Context, meta *schema.Metadata, entities []any, relationName string) error {
	if len(entities) == 0 {
		return nil
	}
	rel, err := meta.Relation(relationName)
	if err != nil {
		return err
	}
	target, err := r.exec.Registry().Lookup(rel.Target)
	if err != nil {
		return fmt.Errorf("relation %s.%s: %w", meta.Name, relationName, err)
	}

	switch rel.Kind {
	case schema.HasMany:
		return r.loadHasMany(ctx, meta, target, rel, entities)
	case schema.BelongsTo:
		return r.loadBelongsTo(ctx, meta, target, rel, entities)
	default:
		return fmt.Errorf("relation %s.%s: unsupported kind %s", meta.Name, relationName, rel.Kind)
	}
}

// loadHasMany batches children by the source primary key: one
// WHERE fk IN (...) query, partitioned by foreign-key value in driver row
// order. Sources with no children get an allocated empty collection.
func (r *Resolver) loadHasMany(ctx context.Context, meta, target *schema.Metadata, rel *schema.Relation, entities []any) error {
	keys, err := collectKeys(entities, func(e any) (any, error) {
		return meta.PrimaryValue(e)
	})
	if err != nil {
		return err
	}

	fkField, ok := target.FieldForColumn(rel.ForeignKey)
	if !ok {
		return fmt.Errorf("relation %s.%s: target %s has no column %s",
			meta.Name, rel.FieldName, target.Name, rel.ForeignKey)
	}

	var children []any
	if len(keys.values) > 0 {
		sqlText, args, err := query.New(target).
			Where(query.In(rel.ForeignKey, len(keys.values)), keys.values...).
			SQL()
		if err != nil {
			return err
		}
		children, err = r.exec.Query(ctx, target, sqlText, args)
		if err != nil {
			return err
		}
	}

	// Partition preserving driver row order within each group.
	grouped := make(map[string][]any)
	for _, child := range children {
		fk, err := target.ReadField(child, fkField)
		if err != nil {
			return err
		}
		k := keyOf(fk)
		grouped[k] = append(grouped[k], child)
	}

	fieldType, err := relationFieldType(meta, rel)
	if err != nil {
		return err
	}
	for _, entity := range entities {
		pk, err := meta.PrimaryValue(entity)
		if err != nil {
			return err
		}
		slice := reflect.MakeSlice(fieldType, 0, len(grouped[keyOf(pk)]))
		for _, child := range grouped[keyOf(pk)] {
			cv := reflect.ValueOf(child)
			if fieldType.Elem().Kind() != reflect.Pointer {
				cv = cv.Elem()
			}
			slice = reflect.Append(slice, cv)
		}
		if err := meta.WriteField(entity, rel.FieldName, slice.Interface()); err != nil {
			return err
		}
	}
	return nil
}

// loadBelongsTo batches referenced rows by the source foreign key: one
// WHERE pk IN (...) query against the target. A source whose key matches no
// row keeps an unset relation field.
func (r *Resolver) loadBelongsTo(ctx context.Context, meta, target *schema.Metadata, rel *schema.Relation, entities []any) error {
	fkField, ok := meta.FieldForColumn(rel.ForeignKey)
	if !ok {
		return fmt.Errorf("relation %s.%s: source has no column %s",
			meta.Name, rel.FieldName, rel.ForeignKey)
	}
	pkCol, err := target.PrimaryKeyColumn()
	if err != nil {
		return fmt.Errorf("relation %s.%s: %w", meta.Name, rel.FieldName, err)
	}

	keys, err := collectKeys(entities, func(e any) (any, error) {
		return meta.ReadField(e, fkField)
	})
	if err != nil {
		return err
	}
	if len(keys.values) == 0 {
		return nil
	}

	sqlText, args, err := query.New(target).
		Where(query.In(pkCol, len(keys.values)), keys.values...).
		SQL()
	if err != nil {
		return err
	}
	rows, err := r.exec.Query(ctx, target, sqlText, args)
	if err != nil {
		return err
	}

	byKey := make(map[string]any, len(rows))
	for _, row := range rows {
		pk, err := target.PrimaryValue(row)
		if err != nil {
			return err
		}
		byKey[keyOf(pk)] = row
	}

	for _, entity := range entities {
		fk, err := meta.ReadField(entity, fkField)
		if err != nil {
			return err
		}
		if isZero(fk) {
			continue
		}
		if ref, ok := byKey[keyOf(fk)]; ok {
			if err := meta.WriteField(entity, rel.FieldName, ref); err != nil {
				return err
			}
		}
	}
	return nil
}

// relationFieldType returns the declared Go type of the owning field
func relationFieldType(meta *schema.Metadata, rel *schema.Relation) (reflect.Type, error) {
	f, ok := meta.Type.FieldByName(rel.FieldName)
	if !ok {
		return nil, fmt.Errorf("%s: no field %s", meta.Name, rel.FieldName)
	}
	return f.Type, nil
}

// keySet holds deduplicated batch keys in first-seen order
type keySet struct {
	values []any
	seen   map[string]struct{}
}

func collectKeys(entities []any, read func(any) (any, error)) (*keySet, error) {
	ks := &keySet{seen: make(map[string]struct{})}
	for _, e := range entities {
		v, err := read(e)
		if err != nil {
			return nil, err
		}
		if isZero(v) {
			continue
		}
		k := keyOf(v)
		if _, dup := ks.seen[k]; dup {
			continue
		}
		ks.seen[k] = struct{}{}
		ks.values = append(ks.values, v)
	}
	return ks, nil
}

// keyOf normalizes a key value for map grouping across driver-chosen widths
func keyOf(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case []byte:
		return string(k)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.IsZero()
}
