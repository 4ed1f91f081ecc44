package objsql

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"github.com/talangzhe005/objsql/validation"
)

// Save persists an entity. A zero primary key means insert; string keys get
// a generated UUID, integer keys are left to the database and written back
// from the driver result when available. A set key updates in place, falling
// back to an insert when no row matched.
//
// With validateFirst the installed validator runs before any write; a
// non-empty violation list aborts with *validation.Error and nothing is
// written. Without it the validator is bypassed entirely.
func Save[T any](ctx context.Context, entity *T, validateFirst bool) error {
	if validateFirst {
		if err := validation.MustValidate(entity); err != nil {
			return err
		}
	}

	s := Default()
	meta, err := metaFor[T](s)
	if err != nil {
		return err
	}

	if !meta.HasPrimaryKey() {
		_, err := s.exec.Insert(ctx, meta, entity, true)
		return err
	}

	pk, err := meta.PrimaryValue(entity)
	if err != nil {
		return err
	}

	if isZeroValue(pk) {
		if isStringKey(pk) {
			if err := meta.SetPrimaryValue(entity, uuid.NewString()); err != nil {
				return err
			}
			_, err := s.exec.Insert(ctx, meta, entity, true)
			return err
		}
		res, err := s.exec.Insert(ctx, meta, entity, false)
		if err != nil {
			return err
		}
		// Not every driver reports assigned keys; postgres callers keep
		// explicit keys or use string keys instead.
		if id, err := res.LastInsertId(); err == nil && id != 0 {
			return meta.SetPrimaryValue(entity, id)
		}
		return nil
	}

	affected, err := s.exec.Update(ctx, meta, entity)
	if err != nil {
		return err
	}
	if affected == 0 {
		_, err := s.exec.Insert(ctx, meta, entity, true)
		return err
	}
	return nil
}

func isZeroValue(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

func isStringKey(v any) bool {
	_, ok := v.(string)
	return ok
}
