package objsql

import (
	"github.com/talangzhe005/objsql/validation"
)

// NewInstanceFrom constructs a model instance from a loosely-typed map.
// Keys match column names first, then field names; unknown keys are ignored.
// Unless skipValidation is set, the installed validator runs on the result
// and a non-empty violation list aborts with *validation.Error.
func NewInstanceFrom[T any](raw map[string]any, skipValidation bool) (*T, error) {
	s := Default()
	meta, err := metaFor[T](s)
	if err != nil {
		return nil, err
	}

	entity := meta.NewInstance().(*T)
	for key, value := range raw {
		field := key
		if f, ok := meta.FieldForColumn(key); ok {
			field = f
		} else if _, err := meta.Column(key); err != nil {
			continue
		}
		if err := meta.WriteField(entity, field, value); err != nil {
			return nil, err
		}
	}

	if !skipValidation {
		if err := validation.MustValidate(entity); err != nil {
			return nil, err
		}
	}
	return entity, nil
}
