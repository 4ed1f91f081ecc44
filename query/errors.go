package query

import "errors"

// ErrPredicateMismatch is returned when the number of ? placeholders in the
// accumulated predicate does not match the number of bound parameters. The
// check runs before the statement reaches the driver, because mismatched
// bind counts otherwise surface as confusing database errors.
var ErrPredicateMismatch = errors.New("placeholder count does not match bound parameters")
