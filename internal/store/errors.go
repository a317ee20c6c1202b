package store

import "errors"

// ErrWriteConflict is returned by Save when a record file appeared between
// the existence check and the create, and the bounded modify retries did not
// succeed. Check with errors.Is(err, ErrWriteConflict).
var ErrWriteConflict = errors.New("unresolvable write conflict")
