package persist

import "errors"

// ErrCorrupt is returned when a persisted file's bytes cannot be decoded as
// a valid record of its kind.
var ErrCorrupt = errors.New("persist: corrupt record")
