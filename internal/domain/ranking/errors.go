package ranking

import "errors"

// ErrNotFound means the key has no recorded score in the group.
var ErrNotFound = errors.New("score not recorded")
