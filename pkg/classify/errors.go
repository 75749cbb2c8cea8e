package classify

import "errors"

// ErrInvalidRule indicates an extraction rule that is not a valid path.
var ErrInvalidRule = errors.New("classify: invalid extraction rule")
