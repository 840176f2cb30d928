package virtual

import "errors"

var (
	// ErrUnbalanced indicates the forest violates the 2:1 condition under
	// the requested connectivity.
	ErrUnbalanced = errors.New("virtual: forest is not 2:1 balanced under the requested connectivity")
	// ErrConnectivity indicates a connectivity that is invalid for the
	// dimension or richer than the structure it is resolved against.
	ErrConnectivity = errors.New("virtual: connectivity out of range")
)
