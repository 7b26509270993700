package keys

import (
	"errors"
	"fmt"
)

// ErrKeyExists is returned by Generate when the target file exists and the
// caller did not ask to override it.
var ErrKeyExists = errors.New("key file already exists")

// ErrInvalidPeerID is returned when a PeerID string cannot be decoded.
var ErrInvalidPeerID = errors.New("invalid peer id")

// IdentityErrorKind classifies an IdentityError.
type IdentityErrorKind int

// IdentityErrorKind values.
const (
	// NotFound means the seed file is missing and creation was not allowed.
	NotFound IdentityErrorKind = iota + 1
	// Corrupt means the seed file exists but is not exactly SeedLen bytes.
	Corrupt
)

func (k IdentityErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Corrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IdentityError is returned when an identity cannot be loaded at startup. It
// is always fatal to the process.
type IdentityError struct {
	Kind IdentityErrorKind
	Path string
	Err  error
}

func (e *IdentityError) Error() string {
	switch e.Kind {
	case NotFound:
		return fmt.Sprintf("identity %s: not found and creation is disabled", e.Path)
	case Corrupt:
		return fmt.Sprintf("identity %s: corrupt seed: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("identity %s: %v", e.Path, e.Err)
}

func (e *IdentityError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is an IdentityError of kind NotFound.
func IsNotFound(err error) bool {
	var ie *IdentityError
	return errors.As(err, &ie) && ie.Kind == NotFound
}

// IsCorrupt reports whether err is an IdentityError of kind Corrupt.
func IsCorrupt(err error) bool {
	var ie *IdentityError
	return errors.As(err, &ie) && ie.Kind == Corrupt
}
