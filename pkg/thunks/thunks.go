// Package thunks contains pointers to functions and values that might be
// replaced in tests.
package thunks

import (
	"crypto/rand"
	"io"
	"os"
	"time"

	"hop.computer/dossh/pkg/readers"
)

// UserHomeDir is an alias for os.UserHomeDir
var UserHomeDir func() (string, error) = os.UserHomeDir

// TimeNow is an alias for time.Now
var TimeNow func() time.Time = time.Now

// RandReader is the source of key material.
var RandReader io.Reader = rand.Reader

// SetUpTest replaces thunks with stable test versions. home is returned by
// UserHomeDir and key material is deterministic.
func SetUpTest(home string) {
	TimeNow = func() time.Time {
		return time.Date(1992, 12, 31, 1, 2, 3, 4, time.UTC)
	}
	UserHomeDir = func() (string, error) {
		return home, nil
	}
	RandReader = readers.DeterministicRandomReader(0)
}

// TearDownTest restores the production thunks.
func TearDownTest() {
	UserHomeDir = os.UserHomeDir
	TimeNow = time.Now
	RandReader = rand.Reader
}
