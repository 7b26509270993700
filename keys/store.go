package keys

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"hop.computer/dossh/common"
)

// ReadSeedFile reads a seed from path. The file must be exactly SeedLen bytes.
func ReadSeedFile(path string) (Seed, error) {
	var seed Seed
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return seed, &IdentityError{Kind: NotFound, Path: path, Err: err}
		}
		return seed, &IdentityError{Path: path, Err: err}
	}
	if len(b) != common.SeedLen {
		return seed, &IdentityError{
			Kind: Corrupt,
			Path: path,
			Err:  fmt.Errorf("file is %d bytes, expected %d", len(b), common.SeedLen),
		}
	}
	copy(seed[:], b)
	return seed, nil
}

// WriteSeedFile persists seed at path. The seed is written to a temporary file
// in the same directory and moved into place, so path never holds a partial
// seed. Without override, an existing file at path is left untouched and
// ErrKeyExists is returned.
func WriteSeedFile(path string, seed Seed, override bool) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "unable to create key file in %s", dir)
	}
	tmpName := tmp.Name()
	defer func() {
		// After a successful rename or link this is a no-op or removes the
		// extra hard link.
		os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "unable to restrict key file permissions")
	}
	if _, err := tmp.Write(seed[:]); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "unable to write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "unable to sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "unable to close %s", tmpName)
	}

	if override {
		return errors.Wrapf(os.Rename(tmpName, path), "unable to move key into %s", path)
	}
	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrKeyExists, path)
		}
		return errors.Wrapf(err, "unable to move key into %s", path)
	}
	return nil
}

// LoadOrCreate returns the identity whose seed is stored at path. If the file
// is missing and allowCreate is set, a new seed is generated and persisted
// before the identity is returned. An identity is never returned for a seed
// that is not on disk.
func LoadOrCreate(path string, allowCreate bool) (*Identity, error) {
	seed, err := ReadSeedFile(path)
	if err == nil {
		return NewIdentity(seed), nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	if !allowCreate {
		return nil, err
	}

	seed = GenerateSeed()
	if err := WriteSeedFile(path, seed, false); err != nil {
		if errors.Is(err, ErrKeyExists) {
			// Lost a race with another writer. Use whatever it wrote.
			return Load(path)
		}
		return nil, &IdentityError{Path: path, Err: err}
	}
	logrus.Infof("Generated new key file: %s", path)
	return NewIdentity(seed), nil
}

// Load reads the identity stored at path without creating it.
func Load(path string) (*Identity, error) {
	return LoadOrCreate(path, false)
}

// Generate creates a new identity and stores its seed at path. Without
// override an existing file is never replaced.
func Generate(path string, override bool) (*Identity, error) {
	if !override {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("%w: %s (use override to replace it)", ErrKeyExists, path)
		}
	}
	id := GenerateIdentity()
	if err := WriteSeedFile(path, id.Seed(), override); err != nil {
		return nil, err
	}
	return id, nil
}
