// Package uploads keeps user files under randomized names in a single directory.
package uploads

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// URLPrefix is where stored files are served from.
const URLPrefix = "/static/uploads/"

var ErrInvalidName = errors.New("invalid file name")

// File is an uploaded file as received from the client.
type File struct {
	Name     string
	MIMEType string
	Data     []byte

	// Stored is the name on disk, set once the file is saved.
	Stored string
}

type Store struct {
	dir string
}

// New creates dir if needed and returns a store rooted there.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create upload dir %s", dir)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes r under "<token>_<name>" and returns that stored name.
// The token is 32 hex characters from a random UUID.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	name, err := CleanName(name)
	if err != nil {
		return "", err
	}

	stored := strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + name
	f, err := os.OpenFile(filepath.Join(s.dir, stored), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "create upload")
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return "", errors.Wrap(err, "write upload")
	}

	log.WithFields(log.Fields{"file": stored, "bytes": n}).Debug("upload saved")
	return stored, nil
}

// Path resolves a stored name to its location on disk.
func (s *Store) Path(stored string) (string, error) {
	if _, err := CleanName(stored); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, stored), nil
}

func (s *Store) URL(stored string) string {
	return URLPrefix + stored
}

// CleanName trims an original file name and rejects names that could leave the
// upload directory.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "", name == ".", name == "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}
