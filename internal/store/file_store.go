// Package store persists opaque JSON blobs, one file per key, under a home directory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

const (
	KeyConfig  = "ssf-config"
	KeyHistory = "ssf-history"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

type FileStore struct {
	dir string
}

// NewFileStore creates dir (mode 0770) when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0770); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid store key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Get decodes the blob stored under key into v. found is false when nothing has been stored.
func (s *FileStore) Get(key string, v interface{}) (found bool, err error) {
	path, err := s.path(key)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err = json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parsing stored %s: %w", key, err)
	}
	return true, nil
}

func (s *FileStore) Put(key string, v interface{}) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, out, 0660); err == nil {
		// WriteFile is subject to the umask
		err = os.Chmod(tmp, 0660)
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		_ = os.Remove(tmp)
	}
	return err
}

func (s *FileStore) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
