package blob

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// FSStore keeps objects as files under a root directory.
type FSStore struct {
	root string
}

// NewFS returns a filesystem store rooted at root, creating it if needed.
// An empty root means the working directory.
func NewFS(root string) (*FSStore, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, eris.Wrapf(err, "blob: create root %s", root)
	}
	return &FSStore{root: root}, nil
}

// Driver implements Store.
func (s *FSStore) Driver() Driver { return DriverFilesystem }

// sanitizeKey rejects keys that would escape the root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", eris.New("blob: empty key")
	}
	if strings.HasPrefix(key, "/") {
		return "", eris.Errorf("blob: absolute key %q", key)
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", eris.Errorf("blob: key %q escapes root", key)
	}
	return clean, nil
}

func (s *FSStore) pathFor(key string) (string, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

// Put implements Store. Content is written to a temp file and renamed into
// place.
func (s *FSStore) Put(_ context.Context, key string, r io.Reader) (Info, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return Info{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Info{}, eris.Wrapf(err, "blob: mkdir for %s", key)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return Info{}, eris.Wrapf(err, "blob: temp file for %s", key)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return Info{}, eris.Wrapf(err, "blob: write %s", key)
	}
	if err := tmp.Close(); err != nil {
		return Info{}, eris.Wrapf(err, "blob: close %s", key)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Info{}, eris.Wrapf(err, "blob: rename %s", key)
	}
	return s.Head(context.Background(), key)
}

// Get implements Store.
func (s *FSStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(ErrNotFound, "blob: get %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "blob: get %s", key)
	}
	return f, nil
}

// Head implements Store.
func (s *FSStore) Head(_ context.Context, key string) (Info, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return Info{}, err
	}
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && st.IsDir()) {
		return Info{}, eris.Wrapf(ErrNotFound, "blob: head %s", key)
	}
	if err != nil {
		return Info{}, eris.Wrapf(err, "blob: head %s", key)
	}
	return Info{Key: key, Size: st.Size(), LastModified: st.ModTime().UTC()}, nil
}

// Delete implements Store. Deleting a missing key is not an error.
func (s *FSStore) Delete(_ context.Context, key string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "blob: delete %s", key)
	}
	return nil
}

// List implements Store.
func (s *FSStore) List(_ context.Context, prefix string) ([]Info, error) {
	var infos []Info
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		infos = append(infos, Info{Key: key, Size: fi.Size(), LastModified: fi.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "blob: list")
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
