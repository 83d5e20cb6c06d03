package backend

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"

	"github.com/ajitpratap0/arraystore/pkg/errors"
)

// Afero is a Backend over an afero filesystem.
type Afero struct {
	fs   afero.Fs
	root string
}

// NewAfero returns a backend storing objects in fsys below root.
func NewAfero(fsys afero.Fs, root string) *Afero {
	if root == "" {
		root = "/"
	}
	return &Afero{fs: fsys, root: path.Clean(root)}
}

// NewFile returns a backend on the local filesystem below root, creating
// root if needed.
func NewFile(root string) (*Afero, error) {
	fsys := afero.NewOsFs()
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create storage root")
	}
	return NewAfero(fsys, root), nil
}

// NewMem returns an in-memory backend.
func NewMem() *Afero {
	return NewAfero(afero.NewMemMapFs(), "/")
}

func (a *Afero) path(key string) string {
	return path.Join(a.root, key)
}

// Put writes data to a temporary file and renames it over key.
func (a *Afero) Put(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p := a.path(key)
	if err := a.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create object directory")
	}
	tmp := p + ".tmp-" + ksuid.New().String()
	if err := afero.WriteFile(a.fs, tmp, data, 0o644); err != nil {
		_ = a.fs.Remove(tmp)
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write object").WithDetail("key", key)
	}
	if err := a.fs.Rename(tmp, p); err != nil {
		_ = a.fs.Remove(tmp)
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to publish object").WithDetail("key", key)
	}
	return nil
}

func (a *Afero) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(a.fs, a.path(key))
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read object").WithDetail("key", key)
	}
	return data, nil
}

func (a *Afero) Exists(_ context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	info, err := a.fs.Stat(a.path(key))
	if stderrors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat object")
	}
	return !info.IsDir(), nil
}

// List walks the directory containing prefix. Temporary files left by an
// interrupted Put are skipped.
func (a *Afero) List(ctx context.Context, prefix string) ([]string, error) {
	dir := a.root
	if i := strings.LastIndexByte(prefix, '/'); i >= 0 {
		dir = a.path(prefix[:i])
	}
	var keys []string
	err := afero.Walk(a.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() || strings.Contains(path.Base(p), ".tmp-") {
			return nil
		}
		key := strings.TrimPrefix(strings.TrimPrefix(p, a.root), "/")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to list objects").WithDetail("prefix", prefix)
	}
	sort.Strings(keys)
	return keys, nil
}

func (a *Afero) Delete(ctx context.Context, prefix string) error {
	keys, err := a.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := a.fs.Remove(a.path(key)); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to delete object").WithDetail("key", key)
		}
	}
	if dir := strings.TrimSuffix(prefix, "/"); dir != "" {
		if info, err := a.fs.Stat(a.path(dir)); err == nil && info.IsDir() {
			_ = a.fs.RemoveAll(a.path(dir))
		}
	}
	return nil
}

func (a *Afero) Close() error {
	return nil
}
