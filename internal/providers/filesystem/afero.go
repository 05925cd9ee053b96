package filesystem

import (
	"context"
	"errors"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"
)

// Afero implements FS on top of an afero.Fs.
type Afero struct {
	fs afero.Fs
}

// NewOS returns an FS rooted at root on the local disk. Paths that would
// leave root after cleaning are rejected by the base path layer as missing.
func NewOS(root string) *Afero {
	return &Afero{fs: afero.NewBasePathFs(afero.NewOsFs(), root)}
}

// NewMemory returns an empty in-memory FS, used by tests and dry runs.
func NewMemory() *Afero {
	return &Afero{fs: afero.NewMemMapFs()}
}

// NewAfero wraps an existing afero filesystem.
func NewAfero(fs afero.Fs) *Afero {
	return &Afero{fs: fs}
}

// Afero exposes the underlying filesystem, for fixtures.
func (a *Afero) Afero() afero.Fs {
	return a.fs
}

func (a *Afero) ReadDir(ctx context.Context, dir string) ([]os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir = clean(dir)

	info, err := a.lstat(dir)
	if err != nil {
		return nil, classify("readdir", dir, err)
	}
	if !info.IsDir() {
		return nil, classify("readdir", dir, &os.PathError{Op: "readdir", Path: dir, Err: ErrNotDirectory})
	}

	infos, err := afero.ReadDir(a.fs, dir)
	if err != nil {
		return nil, classify("readdir", dir, err)
	}
	return infos, nil
}

func (a *Afero) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = clean(name)
	info, err := a.lstat(name)
	return info, classify("stat", name, err)
}

func (a *Afero) Rename(ctx context.Context, oldname, newname string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify("rename", newname, a.fs.Rename(clean(oldname), clean(newname)))
}

func (a *Afero) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := a.lstat(clean(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, classify("exists", name, err)
	}
}

func (a *Afero) MkdirAll(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify("mkdir", dir, a.fs.MkdirAll(clean(dir), dirPerm))
}

func (a *Afero) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = clean(name)
	f, err := a.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return nil, classify("create", name, err)
	}
	return f, nil
}

func (a *Afero) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name = clean(name)
	return classify("write", name, afero.WriteFile(a.fs, name, data, filePerm))
}

func (a *Afero) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name = clean(name)
	return classify("remove", name, a.fs.Remove(name))
}

func (a *Afero) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = clean(name)
	f, err := a.fs.Open(name)
	if err != nil {
		return nil, classify("open", name, err)
	}
	return f, nil
}

func (a *Afero) lstat(name string) (os.FileInfo, error) {
	if l, ok := a.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(name)
		return info, err
	}
	return a.fs.Stat(name)
}

// clean normalizes a sandbox path to the "/a/b" form afero expects.
func clean(p string) string {
	return path.Clean("/" + p)
}
