package bridge

import (
	"errors"
	"io/fs"
	"os"

	lua "github.com/yuin/gopher-lua"

	terrors "github.com/sambeau/tendril/pkg/tendril/errors"
)

// IsDir reports whether path names an existing directory. Any failure
// to stat reads as false.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Mkdir creates a single directory. An existing entry at path is not an
// error.
func Mkdir(path string) error {
	err := os.Mkdir(path, 0o755)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return nil
	}
	return ioError("IO-0001", path, err)
}

// List returns the entry names of a directory in sorted order.
func List(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, ioError("IO-0002", path, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

func ioError(code, path string, err error) error {
	cause := err
	var pe *fs.PathError
	if errors.As(err, &pe) {
		cause = pe.Err
	}
	se := terrors.Wrap(code, cause, map[string]any{"Path": path})
	se.Cause = err
	return se
}

func (b *Bridge) fsIsDir(L *lua.LState) (int, error) {
	L.Push(lua.LBool(IsDir(L.CheckString(1))))
	return 1, nil
}

func (b *Bridge) fsMkdir(L *lua.LState) (int, error) {
	return 0, Mkdir(L.CheckString(1))
}

func (b *Bridge) fsList(L *lua.LState) (int, error) {
	names, err := List(L.CheckString(1))
	if err != nil {
		return 0, err
	}
	t := L.CreateTable(len(names), 0)
	for _, n := range names {
		t.Append(lua.LString(n))
	}
	L.Push(t)
	return 1, nil
}
