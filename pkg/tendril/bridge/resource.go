package bridge

import (
	"errors"

	lua "github.com/yuin/gopher-lua"

	terrors "github.com/sambeau/tendril/pkg/tendril/errors"
	"github.com/sambeau/tendril/pkg/tendril/resources"
)

// Missing resources read as nil in scripts; only compile and runtime
// failures raise.

func (b *Bridge) resourceRead(L *lua.LState) (int, error) {
	content, err := b.registry.Read(L.CheckString(1))
	if errors.Is(err, terrors.ErrNotFound) {
		L.Push(lua.LNil)
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	L.Push(lua.LString(content))
	return 1, nil
}

func (b *Bridge) resourceLoad(L *lua.LState) (int, error) {
	proto, err := b.registry.Compile(L.CheckString(1))
	if errors.Is(err, terrors.ErrNotFound) {
		L.Push(lua.LNil)
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	L.Push(L.NewFunctionFromProto(proto))
	return 1, nil
}

func (b *Bridge) resourceRun(L *lua.LState) (int, error) {
	name := L.CheckString(1)
	var args []lua.LValue
	for i := 2; i <= L.GetTop(); i++ {
		args = append(args, L.Get(i))
	}

	ret, err := b.registry.Run(b, name, args...)
	if errors.Is(err, terrors.ErrNotFound) {
		L.Push(lua.LNil)
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	L.Push(ret)
	return 1, nil
}

func (b *Bridge) resourceNames(L *lua.LState) (int, error) {
	names := b.registry.Names()
	t := L.CreateTable(len(names), 0)
	for _, n := range names {
		t.Append(lua.LString(n))
	}
	L.Push(t)
	return 1, nil
}

// embeddedLoader is a package.loaders searcher for modules in the
// registry. A miss returns a message so require can try the next
// searcher.
func (b *Bridge) embeddedLoader(L *lua.LState) (int, error) {
	name := resources.ModuleName(L.CheckString(1))
	proto, err := b.registry.Compile(name)
	if errors.Is(err, terrors.ErrNotFound) {
		L.Push(lua.LString("\n\tno embedded resource '" + name + "'"))
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	L.Push(L.NewFunctionFromProto(proto))
	return 1, nil
}
