package bridge

import (
	"errors"

	lua "github.com/yuin/gopher-lua"

	terrors "github.com/sambeau/tendril/pkg/tendril/errors"
	"github.com/sambeau/tendril/pkg/tendril/runs"
)

const bufferTypeName = "tendril.buffer"

func (b *Bridge) registerBuffer() {
	L := b.L
	mt := L.NewTypeMetatable(bufferTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"push":   b.native(bufferPush),
		"finish": b.native(bufferFinish),
		"len":    bufferLen,
	}))
}

// newBuffer implements tendril.buffer(): a run accumulator for building
// large strings piecewise.
func (b *Bridge) newBuffer(L *lua.LState) (int, error) {
	ud := L.NewUserData()
	ud.Value = runs.New()
	L.SetMetatable(ud, L.GetTypeMetatable(bufferTypeName))
	L.Push(ud)
	return 1, nil
}

func checkBuffer(L *lua.LState) *runs.Accumulator {
	ud := L.CheckUserData(1)
	acc, ok := ud.Value.(*runs.Accumulator)
	if !ok {
		L.ArgError(1, "buffer expected")
	}
	return acc
}

func bufferPush(L *lua.LState) (int, error) {
	acc := checkBuffer(L)
	for i := 2; i <= L.GetTop(); i++ {
		if err := acc.PushString(L.CheckString(i)); err != nil {
			return 0, stateError(err)
		}
	}
	L.Push(L.Get(1))
	return 1, nil
}

func bufferFinish(L *lua.LState) (int, error) {
	s, err := checkBuffer(L).Finish()
	if err != nil {
		return 0, stateError(err)
	}
	L.Push(lua.LString(s))
	return 1, nil
}

func bufferLen(L *lua.LState) int {
	L.Push(lua.LNumber(checkBuffer(L).Len()))
	return 1
}

func stateError(err error) error {
	if errors.Is(err, runs.ErrFinished) {
		se := terrors.New("STATE-0001", nil)
		se.Cause = err
		return se
	}
	return err
}
