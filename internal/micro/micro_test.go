package micro

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/microact/internal/ir"
)

func TestMicro_WithMeta(t *testing.T) {
	create := func(args ...any) *ir.Action {
		return &ir.Action{Type: "TEST", Meta: ir.Object{"dummy": ir.String("dummy")}}
	}

	a := Micro(create)()
	require.NotNil(t, a)
	assert.Equal(t, ir.MarkerActive, a.Micro)
	assert.Equal(t, ir.Object{"dummy": ir.String("dummy")}, a.Meta, "caller meta is kept")

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"TEST","meta":{"dummy":"dummy","@@redux-micro-actions/micro":true}}`, string(data))
}

func TestMicro_WithoutMeta(t *testing.T) {
	create := func(args ...any) *ir.Action {
		payload := ir.Object{}
		for i, name := range []string{"a", "b", "c"} {
			payload[name] = ir.Int(args[i].(int))
		}
		return ir.NewAction("TEST", payload)
	}

	a := Micro(create)(1, 2, 3)

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"TEST","a":1,"b":2,"c":3,"meta":{"@@redux-micro-actions/micro":true}}`, string(data))
}

func TestMicro_NilAction(t *testing.T) {
	create := func(args ...any) *ir.Action { return nil }
	assert.Nil(t, Micro(create)())
}

func TestMicro_FreshActionPerCall(t *testing.T) {
	create := func(args ...any) *ir.Action { return ir.NewAction("TEST", nil) }
	tagged := Micro(create)

	first := tagged()
	Clear(first)
	second := tagged()

	assert.False(t, IsMicro(first))
	assert.True(t, IsMicro(second))
}

func TestIsMicro(t *testing.T) {
	tests := []struct {
		name string
		wire string
		want bool
	}{
		{"marker only", `{"type":"TEST","meta":{"@@redux-micro-actions/micro":true}}`, true},
		{"marker with other meta", `{"type":"TEST","meta":{"dummy":"dummy","@@redux-micro-actions/micro":true}}`, true},
		{"no meta", `{"type":"TEST"}`, false},
		{"meta without marker", `{"type":"TEST","meta":{"dummy":"dummy"}}`, false},
		{"cleared marker", `{"type":"TEST","meta":{"@@redux-micro-actions/micro":false}}`, false},
		{"truthy non-bool marker", `{"type":"TEST","meta":{"@@redux-micro-actions/micro":1}}`, true},
		{"null meta", `{"type":"TEST","meta":null}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ir.DecodeAction([]byte(tt.wire))
			require.NoError(t, err)
			assert.Equal(t, tt.want, IsMicro(a))
		})
	}
}

func TestIsMicro_Nil(t *testing.T) {
	assert.False(t, IsMicro(nil))
}

func TestClear(t *testing.T) {
	t.Run("active becomes cleared", func(t *testing.T) {
		a := Tag(ir.NewAction("TEST", nil))
		Clear(a)
		assert.Equal(t, ir.MarkerCleared, a.Micro)
		assert.False(t, IsMicro(a))
	})

	t.Run("idempotent", func(t *testing.T) {
		a := Tag(ir.NewAction("TEST", nil))
		Clear(Clear(a))
		assert.Equal(t, ir.MarkerCleared, a.Micro)
	})

	t.Run("plain action untouched", func(t *testing.T) {
		a := ir.NewAction("TEST", nil)
		Clear(a)
		assert.Equal(t, ir.MarkerAbsent, a.Micro)
		assert.False(t, a.HasMeta())
	})

	t.Run("meta without marker gets cleared marker", func(t *testing.T) {
		a := &ir.Action{Type: "TEST", Meta: ir.Object{"dummy": ir.String("dummy")}}
		Clear(a)
		assert.Equal(t, ir.MarkerCleared, a.Micro)
		assert.False(t, IsMicro(a))
	})

	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, Clear(nil))
	})
}
