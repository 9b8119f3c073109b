package compiler

import (
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/microact/internal/ir"
	"github.com/roach88/microact/internal/micro"
)

func loadTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, errs := LoadCatalog(filepath.Join("testdata", "catalog"))
	require.Empty(t, errs)
	require.NotNil(t, cat)
	return cat
}

func TestLoadCatalog(t *testing.T) {
	cat := loadTestCatalog(t)

	assert.Equal(t, 2, cat.FileCount)
	assert.Equal(t, []string{
		"MICRO_FROM_ALLOWED",
		"MICRO_FROM_NOT_ALLOWED",
		"MICRO_TEST",
		"NORMAL_FROM_ALLOWED",
		"NORMAL_FROM_NOT_ALLOWED",
		"TEST",
	}, cat.Types())

	spec, ok := cat.Lookup("MICRO_TEST")
	require.True(t, ok)
	assert.True(t, spec.Micro)
	assert.Equal(t, map[string]string{"n": "int", "tags": "array"}, spec.Payload)
}

func TestLoadCatalog_CollectsErrors(t *testing.T) {
	cat, errs := LoadCatalog(filepath.Join("testdata", "broken"))
	require.NotNil(t, cat)
	require.Len(t, errs, 1)
	assert.True(t, IsCompileError(errs[0]))

	_, ok := cat.Lookup("GOOD")
	assert.True(t, ok, "valid entries survive a broken sibling")
}

func TestLoadCatalog_MissingDir(t *testing.T) {
	cat, errs := LoadCatalog(filepath.Join("testdata", "nope"))
	assert.Nil(t, cat)
	require.Len(t, errs, 1)
}

func TestLoadCatalog_NoCUEFiles(t *testing.T) {
	cat, errs := LoadCatalog(t.TempDir())
	assert.Nil(t, cat)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no CUE files")
}

func TestCompileCatalog_NoActions(t *testing.T) {
	v := cuecontext.New().CompileString(`other: 1`)
	cat, errs := CompileCatalog(v)
	require.NotNil(t, cat)
	assert.Equal(t, 0, cat.Len())
	require.Len(t, errs, 1)
}

func TestCompileCatalog_ValidationErrors(t *testing.T) {
	v := cuecontext.New().CompileString(`action: X: { payload: { type: string } }`)
	_, errs := CompileCatalog(v)
	require.Len(t, errs, 1)

	var ve ValidationError
	require.ErrorAs(t, errs[0], &ve)
	assert.Equal(t, ErrReservedField, ve.Code)
}

func TestCatalogBuild(t *testing.T) {
	cat := loadTestCatalog(t)

	a, err := cat.Build("TEST", nil)
	require.NoError(t, err)
	assert.False(t, micro.IsMicro(a))

	m, err := cat.Build("MICRO_TEST", ir.Object{"n": ir.Int(3), "tags": ir.Array{ir.String("x")}})
	require.NoError(t, err)
	assert.True(t, micro.IsMicro(m))
	assert.Equal(t, ir.Int(3), m.Payload["n"])
}

func TestCatalogBuild_Errors(t *testing.T) {
	cat := loadTestCatalog(t)

	_, err := cat.Build("NOPE", nil)
	var ue *UnknownActionError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "NOPE", ue.Type)

	_, err = cat.Build("MICRO_TEST", ir.Object{"n": ir.String("three")})
	var pe *PayloadError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "action MICRO_TEST: payload.n: expected int, got string (and 1 more)", pe.Error())
}

func TestCatalogCreator(t *testing.T) {
	cat := loadTestCatalog(t)

	create, err := cat.Creator("MICRO_TEST")
	require.NoError(t, err)

	a := create(map[string]any{"n": 1, "tags": []any{"a"}})
	assert.Equal(t, "MICRO_TEST", a.Type)
	assert.True(t, micro.IsMicro(a))

	plain, err := cat.Creator("TEST")
	require.NoError(t, err)
	assert.False(t, micro.IsMicro(plain()))

	assert.Panics(t, func() { create(ir.Object{"n": ir.Bool(true)}) })
	assert.Panics(t, func() { plain(1, 2) })

	_, err = cat.Creator("NOPE")
	assert.Error(t, err)
}

func TestNewCatalog(t *testing.T) {
	cat := NewCatalog(&ir.ActionSpec{Type: "A"}, &ir.ActionSpec{Type: "B", Micro: true})
	assert.Equal(t, []string{"A", "B"}, cat.Types())

	b, err := cat.Build("B", nil)
	require.NoError(t, err)
	assert.True(t, micro.IsMicro(b))
}
