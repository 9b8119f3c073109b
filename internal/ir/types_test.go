package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionSpec_Validate(t *testing.T) {
	valid := ActionSpec{Type: "TEST", Micro: true, Payload: map[string]string{"n": "int"}}
	assert.Empty(t, valid.Validate())

	invalid := ActionSpec{
		Payload: map[string]string{
			"ratio": "float",
			"type":  "string",
		},
	}
	errs := invalid.Validate()
	require.Len(t, errs, 3)
	assert.Equal(t, "type", errs[0].Field)
	assert.Equal(t, "payload.ratio", errs[1].Field)
	assert.Contains(t, errs[1].Message, `invalid type "float"`)
	assert.Equal(t, "payload.type", errs[2].Field)
	assert.Contains(t, errs[2].Message, "reserved")
}

func TestActionSpec_CheckPayload(t *testing.T) {
	spec := ActionSpec{Type: "ADD", Payload: map[string]string{"n": "int", "label": "string"}}

	assert.Empty(t, spec.CheckPayload(Object{"n": Int(1), "label": String("x")}))

	errs := spec.CheckPayload(Object{"n": String("1"), "extra": Bool(true)})
	require.Len(t, errs, 3)
	assert.Equal(t, ValidationError{Field: "payload.extra", Message: "undeclared field"}, errs[0])
	assert.Equal(t, ValidationError{Field: "payload.n", Message: "expected int, got string"}, errs[1])
	assert.Equal(t, ValidationError{Field: "payload.label", Message: "missing field"}, errs[2])
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "string", TypeName(String("")))
	assert.Equal(t, "int", TypeName(Int(0)))
	assert.Equal(t, "bool", TypeName(Bool(false)))
	assert.Equal(t, "array", TypeName(Array{}))
	assert.Equal(t, "object", TypeName(Object{}))
	assert.Equal(t, "null", TypeName(Null{}))
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "payload.n: missing field", ValidationError{Field: "payload.n", Message: "missing field"}.Error())
}
