package encoding

import (
	"fmt"
	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"testing"
)

func Test_Error_Message(t *testing.T) {
	err := NewError(ValueConversionError, 42, "id", "value %d out of range", 70000)
	assert.Equal(t, "ValueConversionError [relation 42] [field id]: value 70000 out of range", err.Error())

	err = WrapError(StoreUnavailable, 0, "", fmt.Errorf("connection refused"), "mapping table unreadable")
	assert.Equal(t, "StoreUnavailable: mapping table unreadable => connection refused", err.Error())
}

func Test_Error_Kind_Through_Wrapping(t *testing.T) {
	err := NewError(UnsupportedType, 42, "tags", "array types are not supported")
	wrapped := fmt.Errorf("schema build failed: %w", err)

	assert.Equal(t, UnsupportedType, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, UnsupportedType))
	assert.False(t, IsKind(wrapped, SchemaBuildError))
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
}

func Test_Error_Kind_Severity(t *testing.T) {
	assert.True(t, SerializationError.Severe())
	assert.False(t, ValueConversionError.Severe())
	assert.Equal(t, "ErrorKind(99)", ErrorKind(99).String())
}
