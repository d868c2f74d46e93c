package framewriter

import (
	"github.com/noctarius/avro-change-encoder/internal/envelope"
	"github.com/noctarius/avro-change-encoder/internal/tupleencoder"
	"github.com/noctarius/avro-change-encoder/spi/encoding"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func Test_Reader_Decodes_Announced_Rows(t *testing.T) {
	writer, err := New()
	require.Nil(t, err)
	encoder, err := tupleencoder.New()
	require.Nil(t, err)
	schema := accountsSchema(t)

	after, err := encoder.EncodeBinary(nil, schema, pgtypes.Tuple{"id": int32(7)}, tupleencoder.MissingFail)
	require.Nil(t, err)
	before, err := encoder.EncodeBinary(nil, schema, pgtypes.Tuple{}, tupleencoder.MissingUnknown)
	require.Nil(t, err)

	reader, err := NewReader()
	require.Nil(t, err)

	frame := envelope.NewFrame()
	frame.TableSchema(schema)
	frame.Insert(schema, after)
	data, err := writer.Write(frame)
	require.Nil(t, err)

	rows, err := reader.Read(data)
	require.Nil(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, envelope.TableSchema, rows[0].Kind)
	assert.Equal(t, envelope.Insert, rows[1].Kind)
	assert.Nil(t, rows[1].BeforeValues)
	assert.EqualValues(t, 7, rows[1].AfterValues["id"])

	// Later frames rely on the earlier announcement
	frame.Reset()
	frame.Delete(schema, before)
	data, err = writer.Write(frame)
	require.Nil(t, err)

	rows, err = reader.Read(data)
	require.Nil(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, tupleencoder.Unknown, rows[0].BeforeValues["id"])
	assert.Nil(t, rows[0].AfterValues)
}

func Test_Reader_Rejects_Unannounced_Rows(t *testing.T) {
	writer, err := New()
	require.Nil(t, err)
	schema := accountsSchema(t)

	frame := envelope.NewFrame()
	frame.Insert(schema, []byte{0x02, 0x02, 0x0e})
	data, err := writer.Write(frame)
	require.Nil(t, err)

	reader, err := NewReader()
	require.Nil(t, err)
	_, err = reader.Read(data)
	assert.True(t, encoding.IsKind(err, encoding.SerializationError))
}
