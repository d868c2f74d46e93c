package stdout

import (
	"bytes"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noctarius/avro-change-encoder/internal/envelope"
	"github.com/noctarius/avro-change-encoder/internal/framewriter"
	"github.com/noctarius/avro-change-encoder/internal/schemacache"
	"github.com/noctarius/avro-change-encoder/internal/tupleencoder"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/noctarius/avro-change-encoder/spi/sink"
	"github.com/noctarius/avro-change-encoder/spi/systemcatalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func Test_Stdout_Sink_Prints_Decoded_Rows(t *testing.T) {
	cache, err := schemacache.New(nil)
	require.NoError(t, err)
	schema, _, err := cache.SchemaFor(
		systemcatalog.NewRelation(42, "public", "accounts"),
		systemcatalog.Columns{
			systemcatalog.NewColumn("id", 1, systemcatalog.TypeInfo{Oid: pgtype.Int4OID, Name: "int4"}, -1, false, true),
			systemcatalog.NewColumn("name", 2, systemcatalog.TypeInfo{Oid: pgtype.TextOID, Name: "text"}, -1, true, false),
		},
	)
	require.NoError(t, err)

	encoder, err := tupleencoder.New()
	require.NoError(t, err)
	after, err := encoder.EncodeBinary(nil, schema, pgtypes.Tuple{"id": int32(7), "name": "alice"}, tupleencoder.MissingFail)
	require.NoError(t, err)

	frame := envelope.NewFrame()
	frame.TableSchema(schema)
	frame.Insert(schema, after)

	writer, err := framewriter.New()
	require.NoError(t, err)
	data, err := writer.Write(frame)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	s, err := newStdoutSinkWithWriter(&config.Config{}, out)
	require.NoError(t, err)
	require.NoError(t, s.Emit(sink.Message{Topic: "accounts", Data: data}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"kind":"TableSchema"`)
	assert.Contains(t, lines[0], `"name":"accounts"`)
	assert.Contains(t, lines[1], "/accounts:")
	assert.Contains(t, lines[1], `"kind":"Insert"`)
	assert.Contains(t, lines[1], `"after":{`)
	assert.Contains(t, lines[1], `"name":"alice"`)
}

func Test_Stdout_Sink_Rejects_Garbage(t *testing.T) {
	s, err := newStdoutSinkWithWriter(&config.Config{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Error(t, s.Emit(sink.Message{Topic: "accounts", Data: []byte{0x02, 0x7f}}))
}
