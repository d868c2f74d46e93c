package envelope

import (
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func Test_Kind_Names(t *testing.T) {
	assert.Equal(t, "avro_change_encoder.Insert", Insert.UnionName())
	assert.Equal(t, "Kind(99)", Kind(99).String())
	assert.True(t, Update.IsRowChange())
	assert.False(t, CommitTxn.IsRowChange())
	assert.Equal(t, Delete, kindsByUnionName["avro_change_encoder.Delete"])
}

func Test_Reset_Clears_Previous_Event(t *testing.T) {
	frame := NewFrame()
	frame.BeginTxn(pgtypes.TxnMeta{Xid: 12, FinalLSN: 100, CommitTime: time.Now()})
	assert.Equal(t, 1, frame.Len())
	assert.Equal(t, uint32(12), frame.Xid())

	frame.Reset()
	assert.True(t, frame.IsEmpty())
	assert.Equal(t, uint32(0), frame.Xid())
	assert.Equal(t, pgtypes.LSN(0), frame.LSN())
	assert.Equal(t, uint32(0), frame.RelationId())
	_, present := frame.Kind()
	assert.False(t, present)
	assert.Empty(t, frame.Native()["msg"])
}

func Test_From_Native_Rejects_Unknown_Messages(t *testing.T) {
	_, err := FromNative(map[string]any{
		"msg": []any{map[string]any{"avro_change_encoder.Truncate": map[string]any{}}},
	})
	assert.NotNil(t, err)

	_, err = FromNative("not a frame")
	assert.NotNil(t, err)
}
