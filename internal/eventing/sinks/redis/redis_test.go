package redis

import (
	"github.com/noctarius/avro-change-encoder/spi/sink"
	"github.com/stretchr/testify/assert"
	"testing"
)

func Test_Redis_XAdd_Args(t *testing.T) {
	args := newXAddArgs(sink.Message{
		Kind:       "Delete",
		RelationId: 42,
		Topic:      "accounts",
		Key:        []byte{0, 0, 0, 42},
		Data:       []byte{0x00, 0xff, 0x02},
	})

	assert.Equal(t, "accounts", args.Stream)
	assert.Equal(t, string([]byte{0x00, 0xff, 0x02}), args.Values[fieldFrame])
	assert.Equal(t, string([]byte{0, 0, 0, 42}), args.Values[fieldKey])
	assert.Equal(t, "Delete", args.Values[sink.HeaderKind])
	assert.Equal(t, "42", args.Values[sink.HeaderRelationId])
}
