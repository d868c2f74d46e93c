package kafka

import (
	"github.com/IBM/sarama"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/noctarius/avro-change-encoder/spi/sink"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func Test_Kafka_Producer_Message(t *testing.T) {
	timestamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := newProducerMessage(sink.Message{
		Timestamp:  timestamp,
		Kind:       "Insert",
		RelationId: 42,
		Xid:        733,
		LSN:        pgtypes.LSN(0x2000),
		Topic:      "avro_change_encoder",
		Key:        []byte{0, 0, 0, 42},
		Data:       []byte{0x02, 0x08},
	})

	assert.Equal(t, "avro_change_encoder", msg.Topic)
	assert.Equal(t, timestamp, msg.Timestamp)

	key, err := msg.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 42}, key)

	value, err := msg.Value.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x08}, value)

	headers := lo.SliceToMap(msg.Headers, func(header sarama.RecordHeader) (string, string) {
		return string(header.Key), string(header.Value)
	})
	assert.Equal(t, "Insert", headers[sink.HeaderKind])
	assert.Equal(t, "42", headers[sink.HeaderRelationId])
	assert.Equal(t, "733", headers[sink.HeaderXid])
}
