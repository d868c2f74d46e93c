package awssqs

import (
	"encoding/base64"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/noctarius/avro-change-encoder/spi/sink"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func Test_AWS_SQS_Send_Message_Input(t *testing.T) {
	message := sink.Message{
		Timestamp:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Kind:       "Insert",
		RelationId: 42,
		Xid:        733,
		LSN:        pgtypes.LSN(0x2000),
		Topic:      "accounts",
		Data:       []byte{0x02, 0x08},
	}

	input := newSendMessageInput(lo.ToPtr("https://sqs.local/queue.fifo"), message)
	assert.Equal(t, "https://sqs.local/queue.fifo", *input.QueueUrl)
	assert.Equal(t, "accounts", *input.MessageGroupId)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x02, 0x08}), *input.MessageBody)
	assert.Equal(t, "Insert", *input.MessageAttributes[sink.HeaderKind].StringValue)

	// Retries of the same message deduplicate, identical rows created later don't
	retry := newSendMessageInput(lo.ToPtr("https://sqs.local/queue.fifo"), message)
	assert.Equal(t, *input.MessageDeduplicationId, *retry.MessageDeduplicationId)

	later := message
	later.Timestamp = message.Timestamp.Add(time.Microsecond)
	assert.NotEqual(t, *input.MessageDeduplicationId, deduplicationId(later))
}
