package nats

import (
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/noctarius/avro-change-encoder/spi/sink"
	"github.com/stretchr/testify/assert"
	"testing"
)

func Test_Nats_Message(t *testing.T) {
	msg := newNatsMsg(sink.Message{
		Kind:  "CommitTxn",
		Xid:   733,
		LSN:   pgtypes.LSN(0x2000),
		Topic: "changes.accounts",
		Data:  []byte{0x02, 0x02},
	})

	assert.Equal(t, "changes.accounts", msg.Subject)
	assert.Equal(t, []byte{0x02, 0x02}, msg.Data)
	assert.Equal(t, "CommitTxn", msg.Header.Get(sink.HeaderKind))
	assert.Equal(t, "733", msg.Header.Get(sink.HeaderXid))
	assert.Equal(t, "0/2000", msg.Header.Get(sink.HeaderLSN))
	assert.Empty(t, msg.Header.Get(sink.HeaderRelationId))
}
