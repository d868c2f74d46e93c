package sink

import (
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/stretchr/testify/assert"
	"testing"
)

func Test_Message_Headers(t *testing.T) {
	message := Message{Kind: "Insert", RelationId: 42, Xid: 733, LSN: pgtypes.LSN(0x16B3748)}
	assert.Equal(t, map[string]string{
		HeaderKind:       "Insert",
		HeaderRelationId: "42",
		HeaderXid:        "733",
		HeaderLSN:        "0/16B3748",
	}, message.Headers())

	boundary := Message{Kind: "CommitTxn", Xid: 733}
	_, present := boundary.Headers()[HeaderRelationId]
	assert.False(t, present)
}
