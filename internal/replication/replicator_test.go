package replication

import (
	"github.com/noctarius/avro-change-encoder/internal/supporting"
	"github.com/noctarius/avro-change-encoder/internal/supporting/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func Test_Stop_Replication_Leaves_Busy_Connection_Alone(t *testing.T) {
	logger, err := logging.NewLogger("Replicator")
	require.NoError(t, err)

	// The connection has no underlying pgconn, any use of it panics
	replicator := &Replicator{
		connection:      &Connection{},
		shutdownAwaiter: supporting.NewShutdownAwaiterWithTimeout(time.Millisecond * 10),
		logger:          logger,
	}

	assert.NotPanics(t, func() {
		err = replicator.StopReplication()
	})
	assert.ErrorIs(t, err, supporting.ErrWaiterTimeout)
}

func Test_Stop_Replication_Without_Connection(t *testing.T) {
	replicator := &Replicator{}
	assert.NoError(t, replicator.StopReplication())
}
