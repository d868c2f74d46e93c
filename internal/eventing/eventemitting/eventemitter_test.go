package eventemitting

import (
	"github.com/cenkalti/backoff/v4"
	"github.com/go-errors/errors"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func newEmitter(
	t *testing.T, c *config.Config, target sink.Sink,
) *EventEmitter {

	emitter, err := NewEventEmitter(c, target, nil)
	require.NoError(t, err)
	emitter.newBackOff = func() backoff.BackOff {
		return &backoff.ZeroBackOff{}
	}
	return emitter
}

func Test_Emit_Assigns_Topic(t *testing.T) {
	var received []sink.Message
	emitter := newEmitter(t, &config.Config{
		Sink: config.SinkConfig{Topic: "frames"},
	}, sink.SinkFunc(func(message sink.Message) error {
		received = append(received, message)
		return nil
	}))

	require.NoError(t, emitter.Emit(sink.Message{Kind: "Insert", RelationId: 42}))
	require.Len(t, received, 1)
	assert.Equal(t, "frames", received[0].Topic)
}

func Test_Emit_Default_Topic(t *testing.T) {
	var topic string
	emitter := newEmitter(t, &config.Config{}, sink.SinkFunc(func(message sink.Message) error {
		topic = message.Topic
		return nil
	}))

	require.NoError(t, emitter.Emit(sink.Message{Kind: "Insert"}))
	assert.Equal(t, DefaultTopic, topic)
}

func Test_Emit_Retries(t *testing.T) {
	attempts := 0
	emitter := newEmitter(t, &config.Config{}, sink.SinkFunc(func(message sink.Message) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporarily unavailable")
		}
		return nil
	}))

	require.NoError(t, emitter.Emit(sink.Message{Kind: "CommitTxn", LSN: 100}))
	assert.Equal(t, 3, attempts)
	assert.EqualValues(t, 100, emitter.AcknowledgedLSN())
}

func Test_Emit_Gives_Up(t *testing.T) {
	attempts := 0
	emitter := newEmitter(t, &config.Config{
		Sink: config.SinkConfig{Retries: config.SinkRetryConfig{MaxAttempts: 1}},
	}, sink.SinkFunc(func(message sink.Message) error {
		attempts++
		return errors.New("down")
	}))

	assert.Error(t, emitter.Emit(sink.Message{Kind: "CommitTxn", LSN: 100}))
	assert.Equal(t, 2, attempts)
	assert.EqualValues(t, 0, emitter.AcknowledgedLSN())
}

func Test_Only_Commits_Are_Acknowledged(t *testing.T) {
	emitter := newEmitter(t, &config.Config{}, sink.SinkFunc(func(message sink.Message) error {
		return nil
	}))

	require.NoError(t, emitter.Emit(sink.Message{Kind: "Insert", LSN: 50}))
	assert.EqualValues(t, 0, emitter.AcknowledgedLSN())
	require.NoError(t, emitter.Emit(sink.Message{Kind: "CommitTxn", LSN: 60}))
	assert.EqualValues(t, 60, emitter.AcknowledgedLSN())
}
