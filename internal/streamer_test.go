package internal

import (
	"github.com/noctarius/avro-change-encoder/internal/session"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func Test_Session_Options_From_Config(t *testing.T) {
	c := &config.Config{
		Encoder: config.EncoderConfig{
			ErrorPolicy:  lo.ToPtr("log_and_continue"),
			MappingTable: "public.column_mappings",
		},
	}

	options := sessionOptions(c, nil)
	require.Len(t, options, 2)
	assert.Equal(t, "log_and_continue", *options[session.OptionErrorPolicy])
	assert.Equal(t, "public.column_mappings", *options[session.OptionMappingTable])
}

func Test_Session_Options_Explicit_Options_Win(t *testing.T) {
	c := &config.Config{
		Encoder: config.EncoderConfig{
			ErrorPolicy: lo.ToPtr("log_and_continue"),
		},
	}

	options := sessionOptions(c, session.Options{
		session.OptionErrorPolicy: lo.ToPtr("exit_on_error"),
		"batch_size":              nil,
	})
	assert.Equal(t, "exit_on_error", *options[session.OptionErrorPolicy])
	assert.Contains(t, options, "batch_size")
	assert.Nil(t, options["batch_size"])
	assert.NotContains(t, options, session.OptionMappingTable)
}

func Test_Pgx_Config_Password_Override(t *testing.T) {
	pgxConfig, err := newPgxConfig(&config.Config{
		PostgreSQL: config.PostgreSQLConfig{
			Connection: "host=db.local user=repl_user dbname=app",
			Password:   "secret",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "db.local", pgxConfig.Host)
	assert.Equal(t, "repl_user", pgxConfig.User)
	assert.Equal(t, "app", pgxConfig.Database)
	assert.Equal(t, "secret", pgxConfig.Password)
}

func Test_Wiring_Resolves_Streamer(t *testing.T) {
	streamer, err := NewStreamer(&config.Config{
		PostgreSQL: config.PostgreSQLConfig{
			Connection: "host=localhost user=repl_user",
		},
		Sink: config.SinkConfig{
			Type: config.Stdout,
		},
		Stats: config.StatsConfig{
			Enabled: lo.ToPtr(false),
		},
	}, nil)
	require.NoError(t, err)
	assert.NotNil(t, streamer.session)
	assert.NotNil(t, streamer.replicator)
	assert.NotNil(t, streamer.emitter)
	assert.NotNil(t, streamer.Errors())
}
