//go:build integration

package internal

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noctarius/avro-change-encoder/internal/envelope"
	"github.com/noctarius/avro-change-encoder/internal/framewriter"
	"github.com/noctarius/avro-change-encoder/internal/tupleencoder"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/sink"
	"github.com/noctarius/avro-change-encoder/testsupport"
	"github.com/noctarius/avro-change-encoder/testsupport/containers"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"testing"
	"time"
)

const recordingSink config.SinkType = "recording"

var recorded = make(chan sink.Message, 1024)

func init() {
	sink.RegisterSink(recordingSink, func(_ *config.Config) (sink.Sink, error) {
		return sink.SinkFunc(func(message sink.Message) error {
			recorded <- message
			return nil
		}), nil
	})
}

type StreamerIntegrationTestSuite struct {
	suite.Suite
	connection string
	pool       *pgxpool.Pool
	shutdown   func()
}

func TestStreamerIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(StreamerIntegrationTestSuite))
}

func (its *StreamerIntegrationTestSuite) SetupSuite() {
	container, connection, err := containers.SetupPostgresContainer()
	require.NoError(its.T(), err)

	pool, err := containers.NewPool(connection)
	require.NoError(its.T(), err)

	its.connection = connection
	its.pool = pool
	its.shutdown = func() {
		pool.Close()
		container.Terminate(context.Background())
	}
}

func (its *StreamerIntegrationTestSuite) TearDownSuite() {
	if its.shutdown != nil {
		its.shutdown()
	}
}

func (its *StreamerIntegrationTestSuite) Test_Insert_Update_Delete_Frames() {
	schemaName, tableName, err := testsupport.CreateTable(its.pool,
		testsupport.NewColumn("id", "integer", false, true),
		testsupport.NewColumn("name", "text", true, false),
		testsupport.NewColumn("secret", "text", true, false),
	)
	require.NoError(its.T(), err)

	require.NoError(its.T(), testsupport.ReplicaIdentityFull(its.pool, schemaName, tableName))

	relationId, err := testsupport.RelationId(its.pool, schemaName, tableName)
	require.NoError(its.T(), err)

	// Only id and name are allow-listed, secret must never show up
	its.exec("CREATE TABLE public.col_mapps (reloid oid, ordinal_position int4, column_name text)")
	its.exec(fmt.Sprintf(
		"INSERT INTO public.col_mapps VALUES (%d, 1, 'id'), (%d, 2, 'name')", relationId, relationId,
	))
	defer its.exec("DROP TABLE public.col_mapps")

	streamer := its.startStreamer()
	defer streamer.Stop()

	qualified := fmt.Sprintf("\"%s\".\"%s\"", schemaName, tableName)
	its.exec(fmt.Sprintf("INSERT INTO %s VALUES (1, 'first', 'hidden')", qualified))
	its.exec(fmt.Sprintf("UPDATE %s SET name = 'second' WHERE id = 1", qualified))
	its.exec(fmt.Sprintf("DELETE FROM %s WHERE id = 1", qualified))

	changes := its.collectChanges(streamer, relationId, 3)

	assert.Equal(its.T(), envelope.Insert, changes[0].Kind)
	assert.Nil(its.T(), changes[0].BeforeValues)
	assert.EqualValues(its.T(), 1, changes[0].AfterValues["id"])
	assert.Equal(its.T(), "first", changes[0].AfterValues["name"])
	assert.NotContains(its.T(), changes[0].AfterValues, "secret")

	assert.Equal(its.T(), envelope.Update, changes[1].Kind)
	assert.Equal(its.T(), "first", changes[1].BeforeValues["name"])
	assert.Equal(its.T(), "second", changes[1].AfterValues["name"])

	assert.Equal(its.T(), envelope.Delete, changes[2].Kind)
	assert.Equal(its.T(), "second", changes[2].BeforeValues["name"])
	assert.Nil(its.T(), changes[2].AfterValues)
}

func (its *StreamerIntegrationTestSuite) Test_Key_Only_Delete_Frame() {
	schemaName, tableName, err := testsupport.CreateTable(its.pool,
		testsupport.NewColumn("id", "integer", false, true),
		testsupport.NewColumn("name", "text", true, false),
	)
	require.NoError(its.T(), err)

	relationId, err := testsupport.RelationId(its.pool, schemaName, tableName)
	require.NoError(its.T(), err)

	streamer := its.startStreamer()
	defer streamer.Stop()

	qualified := fmt.Sprintf("\"%s\".\"%s\"", schemaName, tableName)
	its.exec(fmt.Sprintf("INSERT INTO %s VALUES (5, 'gone')", qualified))
	its.exec(fmt.Sprintf("DELETE FROM %s WHERE id = 5", qualified))

	changes := its.collectChanges(streamer, relationId, 2)
	require.Equal(its.T(), envelope.Delete, changes[1].Kind)
	assert.EqualValues(its.T(), 5, changes[1].BeforeValues["id"])
	assert.Equal(its.T(), tupleencoder.Unknown, changes[1].BeforeValues["name"])
}

func (its *StreamerIntegrationTestSuite) startStreamer() *Streamer {
	streamer, err := NewStreamer(&config.Config{
		PostgreSQL: config.PostgreSQLConfig{
			Connection: its.connection,
			ReplicationSlot: config.ReplicationSlotConfig{
				Name: lo.RandomString(10, lo.LowerCaseLettersCharset),
			},
		},
		Sink: config.SinkConfig{
			Type: recordingSink,
		},
		Stats: config.StatsConfig{
			Enabled: lo.ToPtr(false),
		},
	}, nil)
	require.NoError(its.T(), err)
	require.NoError(its.T(), streamer.Start(context.Background()))
	return streamer
}

func (its *StreamerIntegrationTestSuite) collectChanges(
	streamer *Streamer, relationId uint32, count int,
) []framewriter.Row {

	reader := framewriter.NewReader()
	changes := make([]framewriter.Row, 0, count)
	timeout := time.After(time.Minute)
	for len(changes) < count {
		select {
		case err := <-streamer.Errors():
			its.T().Fatalf("replication failed: %s", err)
		case <-timeout:
			its.T().Fatalf("timed out waiting for changes, got %d", len(changes))
		case message := <-recorded:
			rows, err := reader.Read(message.Data)
			require.NoError(its.T(), err)
			for _, row := range rows {
				if row.Kind.IsRowChange() && row.RelationId == relationId {
					changes = append(changes, row)
				}
			}
		}
	}
	return changes
}

func (its *StreamerIntegrationTestSuite) exec(
	query string,
) {

	_, err := its.pool.Exec(context.Background(), query)
	require.NoError(its.T(), err)
}
