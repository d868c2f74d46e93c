/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package replication

import (
	"context"
	"github.com/go-errors/errors"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/noctarius/avro-change-encoder/internal/eventing/eventfiltering"
	"github.com/noctarius/avro-change-encoder/internal/stats"
	"github.com/noctarius/avro-change-encoder/internal/supporting"
	"github.com/noctarius/avro-change-encoder/internal/supporting/logging"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/noctarius/avro-change-encoder/spi/sidechannel"
	"github.com/noctarius/avro-change-encoder/spi/version"
	"runtime"
	"time"
)

const (
	DefaultPublicationName = "avro_change_encoder"
	DefaultSlotName        = "avro_change_encoder"
)

const standbyMessageTimeout = time.Second * 10

const shutdownTimeout = time.Second * 30

// PositionTracker reports the last position whose frames were
// delivered, the server may release WAL up to there
type PositionTracker interface {
	AcknowledgedLSN() pgtypes.LSN
}

// Replicator runs the logical replication stream and feeds the
// decoded messages into the dispatcher
type Replicator struct {
	config          *config.Config
	pgxConfig       *pgx.ConnConfig
	sideChannel     sidechannel.SideChannel
	catalog         *RelationCatalog
	dispatcher      Dispatcher
	tracker         PositionTracker
	reporter        *stats.Reporter
	connection      *Connection
	publicationName string
	slotName        string
	restartLSN      pgtypes.LSN
	receivedLSN     pgtypes.LSN
	shutdownAwaiter *supporting.ShutdownAwaiter
	errors          chan error
	logger          *logging.Logger
}

func NewReplicator(
	c *config.Config, pgxConfig *pgx.ConnConfig, sideChannel sidechannel.SideChannel,
	catalog *RelationCatalog, dispatcher Dispatcher, tracker PositionTracker, reporter *stats.Reporter,
) (*Replicator, error) {

	logger, err := logging.NewLogger("Replicator")
	if err != nil {
		return nil, err
	}

	return &Replicator{
		config:          c,
		pgxConfig:       pgxConfig,
		sideChannel:     sideChannel,
		catalog:         catalog,
		dispatcher:      dispatcher,
		tracker:         tracker,
		reporter:        reporter,
		publicationName: config.GetOrDefault(c, config.PropertyPostgresqlPublicationName, DefaultPublicationName),
		slotName:        config.GetOrDefault(c, config.PropertyPostgresqlReplicationSlotName, DefaultSlotName),
		shutdownAwaiter: supporting.NewShutdownAwaiterWithTimeout(shutdownTimeout),
		errors:          make(chan error, 1),
		logger:          logger,
	}, nil
}

// Errors returns the channel a failed replication loop reports
// its error on
func (r *Replicator) Errors() <-chan error {
	return r.errors
}

func (r *Replicator) StartReplication(
	ctx context.Context,
) error {

	if err := r.checkServer(); err != nil {
		return err
	}

	if err := r.ensurePublication(); err != nil {
		return err
	}

	filter, err := eventfiltering.NewEventFilter(r.config.Encoder.Filters)
	if err != nil {
		return errors.Wrap(err, 0)
	}

	handler, err := NewHandler(r.catalog, r.dispatcher, filter, r.reporter)
	if err != nil {
		return err
	}

	connection, err := NewConnection(ctx, r.pgxConfig, r.sideChannel, r.slotName)
	if err != nil {
		return err
	}
	r.connection = connection

	if err := r.ensureReplicationSlot(); err != nil {
		return err
	}

	restartLSN, err := connection.LocateRestartLSN()
	if err != nil {
		return err
	}

	// Don't report LSN 0 to the server before anything was handled
	r.restartLSN = restartLSN
	r.receivedLSN = restartLSN

	if err := connection.StartReplication(r.publicationName, restartLSN); err != nil {
		return errors.Wrap(err, 0)
	}
	r.logger.Infof("Started replication from %s on slot %s", restartLSN, r.slotName)

	go func() {
		if err := r.run(handler); err != nil {
			r.logger.Errorf("Replication stopped: %+v", err)
			r.errors <- err
		}
	}()
	return nil
}

func (r *Replicator) StopReplication() error {
	if r.connection == nil {
		return nil
	}

	r.logger.Println("Starting to shutdown")
	r.shutdownAwaiter.SignalShutdown()
	if err := r.shutdownAwaiter.AwaitDone(); err != nil {
		// The loop still owns the connection, it must not be used from here
		r.logger.Errorf("Replication loop didn't stop in time: %s", err)
		return errors.Wrap(err, 0)
	}

	if err := r.connection.SendStatusUpdate(r.receivedLSN, r.flushedLSN()); err != nil {
		r.logger.Warnf("Final status update failed: %s", err)
	}
	if err := r.connection.StopReplication(); err != nil {
		r.logger.Warnf("Stopping replication failed: %s", err)
	}

	if config.GetOrDefault(r.config, config.PropertyPostgresqlReplicationSlotAutoDrop, true) {
		if err := r.connection.DropReplicationSlot(); err != nil {
			return err
		}
	}
	return r.connection.Close()
}

func (r *Replicator) run(
	handler *Handler,
) error {

	defer r.shutdownAwaiter.SignalDone()

	nextStandbyMessageDeadline := time.Now().Add(standbyMessageTimeout)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-r.shutdownAwaiter.AwaitShutdownChan():
			return nil
		default:
		}

		if time.Now().After(nextStandbyMessageDeadline) {
			if err := r.connection.SendStatusUpdate(r.receivedLSN, r.flushedLSN()); err != nil {
				return err
			}
			nextStandbyMessageDeadline = time.Now().Add(standbyMessageTimeout)
		}

		rawMsg, err := r.connection.ReceiveMessage(nextStandbyMessageDeadline)
		if err != nil {
			return errors.Wrap(err, 0)
		}

		// Deadline reached, the next iteration sends the status update
		if rawMsg == nil {
			continue
		}

		if errMsg, ok := rawMsg.(*pgproto3.ErrorResponse); ok {
			return errors.Errorf("received Postgres WAL error: %+v", errMsg)
		}

		msg, ok := rawMsg.(*pgproto3.CopyData)
		if !ok {
			r.logger.Warnf("Received unexpected message: %T", rawMsg)
			continue
		}

		switch msg.Data[0] {
		case pglogrepl.PrimaryKeepaliveMessageByteID:
			pkm, err := pglogrepl.ParsePrimaryKeepaliveMessage(msg.Data[1:])
			if err != nil {
				return errors.Wrap(err, 0)
			}
			if pkm.ReplyRequested {
				nextStandbyMessageDeadline = time.Time{}
			}

		case pglogrepl.XLogDataByteID:
			xld, err := pglogrepl.ParseXLogData(msg.Data[1:])
			if err != nil {
				return errors.Wrap(err, 0)
			}
			if err := handler.HandleWALData(xld.WALData); err != nil {
				return err
			}
			r.receivedLSN = pgtypes.LSN(xld.WALStart) + pgtypes.LSN(len(xld.WALData))
			r.reporter.Incr("replication.messages")
		}
	}
}

func (r *Replicator) flushedLSN() pgtypes.LSN {
	if r.tracker != nil {
		if acknowledged := r.tracker.AcknowledgedLSN(); acknowledged > r.restartLSN {
			return acknowledged
		}
	}
	return r.restartLSN
}

func (r *Replicator) checkServer() error {
	walLevel, err := r.sideChannel.GetWalLevel()
	if err != nil {
		return err
	}
	if walLevel != "logical" {
		return errors.Errorf("wal_level must be set to 'logical', found '%s'", walLevel)
	}

	pgVersion, err := r.sideChannel.GetPostgresVersion()
	if err != nil {
		return err
	}
	if pgVersion < version.PG_MIN_VERSION {
		return errors.Errorf("PostgreSQL %s isn't supported, minimum is %s", pgVersion, version.PG_MIN_VERSION)
	}

	databaseName, systemId, timeline, err := r.sideChannel.GetSystemInformation()
	if err != nil {
		return err
	}
	r.logger.Infof("Connected to %s (system %s, timeline %d), PostgreSQL %s", databaseName, systemId, timeline, pgVersion)
	return nil
}

func (r *Replicator) ensurePublication() error {
	found, err := r.sideChannel.ExistsPublication(r.publicationName)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	created, err := r.sideChannel.CreatePublication(r.publicationName)
	if err != nil {
		return err
	}
	if created {
		r.logger.Infof("Created publication %s", r.publicationName)
	}
	return nil
}

func (r *Replicator) ensureReplicationSlot() error {
	found, err := r.sideChannel.ExistsReplicationSlot(r.slotName)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	if !config.GetOrDefault(r.config, config.PropertyPostgresqlReplicationSlotCreate, true) {
		return errors.Errorf("replication slot %s doesn't exist and creation is disabled", r.slotName)
	}
	return r.connection.CreateReplicationSlot()
}
