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
	"fmt"
	"github.com/go-errors/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/noctarius/avro-change-encoder/internal/supporting/logging"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/noctarius/avro-change-encoder/spi/sidechannel"
	"time"
)

const outputPlugin = "pgoutput"

// Connection is the replication protocol connection the
// pgoutput stream is received on
type Connection struct {
	conn           *pgconn.PgConn
	sideChannel    sidechannel.SideChannel
	identification pglogrepl.IdentifySystemResult
	slotName       string
	slotCreated    bool
	logger         *logging.Logger
}

func NewConnection(
	ctx context.Context, pgxConfig *pgx.ConnConfig, sideChannel sidechannel.SideChannel, slotName string,
) (*Connection, error) {

	logger, err := logging.NewLogger("ReplicationConnection")
	if err != nil {
		return nil, err
	}

	connConfig := pgxConfig.Config.Copy()
	if connConfig.RuntimeParams == nil {
		connConfig.RuntimeParams = make(map[string]string)
	}
	connConfig.RuntimeParams["replication"] = "database"

	conn, err := pgconn.ConnectConfig(ctx, connConfig)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	identification, err := pglogrepl.IdentifySystem(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, errors.Wrap(err, 0)
	}

	logger.Infof("SystemId: %s, Timeline: %d, XLogPos: %s, Database: %s",
		identification.SystemID, identification.Timeline, identification.XLogPos, identification.DBName,
	)

	return &Connection{
		conn:           conn,
		sideChannel:    sideChannel,
		identification: identification,
		slotName:       slotName,
		logger:         logger,
	}, nil
}

// ReceiveMessage waits for the next backend message until the
// deadline passes, a passed deadline returns no message
func (c *Connection) ReceiveMessage(
	deadline time.Time,
) (pgproto3.BackendMessage, error) {

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	msg, err := c.conn.ReceiveMessage(ctx)
	if err != nil {
		if pgconn.Timeout(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ReceiveMessage failed: %s", err)
	}
	return msg, nil
}

// SendStatusUpdate reports the received and the flushed position,
// the server may recycle WAL up to the flushed position
func (c *Connection) SendStatusUpdate(
	receivedLSN, flushedLSN pgtypes.LSN,
) error {

	if err := pglogrepl.SendStandbyStatusUpdate(context.Background(), c.conn,
		pglogrepl.StandbyStatusUpdate{
			WALWritePosition: pglogrepl.LSN(receivedLSN),
			WALFlushPosition: pglogrepl.LSN(flushedLSN),
		},
	); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (c *Connection) StartReplication(
	publicationName string, restartLSN pgtypes.LSN,
) error {

	return pglogrepl.StartReplication(context.Background(), c.conn,
		c.slotName, pglogrepl.LSN(restartLSN),
		pglogrepl.StartReplicationOptions{
			PluginArgs: []string{
				"proto_version '1'",
				fmt.Sprintf("publication_names '%s'", publicationName),
			},
		},
	)
}

func (c *Connection) StopReplication() error {
	_, err := pglogrepl.SendStandbyCopyDone(context.Background(), c.conn)
	if e, ok := err.(*pgconn.PgError); ok {
		if e.Code == pgerrcode.InternalError {
			return nil
		}
	}
	return err
}

func (c *Connection) CreateReplicationSlot() error {
	slot, err := pglogrepl.CreateReplicationSlot(context.Background(), c.conn,
		c.slotName, outputPlugin,
		pglogrepl.CreateReplicationSlotOptions{
			SnapshotAction: "NOEXPORT_SNAPSHOT",
		},
	)
	if err != nil {
		return errors.Wrap(err, 0)
	}

	c.slotCreated = true
	c.logger.Infof("Created replication slot %s at %s", slot.SlotName, slot.ConsistentPoint)
	return nil
}

// DropReplicationSlot drops the slot if it was created by
// this connection
func (c *Connection) DropReplicationSlot() error {
	if !c.slotCreated {
		return nil
	}
	if err := pglogrepl.DropReplicationSlot(context.Background(), c.conn, c.slotName,
		pglogrepl.DropReplicationSlotOptions{
			Wait: true,
		},
	); err != nil {
		return errors.Wrap(err, 0)
	}
	c.logger.Infoln("Dropped replication slot")
	return nil
}

func (c *Connection) Close() error {
	return c.conn.Close(context.Background())
}

// LocateRestartLSN finds the position to restart streaming from,
// the confirmed flush position of an existing slot or the current
// WAL position of the server
func (c *Connection) LocateRestartLSN() (pgtypes.LSN, error) {
	pluginName, slotType, _, confirmedFlushLSN, err := c.sideChannel.ReadReplicationSlot(c.slotName)
	if err != nil {
		return 0, err
	}

	restartLSN := confirmedFlushLSN
	if confirmedFlushLSN > 0 {
		if pluginName != outputPlugin {
			return 0, errors.Errorf(
				"illegal plugin name found for existing replication slot '%s', expected %s but found %s",
				c.slotName, outputPlugin, pluginName,
			)
		}

		if slotType != "logical" {
			return 0, errors.Errorf(
				"illegal slot type found for existing replication slot '%s', expected logical but found %s",
				c.slotName, slotType,
			)
		}
	}

	if restartLSN == 0 {
		restartLSN = pgtypes.LSN(c.identification.XLogPos)
	}
	return restartLSN, nil
}
