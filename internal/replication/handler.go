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
	"fmt"
	"github.com/go-errors/errors"
	"github.com/jackc/pglogrepl"
	"github.com/noctarius/avro-change-encoder/internal/eventing/eventfiltering"
	"github.com/noctarius/avro-change-encoder/internal/pgdecoding"
	"github.com/noctarius/avro-change-encoder/internal/stats"
	"github.com/noctarius/avro-change-encoder/internal/supporting/logging"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/noctarius/avro-change-encoder/spi/systemcatalog"
)

// Dispatcher receives the decoded transaction boundaries and
// row changes of the replication stream
type Dispatcher interface {
	BeginTxn(
		meta pgtypes.TxnMeta,
	) error
	CommitTxn(
		meta pgtypes.TxnMeta, commitLSN pgtypes.LSN,
	) error
	Change(
		relation *systemcatalog.Relation, kind pgtypes.ChangeKind, oldValues, newValues pgtypes.Tuple,
	) error
	IsMappingRelation(
		relationId uint32,
	) bool
}

// Handler turns logical replication messages into dispatcher calls
type Handler struct {
	catalog    *RelationCatalog
	dispatcher Dispatcher
	filter     eventfiltering.EventFilter
	reporter   *stats.Reporter
	txn        *pgtypes.TxnMeta
	logger     *logging.Logger
}

func NewHandler(
	catalog *RelationCatalog, dispatcher Dispatcher,
	filter eventfiltering.EventFilter, reporter *stats.Reporter,
) (*Handler, error) {

	logger, err := logging.NewLogger("ReplicationHandler")
	if err != nil {
		return nil, err
	}

	return &Handler{
		catalog:    catalog,
		dispatcher: dispatcher,
		filter:     filter,
		reporter:   reporter,
		logger:     logger,
	}, nil
}

// HandleWALData parses and handles a single pgoutput message
func (h *Handler) HandleWALData(
	walData []byte,
) error {

	msg, err := pglogrepl.Parse(walData)
	if err != nil {
		return fmt.Errorf("parsing logical replication message: %s", err)
	}
	return h.Handle(msg)
}

func (h *Handler) Handle(
	msg pglogrepl.Message,
) error {

	h.logger.Debugf("EVENT: %+v", msg)
	switch logicalMsg := msg.(type) {
	case *pglogrepl.RelationMessage:
		_, err := h.catalog.Apply(logicalMsg)
		return err
	case *pglogrepl.BeginMessage:
		// Only committed transactions are sent, changes of
		// rolled back transactions never show up
		h.txn = &pgtypes.TxnMeta{
			Xid:        logicalMsg.Xid,
			FinalLSN:   pgtypes.LSN(logicalMsg.FinalLSN),
			CommitTime: logicalMsg.CommitTime,
		}
		return h.dispatcher.BeginTxn(*h.txn)
	case *pglogrepl.CommitMessage:
		meta := pgtypes.TxnMeta{
			FinalLSN:   pgtypes.LSN(logicalMsg.CommitLSN),
			CommitTime: logicalMsg.CommitTime,
		}
		if h.txn != nil {
			meta = *h.txn
		}
		h.txn = nil
		return h.dispatcher.CommitTxn(meta, pgtypes.LSN(logicalMsg.CommitLSN))
	case *pglogrepl.InsertMessage:
		return h.handleChange(logicalMsg.RelationID, pgtypes.Insert, 0, nil, logicalMsg.Tuple)
	case *pglogrepl.UpdateMessage:
		return h.handleChange(
			logicalMsg.RelationID, pgtypes.Update, logicalMsg.OldTupleType, logicalMsg.OldTuple, logicalMsg.NewTuple,
		)
	case *pglogrepl.DeleteMessage:
		return h.handleChange(
			logicalMsg.RelationID, pgtypes.Delete, logicalMsg.OldTupleType, logicalMsg.OldTuple, nil,
		)
	case *pglogrepl.TruncateMessage:
		h.logger.Infof("Ignoring truncate of relations %v", logicalMsg.RelationIDs)
		h.reporter.Incr("replication.ignored", stats.Tag("message", "truncate"))
		return nil
	case *pglogrepl.TypeMessage:
		h.logger.Verbosef("Ignoring type message for %s.%s", logicalMsg.Namespace, logicalMsg.Name)
		return nil
	case *pglogrepl.OriginMessage:
		h.logger.Verbosef("Ignoring origin message %s", logicalMsg.Name)
		return nil
	default:
		return errors.Errorf("unknown message type in pgoutput stream: %T", logicalMsg)
	}
}

func (h *Handler) handleChange(
	relationId uint32, kind pgtypes.ChangeKind, oldTupleType uint8, oldTuple, newTuple *pglogrepl.TupleData,
) error {

	relation, message, present := h.catalog.Relation(relationId)
	if !present {
		return errors.Errorf("unknown relation ID %d", relationId)
	}

	oldValues, err := pgdecoding.DecodeOldTuple(message, oldTupleType, oldTuple)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	newValues, err := pgdecoding.DecodeTuple(message, newTuple)
	if err != nil {
		return errors.Wrap(err, 0)
	}

	// The mapping table always passes, the allow-list depends on it
	if h.filter != nil && !h.dispatcher.IsMappingRelation(relationId) {
		accepted, err := h.filter.Evaluate(relation, kind, oldValues, newValues)
		if err != nil {
			return errors.Wrap(err, 0)
		}
		if !accepted {
			kind = pgtypes.Skip
		}
	}

	h.reporter.Incr("replication.changes", stats.Tag("kind", kind.String()))
	return h.dispatcher.Change(relation, kind, oldValues, newValues)
}
