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

package session

import (
	"bytes"
	"context"
	"fmt"
	"github.com/go-errors/errors"
	"github.com/jackc/pgio"
	"github.com/noctarius/avro-change-encoder/internal/allowlist"
	"github.com/noctarius/avro-change-encoder/internal/envelope"
	"github.com/noctarius/avro-change-encoder/internal/errorpolicy"
	"github.com/noctarius/avro-change-encoder/internal/framewriter"
	"github.com/noctarius/avro-change-encoder/internal/schemacache"
	"github.com/noctarius/avro-change-encoder/internal/scratch"
	"github.com/noctarius/avro-change-encoder/internal/stats"
	"github.com/noctarius/avro-change-encoder/internal/supporting/logging"
	"github.com/noctarius/avro-change-encoder/internal/tupleencoder"
	"github.com/noctarius/avro-change-encoder/spi/encoding"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/noctarius/avro-change-encoder/spi/sink"
	"github.com/noctarius/avro-change-encoder/spi/systemcatalog"
	"github.com/samber/lo"
	"slices"
	"time"
)

const (
	OptionErrorPolicy  = "error_policy"
	OptionMappingTable = "mapping_table"

	DefaultMappingTable = "col_mapps"

	scratchCapacity = 64 * 1024
)

var (
	ErrSessionAborted    = errors.New("session aborted by a previous fatal error")
	ErrSessionClosed     = errors.New("session is closed")
	ErrSessionNotStarted = errors.New("session not started")
)

// AbortError is returned by the operation which moved the session
// into the Fatal state. It matches ErrSessionAborted as well as
// the error that caused the abort.
type AbortError struct {
	Cause error
}

func (e *AbortError) Error() string {
	return "session aborted: " + e.Cause.Error()
}

func (e *AbortError) Unwrap() []error {
	return []error{ErrSessionAborted, e.Cause}
}

// Options are the plugin style options of a session. A nil
// value denotes an option given without a value.
type Options map[string]*string

// Emitter receives every encoded frame of the session
type Emitter interface {
	Emit(
		message sink.Message,
	) error
}

type EmitterFunc func(message sink.Message) error

func (ef EmitterFunc) Emit(
	message sink.Message,
) error {

	return ef(message)
}

// Session turns the change events of a single replication stream
// into frames. It isn't safe for concurrent use, all operations
// must be called from the goroutine driving the stream.
type Session struct {
	state    State
	started  bool
	catalog  systemcatalog.CatalogReader
	mappings allowlist.MappingReader
	emitter  Emitter
	reporter *stats.Reporter
	logger   *logging.Logger

	allowList *allowlist.AllowList
	schemas   *schemacache.Cache
	encoder   *tupleencoder.Encoder
	writer    *framewriter.Writer
	policy    *errorpolicy.Handler
	frame     *envelope.Frame
	region    *scratch.Region

	// version of the last TableSchema message emitted per relation
	announced map[uint32]int32
	pending   *schemacache.RecordSchema
	txn       *pgtypes.TxnMeta
	fatal     error
}

func New(
	catalog systemcatalog.CatalogReader, mappings allowlist.MappingReader,
	emitter Emitter, reporter *stats.Reporter,
) (*Session, error) {

	logger, err := logging.NewLogger("Session")
	if err != nil {
		return nil, err
	}

	encoder, err := tupleencoder.New()
	if err != nil {
		return nil, err
	}

	writer, err := framewriter.New()
	if err != nil {
		return nil, err
	}

	return &Session{
		state:     Idle,
		catalog:   catalog,
		mappings:  mappings,
		emitter:   emitter,
		reporter:  reporter,
		logger:    logger,
		encoder:   encoder,
		writer:    writer,
		frame:     envelope.NewFrame(),
		region:    scratch.New(scratchCapacity),
		announced: make(map[uint32]int32),
	}, nil
}

// State returns the current state of the session
func (s *Session) State() State {
	return s.state
}

// Policy returns the active error policy, only valid after Startup
func (s *Session) Policy() errorpolicy.ErrorPolicy {
	if s.policy == nil {
		return errorpolicy.Default
	}
	return s.policy.Policy()
}

// AllowList returns the primed allow-list, nil before Startup
func (s *Session) AllowList() *allowlist.AllowList {
	return s.allowList
}

// IsMappingRelation returns true if the relation is the column
// mapping table the allow-list is read from
func (s *Session) IsMappingRelation(
	relationId uint32,
) bool {

	return s.allowList != nil && s.allowList.IsMappingRelation(relationId)
}

// Startup reads the options and primes the session. Priming loads
// the column allow-list and resolves the mapping table, failures are
// returned directly and leave the session aborted.
func (s *Session) Startup(
	ctx context.Context, options Options,
) error {

	if s.state == Closed {
		return ErrSessionClosed
	}
	if s.state == Fatal {
		return ErrSessionAborted
	}
	if s.started {
		return errors.Errorf("session already started")
	}

	names := lo.Keys(options)
	slices.Sort(names)

	policy := errorpolicy.Default
	mappingTable := DefaultMappingTable
	for _, name := range names {
		value := options[name]
		switch name {
		case OptionErrorPolicy:
			p, err := errorpolicy.Parse(value)
			if err != nil {
				return s.abort(err)
			}
			policy = p
		case OptionMappingTable:
			if value == nil || *value == "" {
				return s.abort(errors.Errorf("no value specified for parameter \"%s\"", name))
			}
			mappingTable = *value
		default:
			s.logger.Infof("Parameter \"%s\" = \"%s\" is unknown", name, lo.FromPtrOr(value, "(null)"))
		}
	}

	handler, err := errorpolicy.NewHandler(policy, s.reporter)
	if err != nil {
		return s.abort(err)
	}
	s.policy = handler

	s.transition(Priming)
	allowList, err := allowlist.Load(ctx, s.mappings, mappingTable)
	if err != nil {
		return s.abort(err)
	}

	schemas, err := schemacache.New(allowList)
	if err != nil {
		return s.abort(err)
	}

	s.allowList = allowList
	s.schemas = schemas
	s.started = true
	s.transition(Idle)

	s.logger.Infof(
		"Session started with error policy %s and mapping table '%s'", policy, mappingTable,
	)
	return nil
}

func (s *Session) BeginTxn(
	meta pgtypes.TxnMeta,
) error {

	if err := s.checkUsable(); err != nil {
		return err
	}

	s.txn = &meta
	return s.process(0, func() error {
		s.frame.BeginTxn(meta)
		return nil
	})
}

func (s *Session) CommitTxn(
	meta pgtypes.TxnMeta, commitLSN pgtypes.LSN,
) error {

	if err := s.checkUsable(); err != nil {
		return err
	}

	defer func() {
		s.txn = nil
	}()
	return s.process(0, func() error {
		s.frame.CommitTxn(meta, commitLSN)
		return nil
	})
}

// Change encodes a single row change. Old is the previous row image
// (nil if not available) and new the new row image. Skip changes
// emit nothing.
func (s *Session) Change(
	relation *systemcatalog.Relation, kind pgtypes.ChangeKind, oldValues, newValues pgtypes.Tuple,
) error {

	if err := s.checkUsable(); err != nil {
		return err
	}

	if kind == pgtypes.Skip {
		s.reporter.Incr("changes.skipped")
		return nil
	}

	if s.allowList.IsMappingRelation(relation.Id()) &&
		(kind == pgtypes.Insert || kind == pgtypes.Update || kind == pgtypes.Delete) {

		for _, relationId := range s.allowList.ApplyChange(kind, oldValues, newValues) {
			s.schemas.Invalidate(relationId)
		}
	}

	return s.process(relation.Id(), func() error {
		if s.txn != nil {
			s.frame.SetTransaction(s.txn.Xid, s.txn.FinalLSN)
		}
		return s.encodeChange(relation, kind, oldValues, newValues)
	})
}

// Shutdown releases all session state. The session can't be
// used afterward.
func (s *Session) Shutdown() error {
	if s.state == Closed {
		return nil
	}

	s.frame.Reset()
	s.announced = make(map[uint32]int32)
	s.pending = nil
	s.txn = nil
	s.transition(Closed)
	s.logger.Infof("Session shut down")
	return nil
}

func (s *Session) encodeChange(
	relation *systemcatalog.Relation, kind pgtypes.ChangeKind, oldValues, newValues pgtypes.Tuple,
) error {

	switch kind {
	case pgtypes.Insert, pgtypes.Update, pgtypes.Delete:
	default:
		return encoding.NewError(
			encoding.SerializationError, relation.Id(), "", "unknown change kind %s", kind,
		)
	}

	if (kind == pgtypes.Insert || kind == pgtypes.Update) && newValues == nil {
		return encoding.NewError(
			encoding.EncodeError, relation.Id(), "", "%s without a new row image", kind,
		)
	}

	columns, err := s.catalog.Columns(relation.Id())
	if err != nil {
		return encoding.WrapError(
			encoding.SchemaBuildError, relation.Id(), "", err, "failed to read columns of %s", relation,
		)
	}

	schema, rebuilt, schemaErr := s.schemas.SchemaFor(relation, columns)
	if schema == nil {
		return schemaErr
	}

	if version, present := s.announced[relation.Id()]; !present || version != schema.Version() {
		s.frame.TableSchema(schema)
		s.pending = schema
	}

	switch kind {
	case pgtypes.Insert:
		after, err := s.encodeTuple(schema, newValues, tupleencoder.MissingFail)
		if err != nil {
			return err
		}
		s.frame.Insert(schema, after)

	case pgtypes.Update:
		var before []byte
		if oldValues != nil {
			if before, err = s.encodeTuple(schema, oldValues, tupleencoder.MissingUnknown); err != nil {
				return err
			}
		}
		after, err := s.encodeTuple(schema, newValues, tupleencoder.MissingUnknown)
		if err != nil {
			return err
		}
		s.frame.Update(schema, before, after)

	case pgtypes.Delete:
		var before []byte
		if oldValues != nil {
			if before, err = s.encodeTuple(schema, oldValues, tupleencoder.MissingUnknown); err != nil {
				return err
			}
		}
		s.frame.Delete(schema, before)
	}

	// Unsupported allow-listed columns are reported once per build,
	// the degraded schema is used silently afterward
	if schemaErr != nil && rebuilt {
		return schemaErr
	}
	return nil
}

func (s *Session) encodeTuple(
	schema *schemacache.RecordSchema, values pgtypes.Tuple, missing tupleencoder.MissingPolicy,
) ([]byte, error) {

	data, err := s.encoder.EncodeBinary(s.region.Buffer(), schema, values, missing)
	if err != nil {
		return nil, err
	}
	return s.region.Commit(data), nil
}

// process runs a single event through reset, encode, write and
// release. The scratch region and frame are released on all paths.
func (s *Session) process(
	relationId uint32, build func() error,
) error {

	release, err := s.region.Acquire()
	if err != nil {
		return s.abort(encoding.WrapError(
			encoding.SerializationError, relationId, "", err, "scratch region not released",
		))
	}

	start := time.Now()
	defer func() {
		s.transition(Releasing)
		release()
		s.frame.Reset()
		s.pending = nil
		if s.fatal == nil {
			s.transition(Idle)
		}
		s.reporter.Observe("event.duration", time.Since(start))
	}()

	s.transition(Resetting)
	s.frame.Reset()

	s.transition(Encoding)
	if err := build(); err != nil {
		if handleErr := s.policy.Handle(relationId, s.describe(relationId), err); handleErr != nil {
			return s.abort(handleErr)
		}
		// Under log_and_continue the frame is written without
		// the failed message, possibly empty
	}

	s.transition(Writing)
	if err := s.write(); err != nil {
		// Transport failures are outside the error policy
		var transport *transportError
		if errors.As(err, &transport) {
			return s.abort(errors.Wrap(transport.cause, 0))
		}
		if handleErr := s.policy.Handle(relationId, s.describe(relationId), err); handleErr != nil {
			return s.abort(handleErr)
		}
	}
	return nil
}

func (s *Session) write() error {
	encoded, err := s.writer.AppendTo(s.region.Buffer(), s.frame)
	if err != nil {
		return err
	}
	encoded = s.region.Commit(encoded)

	kind := "empty"
	if k, present := s.frame.Kind(); present {
		kind = k.String()
	}

	key := s.frame.RelationId()
	if key == 0 {
		key = s.frame.Xid()
	}

	message := sink.Message{
		Timestamp:  time.Now(),
		Kind:       kind,
		RelationId: s.frame.RelationId(),
		Xid:        s.frame.Xid(),
		LSN:        s.frame.LSN(),
		Key:        pgio.AppendUint32(nil, key),
		// copied out, the region is cleared on release
		Data: bytes.Clone(encoded),
	}

	if err := s.emitter.Emit(message); err != nil {
		return &transportError{cause: err}
	}

	if s.pending != nil {
		s.announced[s.pending.RelationId()] = s.pending.Version()
		s.pending = nil
	}

	s.reporter.Incr("frames", stats.Tag("kind", kind))
	s.reporter.Add("frames.bytes", len(message.Data))
	return nil
}

type transportError struct {
	cause error
}

func (e *transportError) Error() string {
	return "failed to emit frame: " + e.cause.Error()
}

func (s *Session) describe(
	relationId uint32,
) string {

	if relationId == 0 {
		return "transaction boundary"
	}
	if schema, present := s.schemas.Lookup(relationId); present {
		return schema.DebugString()
	}
	return fmt.Sprintf("relation %d without schema", relationId)
}

func (s *Session) checkUsable() error {
	switch {
	case s.state == Fatal:
		return ErrSessionAborted
	case s.state == Closed:
		return ErrSessionClosed
	case !s.started:
		return ErrSessionNotStarted
	}
	return nil
}

func (s *Session) abort(
	err error,
) error {

	if s.fatal == nil {
		s.fatal = err
	}
	s.transition(Fatal)
	s.logger.Errorf("Session aborted: %s", err.Error())
	return errors.Wrap(&AbortError{Cause: err}, 1)
}

func (s *Session) transition(
	state State,
) {

	if s.state == Fatal || s.state == Closed {
		if state != Closed {
			return
		}
	}
	s.state = state
}
