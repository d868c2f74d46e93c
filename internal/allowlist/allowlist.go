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

package allowlist

import (
	"context"
	"github.com/noctarius/avro-change-encoder/internal/supporting/logging"
	"github.com/noctarius/avro-change-encoder/spi/encoding"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/samber/lo"
)

const (
	ColumnRelationId      = "reloid"
	ColumnOrdinalPosition = "ordinal_position"
	ColumnColumnName      = "column_name"
)

// MappingReader reads the column mapping table. Rows must be
// delivered ordered by relation id and ordinal position.
type MappingReader interface {
	ReadColumnMappings(
		ctx context.Context, mappingTable string,
		cb func(relationId uint32, position int32, column string) error,
	) error
	// ResolveMappingRelationId returns the relation id of the
	// mapping table itself, or false if it doesn't exist
	ResolveMappingRelationId(
		ctx context.Context, mappingTable string,
	) (uint32, bool, error)
	// ReadReplicaIdentity returns the replica identity setting
	// (pg_class.relreplident) of the relation
	ReadReplicaIdentity(
		ctx context.Context, relationId uint32,
	) (string, error)
}

// ReplicaIdentityFull is the pg_class.relreplident value of tables
// which log the complete old row on updates and deletes
const ReplicaIdentityFull = "f"

type entry struct {
	position int32
	column   string
}

// AllowList holds, per relation, the column names permitted to be
// emitted, ordered by their ordinal position. Duplicated names read
// from the mapping table are kept as read.
type AllowList struct {
	entries           map[uint32][]entry
	mappingRelationId uint32
	logger            *logging.Logger
}

func New() *AllowList {
	logger, err := logging.NewLogger("AllowList")
	if err != nil {
		panic(err)
	}

	return &AllowList{
		entries: make(map[uint32][]entry),
		logger:  logger,
	}
}

// Load scans the mapping table and builds a new AllowList. A
// failing scan is reported as StoreUnavailable.
func Load(
	ctx context.Context, reader MappingReader, mappingTable string,
) (*AllowList, error) {

	a := New()

	mappingRelationId, present, err := reader.ResolveMappingRelationId(ctx, mappingTable)
	if err != nil {
		return nil, encoding.WrapError(
			encoding.StoreUnavailable, 0, "", err, "failed to resolve mapping table '%s'", mappingTable,
		)
	}

	if !present {
		a.logger.Infof(
			"Mapping table '%s' not found, all relations will emit all columns", mappingTable,
		)
		return a, nil
	}
	a.mappingRelationId = mappingRelationId

	if err := reader.ReadColumnMappings(ctx, mappingTable,
		func(relationId uint32, position int32, column string) error {
			a.Add(relationId, position, column)
			return nil
		},
	); err != nil {
		return nil, encoding.WrapError(
			encoding.StoreUnavailable, 0, "", err, "failed to read mapping table '%s'", mappingTable,
		)
	}

	// Without the full old row, updates and deletes on the mapping
	// table can't always be matched to an entry
	replicaIdentity, err := reader.ReadReplicaIdentity(ctx, mappingRelationId)
	if err != nil {
		return nil, encoding.WrapError(
			encoding.StoreUnavailable, 0, "", err, "failed to read replica identity of '%s'", mappingTable,
		)
	}
	if replicaIdentity != ReplicaIdentityFull {
		a.logger.Warnf(
			"Mapping table '%s' doesn't use REPLICA IDENTITY FULL, live changes may not be applied "+
				"to the allow-list until restart", mappingTable,
		)
	}

	a.logger.Infof(
		"Loaded column allow-list for %d relation(s) from '%s' (relation id %d)",
		len(a.entries), mappingTable, mappingRelationId,
	)
	return a, nil
}

// Columns returns the allow-listed column names of the relation,
// present is false if the relation has no entry at all
func (a *AllowList) Columns(
	relationId uint32,
) (columns []string, present bool) {

	entries, present := a.entries[relationId]
	if !present {
		return nil, false
	}
	return lo.Map(entries, func(e entry, _ int) string {
		return e.column
	}), true
}

// Len returns the number of relations with an entry
func (a *AllowList) Len() int {
	return len(a.entries)
}

func (a *AllowList) MappingRelationId() uint32 {
	return a.mappingRelationId
}

// IsMappingRelation returns true if the relation is the
// mapping table itself
func (a *AllowList) IsMappingRelation(
	relationId uint32,
) bool {

	return a.mappingRelationId != 0 && a.mappingRelationId == relationId
}

// Append adds the column behind the last entry of the relation
func (a *AllowList) Append(
	relationId uint32, column string,
) {

	position := int32(1)
	if entries := a.entries[relationId]; len(entries) > 0 {
		position = entries[len(entries)-1].position + 1
	}
	a.Add(relationId, position, column)
}

// Add inserts the column at its ordinal position. Entries with the
// same position keep their insertion order.
func (a *AllowList) Add(
	relationId uint32, position int32, column string,
) {

	entries := a.entries[relationId]
	index := len(entries)
	for i, e := range entries {
		if e.position > position {
			index = i
			break
		}
	}
	entries = append(entries, entry{})
	copy(entries[index+1:], entries[index:])
	entries[index] = entry{position: position, column: column}
	a.entries[relationId] = entries
}

// Put adds the column at its ordinal position. An existing entry
// of the same name is moved instead of adding a duplicate.
func (a *AllowList) Put(
	relationId uint32, position int32, column string,
) {

	a.Remove(relationId, column)
	a.Add(relationId, position, column)
}

// Remove deletes the first occurrence of the column from the
// relation's entry. An entry left empty is removed, so the
// relation falls back to emitting all columns.
func (a *AllowList) Remove(
	relationId uint32, column string,
) bool {

	entries, present := a.entries[relationId]
	if !present {
		return false
	}

	_, index, found := lo.FindIndexOf(entries, func(e entry) bool {
		return e.column == column
	})
	if !found {
		return false
	}

	entries = append(entries[:index:index], entries[index+1:]...)
	if len(entries) == 0 {
		delete(a.entries, relationId)
	} else {
		a.entries[relationId] = entries
	}
	return true
}

// ApplyChange keeps the allow-list in sync with a change on the
// mapping table. It returns the relation ids whose entries were
// touched.
func (a *AllowList) ApplyChange(
	kind pgtypes.ChangeKind, oldValues, newValues pgtypes.Tuple,
) []uint32 {

	touched := make([]uint32, 0, 2)
	remove := func(values pgtypes.Tuple) {
		if row, ok := mappingRow(values); ok {
			if a.Remove(row.relationId, row.column) {
				touched = append(touched, row.relationId)
			}
		}
	}
	put := func(values pgtypes.Tuple) {
		if row, ok := mappingRow(values); ok {
			if row.hasPosition {
				a.Put(row.relationId, row.position, row.column)
			} else {
				a.Remove(row.relationId, row.column)
				a.Append(row.relationId, row.column)
			}
			touched = append(touched, row.relationId)
		}
	}

	switch kind {
	case pgtypes.Insert:
		put(newValues)
	case pgtypes.Update:
		remove(oldValues)
		put(newValues)
	case pgtypes.Delete:
		remove(oldValues)
	}

	touched = lo.Uniq(touched)
	if len(touched) > 0 {
		a.logger.Verbosef("Allow-list updated by %s on mapping table for relations %v", kind, touched)
	}
	return touched
}

type mappingEntry struct {
	relationId  uint32
	position    int32
	hasPosition bool
	column      string
}

func mappingRow(
	values pgtypes.Tuple,
) (row mappingEntry, ok bool) {

	rawRelationId, present := values.Lookup(ColumnRelationId)
	if !present || rawRelationId == nil {
		return row, false
	}
	rawColumn, present := values.Lookup(ColumnColumnName)
	if !present || rawColumn == nil {
		return row, false
	}

	if row.column, ok = rawColumn.(string); !ok {
		return row, false
	}
	if row.relationId, ok = toUint32(rawRelationId); !ok {
		return row, false
	}

	if rawPosition, present := values.Lookup(ColumnOrdinalPosition); present && rawPosition != nil {
		if position, valid := toUint32(rawPosition); valid {
			row.position = int32(position)
			row.hasPosition = true
		}
	}
	return row, true
}

func toUint32(
	value any,
) (uint32, bool) {

	switch v := value.(type) {
	case uint32:
		return v, true
	case int16:
		return uint32(v), true
	case int32:
		return uint32(v), true
	case int64:
		return uint32(v), true
	case int:
		return uint32(v), true
	}
	return 0, false
}
