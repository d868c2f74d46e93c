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
	"github.com/go-errors/errors"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noctarius/avro-change-encoder/internal/containers"
	"github.com/noctarius/avro-change-encoder/internal/supporting/logging"
	"github.com/noctarius/avro-change-encoder/spi/systemcatalog"
	"github.com/samber/lo"
	"strings"
)

// TypeResolver reads type information of the given type oids
type TypeResolver interface {
	ReadPgTypes(
		cb func(typeInfo systemcatalog.TypeInfo) error, oids ...uint32,
	) error
}

type relationEntry struct {
	relation *systemcatalog.Relation
	message  *pglogrepl.RelationMessage
	columns  systemcatalog.Columns
}

// RelationCatalog keeps the relation descriptors announced by the
// replication stream. The server sends a relation message before the
// first change of a relation and after every change of its shape.
type RelationCatalog struct {
	relations *containers.RelationCache[*relationEntry]
	types     map[uint32]systemcatalog.TypeInfo
	resolver  TypeResolver
	builtins  *pgtype.Map
	logger    *logging.Logger
}

func NewRelationCatalog(
	resolver TypeResolver,
) (*RelationCatalog, error) {

	logger, err := logging.NewLogger("RelationCatalog")
	if err != nil {
		return nil, err
	}

	return &RelationCatalog{
		relations: containers.NewRelationCache[*relationEntry](),
		types:     make(map[uint32]systemcatalog.TypeInfo),
		resolver:  resolver,
		builtins:  pgtype.NewMap(),
		logger:    logger,
	}, nil
}

// Apply registers or replaces the relation described by the message
func (rc *RelationCatalog) Apply(
	msg *pglogrepl.RelationMessage,
) (*systemcatalog.Relation, error) {

	if err := rc.resolveTypes(msg); err != nil {
		return nil, err
	}

	columns := make(systemcatalog.Columns, 0, len(msg.Columns))
	for i, column := range msg.Columns {
		primaryKey := column.Flags&1 == 1
		columns = append(columns, systemcatalog.NewColumn(
			column.Name, i+1, rc.types[column.DataType], column.TypeModifier, !primaryKey, primaryKey,
		))
	}

	relation := systemcatalog.NewRelation(msg.RelationID, msg.Namespace, msg.RelationName)
	rc.relations.Set(msg.RelationID, &relationEntry{
		relation: relation,
		message:  msg,
		columns:  columns,
	})

	rc.logger.Verbosef("Relation %s registered with columns %s", relation, columns.Names())
	return relation, nil
}

// Relation returns the relation and its last relation message
func (rc *RelationCatalog) Relation(
	relationId uint32,
) (*systemcatalog.Relation, *pglogrepl.RelationMessage, bool) {

	entry, present := rc.relations.Get(relationId)
	if !present {
		return nil, nil, false
	}
	return entry.relation, entry.message, true
}

// Columns returns the columns of the relation in catalog order
func (rc *RelationCatalog) Columns(
	relationId uint32,
) (systemcatalog.Columns, error) {

	entry, present := rc.relations.Get(relationId)
	if !present {
		return nil, errors.Errorf("relation %d wasn't announced by the replication stream", relationId)
	}
	return entry.columns, nil
}

func (rc *RelationCatalog) Len() int {
	return rc.relations.Len()
}

func (rc *RelationCatalog) resolveTypes(
	msg *pglogrepl.RelationMessage,
) error {

	unknown := lo.Uniq(lo.FilterMap(msg.Columns, func(column *pglogrepl.RelationMessageColumn, _ int) (uint32, bool) {
		_, present := rc.types[column.DataType]
		return column.DataType, !present
	}))
	if len(unknown) == 0 {
		return nil
	}

	if rc.resolver != nil {
		if err := rc.resolver.ReadPgTypes(func(typeInfo systemcatalog.TypeInfo) error {
			rc.types[typeInfo.Oid] = typeInfo
			return nil
		}, unknown...); err != nil {
			return errors.Wrap(err, 0)
		}
	}

	// Anything the resolver didn't return is described from the
	// builtin type map, unknown types keep an empty name
	for _, oid := range unknown {
		if _, present := rc.types[oid]; present {
			continue
		}
		rc.types[oid] = rc.builtinTypeInfo(oid)
	}
	return nil
}

func (rc *RelationCatalog) builtinTypeInfo(
	oid uint32,
) systemcatalog.TypeInfo {

	typeInfo := systemcatalog.TypeInfo{
		Oid:       oid,
		Namespace: "pg_catalog",
		Kind:      systemcatalog.BaseKind,
		Category:  systemcatalog.Unknown,
	}
	if t, present := rc.builtins.TypeForOID(oid); present {
		typeInfo.Name = t.Name
		if strings.HasPrefix(t.Name, "_") {
			typeInfo.Category = systemcatalog.Array
		}
	}
	return typeInfo
}
