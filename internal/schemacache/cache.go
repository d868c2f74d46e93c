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

package schemacache

import (
	"fmt"
	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"
	"github.com/noctarius/avro-change-encoder/internal/allowlist"
	"github.com/noctarius/avro-change-encoder/internal/containers"
	"github.com/noctarius/avro-change-encoder/internal/supporting/logging"
	"github.com/noctarius/avro-change-encoder/spi/encoding"
	"github.com/noctarius/avro-change-encoder/spi/systemcatalog"
	"github.com/samber/lo"
	"strings"
)

type entry struct {
	schema    *RecordSchema
	signature string
	version   int32
	stale     bool
	// sticky build result, reported on every lookup until
	// the column signature changes
	err error
}

// Cache maps relation ids to compiled record schemas. It isn't
// safe for concurrent use, a session owns its cache.
type Cache struct {
	allowList *allowlist.AllowList
	entries   *containers.RelationCache[*entry]
	logger    *logging.Logger
}

func New(
	allowList *allowlist.AllowList,
) (*Cache, error) {

	logger, err := logging.NewLogger("SchemaCache")
	if err != nil {
		return nil, err
	}

	if allowList == nil {
		allowList = allowlist.New()
	}

	return &Cache{
		allowList: allowList,
		entries:   containers.NewRelationCache[*entry](),
		logger:    logger,
	}, nil
}

// SchemaFor returns the record schema of the relation for the given
// catalog columns, building it on first reference or when the
// allow-listed columns changed structurally. Allow-listed columns
// of unsupported types are left out of the returned schema and
// reported with an UnsupportedType error alongside it, without an
// allow-list entry they are emitted as strings. A schema
// that can't be built at all yields a nil schema and an error.
func (c *Cache) SchemaFor(
	relation *systemcatalog.Relation, columns systemcatalog.Columns,
) (schema *RecordSchema, rebuilt bool, err error) {

	selected, explicit := c.selectColumns(relation.Id(), columns)
	signature := columnSignature(selected)

	cached, present := c.entries.Get(relation.Id())
	if present && !cached.stale && cached.signature == signature {
		return cached.schema, false, cached.err
	}

	version := int32(1)
	if present {
		version = cached.version + 1
	}

	schema, buildErr := c.build(relation, selected, explicit, version, signature)
	c.entries.Set(relation.Id(), &entry{
		schema:    schema,
		signature: signature,
		version:   version,
		err:       buildErr,
	})

	if schema != nil {
		c.logger.Verbosef("Built schema for relation %d: %s", relation.Id(), schema.DebugString())
	}
	return schema, schema != nil, buildErr
}

// Invalidate drops the cached schema, the next lookup rebuilds
// it with an incremented version
func (c *Cache) Invalidate(
	relationId uint32,
) {

	if cached, present := c.entries.Get(relationId); present {
		cached.stale = true
	}
}

// Lookup returns the currently cached schema without
// checking for structural changes
func (c *Cache) Lookup(
	relationId uint32,
) (*RecordSchema, bool) {

	if cached, present := c.entries.Get(relationId); present && cached.schema != nil {
		return cached.schema, true
	}
	return nil, false
}

// selectColumns computes the ordered intersection of the allow-list
// and the catalog columns. Allow-list order wins, the first occurrence
// of a duplicated name is used. Relations without an entry emit all
// catalog columns in catalog order.
func (c *Cache) selectColumns(
	relationId uint32, columns systemcatalog.Columns,
) (selected systemcatalog.Columns, explicit bool) {

	allowed, present := c.allowList.Columns(relationId)
	if !present {
		return columns, false
	}

	selected = make(systemcatalog.Columns, 0, len(allowed))
	for _, name := range lo.Uniq(allowed) {
		if column, found := columns.Lookup(name); found {
			selected = append(selected, column)
		}
	}
	return selected, true
}

func (c *Cache) build(
	relation *systemcatalog.Relation, columns systemcatalog.Columns,
	explicit bool, version int32, signature string,
) (*RecordSchema, error) {

	schema := &RecordSchema{
		SchemaType: `record`,
		Name:       avroName(relation.TableName()),
		Namespace:  fmt.Sprintf("%s.%s", Namespace, avroName(relation.SchemaName())),
		Fields:     make([]*Field, 0, len(columns)),
		relationId: relation.Id(),
		version:    version,
		signature:  signature,
	}

	var unsupported []string
	fieldNames := make(map[string]string, len(columns))
	unknownDefined := false
	for _, column := range columns {
		mapping, supported := mapType(column)
		if !supported {
			unsupported = append(unsupported, fmt.Sprintf("%s (%s)", column.Name(), column.TypeName()))
			// Explicitly requested columns are left out, the "all
			// columns" fallback emits the value's text form instead
			if explicit {
				continue
			}
			mapping = typeMapping{avroSchemaString, ConvertTextual, ""}
		}

		name := avroName(column.Name())
		if other, collides := fieldNames[name]; collides {
			return nil, encoding.NewError(
				encoding.SchemaBuildError, relation.Id(), column.Name(),
				"field name '%s' collides with column '%s'", name, other,
			)
		}
		fieldNames[name] = column.Name()

		// The enum is defined once per record and referenced
		// by its full name afterward
		var unknownType avroSchemaType = UnknownTypeName
		if !unknownDefined {
			unknownType = unknownEnum
			unknownDefined = true
		}

		schema.Fields = append(schema.Fields, &Field{
			SchemaType: []avroSchemaType{avroSchemaNull, mapping.valueType, unknownType},
			Name:       name,
			PgType:     column.TypeName(),
			Unit:       mapping.unit,
			column:     column,
			valueType:  mapping.valueType,
			conversion: mapping.conversion,
		})
	}

	schemaJson, err := json.Marshal(schema)
	if err != nil {
		return nil, encoding.WrapError(
			encoding.SchemaBuildError, relation.Id(), "", err, "failed to serialize record schema",
		)
	}
	schema.schemaJson = string(schemaJson)

	// A record without fields encodes to zero bytes, no codec needed
	if len(schema.Fields) > 0 {
		schema.codec, err = goavro.NewCodec(schema.schemaJson)
		if err != nil {
			return nil, encoding.WrapError(
				encoding.SchemaBuildError, relation.Id(), "", err, "failed to compile record schema",
			)
		}
	}

	if len(unsupported) > 0 {
		if explicit {
			return schema, encoding.NewError(
				encoding.UnsupportedType, relation.Id(), strings.Join(unsupported, ", "),
				"column types can't be mapped, the field(s) are left out of %s", schema.Name,
			)
		}
		c.logger.Debugf(
			"Relation %d: columns with unsupported types are emitted as text: %s",
			relation.Id(), strings.Join(unsupported, ", "),
		)
	}
	return schema, nil
}

func columnSignature(
	columns systemcatalog.Columns,
) string {

	builder := strings.Builder{}
	for _, column := range columns {
		builder.WriteString(fmt.Sprintf("%s:%d:%d;", column.Name(), column.DataType(), column.Modifiers()))
	}
	return builder.String()
}
