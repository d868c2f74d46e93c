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
	"github.com/linkedin/goavro/v2"
	"github.com/noctarius/avro-change-encoder/spi/systemcatalog"
	"strings"
)

const (
	Namespace = "avro_change_encoder"

	// UnknownTypeName is the full name of the enum used to mark a
	// value which wasn't available in the row image, which is
	// different from SQL NULL
	UnknownTypeName = Namespace + ".Unknown"
	UnknownSymbol   = "UNKNOWN"
)

// avroSchemaType is one of the avro primitive types, a named
// type definition, or a union of those
type avroSchemaType any

const (
	avroSchemaBoolean = `boolean`
	avroSchemaBytes   = `bytes`
	avroSchemaDouble  = `double`
	avroSchemaFloat   = `float`
	avroSchemaInt     = `int`
	avroSchemaLong    = `long`
	avroSchemaNull    = `null`
	avroSchemaString  = `string`
)

type avroEnum struct {
	SchemaType string   `json:"type"`
	Name       string   `json:"name"`
	Namespace  string   `json:"namespace"`
	Symbols    []string `json:"symbols"`
}

var unknownEnum = avroEnum{
	SchemaType: `enum`,
	Name:       "Unknown",
	Namespace:  Namespace,
	Symbols:    []string{UnknownSymbol},
}

// Field is the schema of a single record field. Serializing it
// to JSON gives the standard avro field representation, the
// additional attributes are ignored by avro readers.
type Field struct {
	SchemaType avroSchemaType `json:"type"`
	Name       string         `json:"name"`
	Default    *string        `json:"default"`
	PgType     string         `json:"pgType,omitempty"`
	Unit       string         `json:"unit,omitempty"`

	column     systemcatalog.Column
	valueType  string
	conversion Conversion
}

// Column returns the source column of the field
func (f *Field) Column() systemcatalog.Column {
	return f.column
}

// ValueType returns the avro type of non-null, known values,
// which is also the union branch name
func (f *Field) ValueType() string {
	return f.valueType
}

// Conversion returns the conversion plan for values of the field
func (f *Field) Conversion() Conversion {
	return f.conversion
}

// RecordSchema is the compiled, immutable schema of a relation's
// allow-listed columns. A new instance is created on every rebuild.
type RecordSchema struct {
	SchemaType string   `json:"type"`
	Name       string   `json:"name"`
	Namespace  string   `json:"namespace"`
	Fields     []*Field `json:"fields"`

	relationId uint32
	version    int32
	schemaJson string
	signature  string
	codec      *goavro.Codec
}

func (s *RecordSchema) RelationId() uint32 {
	return s.relationId
}

// Version starts at 1 and is incremented on every rebuild
// of the relation's schema
func (s *RecordSchema) Version() int32 {
	return s.version
}

// Schema returns the avro schema as JSON
func (s *RecordSchema) Schema() string {
	return s.schemaJson
}

// Codec returns the compiled avro codec, nil if the
// record has no fields
func (s *RecordSchema) Codec() *goavro.Codec {
	return s.codec
}

// FieldNames returns the field names in schema order
func (s *RecordSchema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, field := range s.Fields {
		names = append(names, field.Name)
	}
	return names
}

// DebugString renders the relation and its fields, used
// when logging conversion failures
func (s *RecordSchema) DebugString() string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("%s.%s v%d [", s.Namespace, s.Name, s.version))
	for i, field := range s.Fields {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(fmt.Sprintf("%s:%s(%s)", field.Name, field.valueType, field.PgType))
	}
	builder.WriteString("]")
	return builder.String()
}
