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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/noctarius/avro-change-encoder/spi/systemcatalog"
)

// Conversion selects how a decoded source value is turned into
// the native avro value of its field
type Conversion uint8

const (
	ConvertBoolean Conversion = iota + 1
	ConvertInt32
	ConvertInt64
	ConvertFloat32
	ConvertFloat64
	ConvertString
	ConvertTextual
	ConvertBytes
	ConvertDate
	ConvertTime
	ConvertTimestamp
	ConvertNumeric
	ConvertUUID
	ConvertGeometry
)

const (
	UnitDays   = "days"
	UnitMicros = "micros"
)

type typeMapping struct {
	valueType  string
	conversion Conversion
	unit       string
}

var builtinMappings = map[uint32]typeMapping{
	pgtype.BoolOID:        {avroSchemaBoolean, ConvertBoolean, ""},
	pgtype.Int2OID:        {avroSchemaInt, ConvertInt32, ""},
	pgtype.Int4OID:        {avroSchemaInt, ConvertInt32, ""},
	pgtype.Int8OID:        {avroSchemaLong, ConvertInt64, ""},
	pgtype.OIDOID:         {avroSchemaLong, ConvertInt64, ""},
	pgtype.Float4OID:      {avroSchemaFloat, ConvertFloat32, ""},
	pgtype.Float8OID:      {avroSchemaDouble, ConvertFloat64, ""},
	pgtype.QCharOID:       {avroSchemaString, ConvertString, ""},
	pgtype.BPCharOID:      {avroSchemaString, ConvertString, ""},
	pgtype.VarcharOID:     {avroSchemaString, ConvertString, ""},
	pgtype.TextOID:        {avroSchemaString, ConvertString, ""},
	pgtype.NameOID:        {avroSchemaString, ConvertString, ""},
	pgtype.ByteaOID:       {avroSchemaBytes, ConvertBytes, ""},
	pgtype.DateOID:        {avroSchemaLong, ConvertDate, UnitDays},
	pgtype.TimeOID:        {avroSchemaLong, ConvertTime, UnitMicros},
	pgtype.TimestampOID:   {avroSchemaLong, ConvertTimestamp, UnitMicros},
	pgtype.TimestamptzOID: {avroSchemaLong, ConvertTimestamp, UnitMicros},
	pgtypes.TimeTZOID:     {avroSchemaString, ConvertTextual, ""},
	pgtype.IntervalOID:    {avroSchemaString, ConvertTextual, ""},
	pgtype.NumericOID:     {avroSchemaString, ConvertNumeric, ""},
	pgtype.UUIDOID:        {avroSchemaString, ConvertUUID, ""},
	pgtype.JSONOID:        {avroSchemaString, ConvertTextual, ""},
	pgtype.JSONBOID:       {avroSchemaString, ConvertTextual, ""},
	pgtypes.JsonPathOID:   {avroSchemaString, ConvertTextual, ""},
	pgtypes.XmlOID:        {avroSchemaString, ConvertTextual, ""},
	pgtype.InetOID:        {avroSchemaString, ConvertTextual, ""},
	pgtype.CIDROID:        {avroSchemaString, ConvertTextual, ""},
	pgtype.MacaddrOID:     {avroSchemaString, ConvertTextual, ""},
	pgtypes.MacAddr8OID:   {avroSchemaString, ConvertTextual, ""},
	pgtypes.MoneyOID:      {avroSchemaString, ConvertTextual, ""},
	pgtype.BitOID:         {avroSchemaString, ConvertTextual, ""},
	pgtype.VarbitOID:      {avroSchemaString, ConvertTextual, ""},
}

// Extension types have no stable oid and are mapped by name
var namedMappings = map[string]typeMapping{
	"geometry":  {avroSchemaBytes, ConvertGeometry, ""},
	"geography": {avroSchemaBytes, ConvertGeometry, ""},
	"citext":    {avroSchemaString, ConvertString, ""},
}

// mapType resolves the target field type of a column. Types
// without a mapping return false.
func mapType(
	column systemcatalog.Column,
) (typeMapping, bool) {

	typeInfo := column.TypeInfo()
	if typeInfo.IsArray() {
		return typeMapping{}, false
	}

	if mapping, present := builtinMappings[column.DataType()]; present {
		return mapping, true
	}

	if mapping, present := namedMappings[typeInfo.Name]; present {
		return mapping, true
	}

	// Enum values are emitted by their label
	if typeInfo.Kind == systemcatalog.EnumKind || typeInfo.Category == systemcatalog.Enum {
		return typeMapping{avroSchemaString, ConvertString, ""}, true
	}
	return typeMapping{}, false
}
