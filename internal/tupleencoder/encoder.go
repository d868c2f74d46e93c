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

package tupleencoder

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/linkedin/goavro/v2"
	"github.com/noctarius/avro-change-encoder/internal/schemacache"
	"github.com/noctarius/avro-change-encoder/internal/supporting/logging"
	"github.com/noctarius/avro-change-encoder/spi/encoding"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
)

// MissingPolicy defines how fields absent from a row image
// are encoded
type MissingPolicy uint8

const (
	// MissingFail reports an absent field as EncodeError
	MissingFail MissingPolicy = iota
	// MissingUnknown encodes an absent field as unknown
	MissingUnknown
)

// UnknownValue is the decoded representation of a field which
// wasn't available in the row image
type UnknownValue struct{}

func (UnknownValue) String() string {
	return schemacache.UnknownSymbol
}

func (UnknownValue) MarshalJSON() ([]byte, error) {
	return []byte(`"` + schemacache.UnknownSymbol + `"`), nil
}

var Unknown = UnknownValue{}

var unknownNative = goavro.Union(schemacache.UnknownTypeName, schemacache.UnknownSymbol)

// Encoder converts row images into records of a relation's
// record schema. A record is either encoded completely or the
// first failure is returned, there are no partial records.
type Encoder struct {
	logger *logging.Logger
}

func New() (*Encoder, error) {
	logger, err := logging.NewLogger("TupleEncoder")
	if err != nil {
		return nil, err
	}

	return &Encoder{
		logger: logger,
	}, nil
}

// Encode builds the native avro record of the row image
func (e *Encoder) Encode(
	schema *schemacache.RecordSchema, tuple pgtypes.Tuple, missing MissingPolicy,
) (map[string]any, error) {

	record := make(map[string]any, len(schema.Fields))
	for _, field := range schema.Fields {
		column := field.Column()

		value, present := tuple.Lookup(column.Name())
		if !present {
			if missing == MissingFail {
				return nil, encoding.NewError(
					encoding.EncodeError, schema.RelationId(), column.Name(),
					"value missing from row image",
				)
			}
			record[field.Name] = unknownNative
			continue
		}

		native, err := e.convert(schema, field, value)
		if err != nil {
			return nil, err
		}
		record[field.Name] = native
	}
	return record, nil
}

// EncodeBinary encodes the row image and appends the avro binary
// form to buf
func (e *Encoder) EncodeBinary(
	buf []byte, schema *schemacache.RecordSchema, tuple pgtypes.Tuple, missing MissingPolicy,
) ([]byte, error) {

	record, err := e.Encode(schema, tuple, missing)
	if err != nil {
		return nil, err
	}

	codec := schema.Codec()
	if codec == nil {
		return buf, nil
	}

	data, err := codec.BinaryFromNative(buf, record)
	if err != nil {
		return nil, encoding.WrapError(
			encoding.SerializationError, schema.RelationId(), "", err,
			"record doesn't conform to %s", schema.DebugString(),
		)
	}
	return data, nil
}

// DecodeBinary decodes a binary record into a map of field names
// to plain values. SQL NULL decodes as nil and unknown values as
// Unknown.
func DecodeBinary(
	schema *schemacache.RecordSchema, data []byte,
) (map[string]any, error) {

	return DecodeWithCodec(schema.Codec(), schema.RelationId(), data)
}

// DecodeWithCodec decodes a binary record using the codec of an
// announced record schema. A nil codec stands for the record
// without fields.
func DecodeWithCodec(
	codec *goavro.Codec, relationId uint32, data []byte,
) (map[string]any, error) {

	if codec == nil {
		return map[string]any{}, nil
	}

	native, _, err := codec.NativeFromBinary(data)
	if err != nil {
		return nil, encoding.WrapError(
			encoding.SerializationError, relationId, "", err, "failed to decode record",
		)
	}

	record, ok := native.(map[string]any)
	if !ok {
		return nil, encoding.NewError(
			encoding.SerializationError, relationId, "", "decoded value isn't a record",
		)
	}
	return unwrapRecord(record), nil
}

func (e *Encoder) convert(
	schema *schemacache.RecordSchema, field *schemacache.Field, value any,
) (any, error) {

	column := field.Column()

	value, err := unwrap(value)
	if err != nil {
		return nil, encoding.WrapError(
			encoding.ValueConversionError, schema.RelationId(), column.Name(), err,
			"failed to read value of type %s", column.TypeName(),
		)
	}
	if value == nil {
		return goavro.Union(`null`, nil), nil
	}

	converter, present := converters[field.Conversion()]
	if !present {
		return nil, encoding.NewError(
			encoding.UnsupportedType, schema.RelationId(), column.Name(),
			"no conversion available for type %s", column.TypeName(),
		)
	}

	native, err := converter(column.DataType(), value)
	if err != nil {
		e.logger.Debugf(
			"Conversion of column '%s' (%T) failed for schema %s", column.Name(), value, schema.DebugString(),
		)
		return nil, encoding.WrapError(
			encoding.ValueConversionError, schema.RelationId(), column.Name(), err,
			"can't convert %s value to %s", column.TypeName(), field.ValueType(),
		)
	}
	return goavro.Union(field.ValueType(), native), nil
}

// unwrap resolves pgtype values, types with a direct conversion
// are only checked for NULL
func unwrap(
	value any,
) (any, error) {

	switch v := value.(type) {
	case nil:
		return nil, nil
	case pgtype.Numeric:
		if !v.Valid {
			return nil, nil
		}
		return v, nil
	case pgtype.Time:
		if !v.Valid {
			return nil, nil
		}
		return v, nil
	case pgtype.Timestamp:
		if !v.Valid {
			return nil, nil
		}
		return v, nil
	case pgtype.Timestamptz:
		if !v.Valid {
			return nil, nil
		}
		return v, nil
	case pgtype.UUID:
		if !v.Valid {
			return nil, nil
		}
		return v, nil
	}
	return normalize(value)
}

func unwrapRecord(
	record map[string]any,
) map[string]any {

	result := make(map[string]any, len(record))
	for name, value := range record {
		result[name] = unwrapUnion(value)
	}
	return result
}

func unwrapUnion(
	value any,
) any {

	union, ok := value.(map[string]any)
	if !ok || len(union) != 1 {
		return value
	}
	for branch, v := range union {
		if branch == schemacache.UnknownTypeName {
			return Unknown
		}
		return v
	}
	return value
}
