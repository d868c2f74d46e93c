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

package pgdecoding

import (
	"github.com/go-errors/errors"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
)

var typeMap *pgtype.Map

func init() {
	typeMap = pgtype.NewMap()

	macaddr8Type := &pgtype.Type{Name: "macaddr8", OID: pgtypes.MacAddr8OID, Codec: pgtype.MacaddrCodec{}}
	typeMap.RegisterType(macaddr8Type)
}

// KeyTupleType marks an old tuple carrying only the replica
// identity key columns
const KeyTupleType uint8 = 'K'

// DecodeTuple decodes the column values of a pgoutput tuple into a
// row image. Unchanged TOAST values are left out of the image, they
// are unknown to the receiver. A missing tuple yields a nil image.
func DecodeTuple(
	relation *pglogrepl.RelationMessage, tupleData *pglogrepl.TupleData,
) (pgtypes.Tuple, error) {

	return decodeTuple(relation, tupleData, false)
}

// DecodeOldTuple decodes the old image of an update or delete. Key
// images send every non-key column as null, those columns are left
// out of the image since their values are unknown.
func DecodeOldTuple(
	relation *pglogrepl.RelationMessage, tupleType uint8, tupleData *pglogrepl.TupleData,
) (pgtypes.Tuple, error) {

	return decodeTuple(relation, tupleData, tupleType == KeyTupleType)
}

func decodeTuple(
	relation *pglogrepl.RelationMessage, tupleData *pglogrepl.TupleData, keyOnly bool,
) (pgtypes.Tuple, error) {

	if tupleData == nil {
		return nil, nil
	}

	if len(tupleData.Columns) > len(relation.Columns) {
		return nil, errors.Errorf(
			"tuple of relation %d has %d columns, relation message describes %d",
			relation.RelationID, len(tupleData.Columns), len(relation.Columns),
		)
	}

	values := make(pgtypes.Tuple, len(tupleData.Columns))
	for idx, col := range tupleData.Columns {
		column := relation.Columns[idx]
		switch col.DataType {
		case 'n': // null
			if keyOnly && column.Flags&1 == 0 {
				continue
			}
			values[column.Name] = nil
		case 'u': // unchanged toast
			// This TOAST value was not changed. TOAST values are not stored in the tuple, and
			// logical replication doesn't want to spend a disk read to fetch its value for you.
		case 't': // text
			val, err := DecodeTextColumn(col.Data, column.DataType)
			if err != nil {
				return nil, errors.Errorf("error decoding column '%s': %s", column.Name, err)
			}
			values[column.Name] = val
		case 'b': // binary
			val, err := DecodeBinaryColumn(col.Data, column.DataType)
			if err != nil {
				return nil, errors.Errorf("error decoding column '%s': %s", column.Name, err)
			}
			values[column.Name] = val
		default:
			return nil, errors.Errorf("unknown tuple data type '%c' for column '%s'", col.DataType, column.Name)
		}
	}
	return values, nil
}

// DecodeTextColumn decodes the text form of a value. Types unknown
// to the type map, such as extension types, stay in their text form.
func DecodeTextColumn(
	src []byte, dataTypeOid uint32,
) (any, error) {

	if dt, ok := typeMap.TypeForOID(dataTypeOid); ok {
		return dt.Codec.DecodeValue(typeMap, dataTypeOid, pgtype.TextFormatCode, src)
	}
	return string(src), nil
}

func DecodeBinaryColumn(
	src []byte, dataTypeOid uint32,
) (any, error) {

	if dt, ok := typeMap.TypeForOID(dataTypeOid); ok {
		return dt.Codec.DecodeValue(typeMap, dataTypeOid, pgtype.BinaryFormatCode, src)
	}
	return src, nil
}
