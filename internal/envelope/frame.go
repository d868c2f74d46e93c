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

package envelope

import (
	"fmt"
	"github.com/linkedin/goavro/v2"
	"github.com/noctarius/avro-change-encoder/internal/schemacache"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"time"
)

// Kind is the discriminator of a frame message
type Kind uint8

const (
	BeginTxn Kind = iota + 1
	CommitTxn
	TableSchema
	Insert
	Update
	Delete
)

var kindNames = map[Kind]string{
	BeginTxn:    "BeginTxn",
	CommitTxn:   "CommitTxn",
	TableSchema: "TableSchema",
	Insert:      "Insert",
	Update:      "Update",
	Delete:      "Delete",
}

var kindsByUnionName = func() map[string]Kind {
	kinds := make(map[string]Kind, len(kindNames))
	for kind := range kindNames {
		kinds[kind.UnionName()] = kind
	}
	return kinds
}()

func (k Kind) String() string {
	if name, present := kindNames[k]; present {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// UnionName returns the full avro name of the message record
func (k Kind) UnionName() string {
	return schemacache.Namespace + "." + k.String()
}

// IsRowChange returns true for insert, update and delete
func (k Kind) IsRowChange() bool {
	return k == Insert || k == Update || k == Delete
}

// FrameSchema is the fixed avro schema every frame conforms to.
// Row images are nested avro binaries of the relation schema
// announced by a preceding TableSchema message.
const FrameSchema = `{
  "type": "record",
  "name": "Frame",
  "namespace": "avro_change_encoder",
  "fields": [
    {
      "name": "msg",
      "type": {
        "type": "array",
        "items": [
          {
            "type": "record",
            "name": "BeginTxn",
            "fields": [
              {"name": "xid", "type": "long"},
              {"name": "finalLsn", "type": "long"},
              {"name": "commitTime", "type": "long"}
            ]
          },
          {
            "type": "record",
            "name": "CommitTxn",
            "fields": [
              {"name": "xid", "type": "long"},
              {"name": "lsn", "type": "long"},
              {"name": "commitTime", "type": "long"}
            ]
          },
          {
            "type": "record",
            "name": "TableSchema",
            "fields": [
              {"name": "relid", "type": "long"},
              {"name": "version", "type": "int"},
              {"name": "namespace", "type": "string"},
              {"name": "name", "type": "string"},
              {"name": "schema", "type": "string"}
            ]
          },
          {
            "type": "record",
            "name": "Insert",
            "fields": [
              {"name": "relid", "type": "long"},
              {"name": "version", "type": "int"},
              {"name": "after", "type": "bytes"}
            ]
          },
          {
            "type": "record",
            "name": "Update",
            "fields": [
              {"name": "relid", "type": "long"},
              {"name": "version", "type": "int"},
              {"name": "before", "type": ["null", "bytes"], "default": null},
              {"name": "after", "type": "bytes"}
            ]
          },
          {
            "type": "record",
            "name": "Delete",
            "fields": [
              {"name": "relid", "type": "long"},
              {"name": "version", "type": "int"},
              {"name": "before", "type": ["null", "bytes"], "default": null}
            ]
          }
        ]
      }
    }
  ]
}`

// Frame is the envelope value of a single event. It is owned by
// the session and reset before every event.
type Frame struct {
	messages   []any
	kinds      []Kind
	relationId uint32
	xid        uint32
	lsn        pgtypes.LSN
}

func NewFrame() *Frame {
	return &Frame{
		messages: make([]any, 0, 2),
		kinds:    make([]Kind, 0, 2),
	}
}

// Reset clears the frame, nothing of a previous event
// is observable afterward
func (f *Frame) Reset() {
	clear(f.messages)
	f.messages = f.messages[:0]
	f.kinds = f.kinds[:0]
	f.relationId = 0
	f.xid = 0
	f.lsn = 0
}

// Len returns the number of messages
func (f *Frame) Len() int {
	return len(f.messages)
}

func (f *Frame) IsEmpty() bool {
	return len(f.messages) == 0
}

// Kinds returns the kinds of the messages in order
func (f *Frame) Kinds() []Kind {
	return append([]Kind(nil), f.kinds...)
}

// Kind returns the kind of the last message, which is the event's
// own message. TableSchema messages only ever precede it.
func (f *Frame) Kind() (Kind, bool) {
	if len(f.kinds) == 0 {
		return 0, false
	}
	return f.kinds[len(f.kinds)-1], true
}

// RelationId returns the relation of the frame's row
// change, zero for transaction boundaries
func (f *Frame) RelationId() uint32 {
	return f.relationId
}

func (f *Frame) Xid() uint32 {
	return f.xid
}

func (f *Frame) LSN() pgtypes.LSN {
	return f.lsn
}

// SetTransaction records the transaction context of a row change,
// it isn't part of the serialized frame
func (f *Frame) SetTransaction(
	xid uint32, lsn pgtypes.LSN,
) {

	f.xid = xid
	f.lsn = lsn
}

func (f *Frame) BeginTxn(
	meta pgtypes.TxnMeta,
) {

	f.xid = meta.Xid
	f.lsn = meta.FinalLSN
	f.append(BeginTxn, map[string]any{
		"xid":        int64(meta.Xid),
		"finalLsn":   int64(meta.FinalLSN),
		"commitTime": micros(meta.CommitTime),
	})
}

func (f *Frame) CommitTxn(
	meta pgtypes.TxnMeta, lsn pgtypes.LSN,
) {

	f.xid = meta.Xid
	f.lsn = lsn
	f.append(CommitTxn, map[string]any{
		"xid":        int64(meta.Xid),
		"lsn":        int64(lsn),
		"commitTime": micros(meta.CommitTime),
	})
}

func (f *Frame) TableSchema(
	schema *schemacache.RecordSchema,
) {

	f.append(TableSchema, map[string]any{
		"relid":     int64(schema.RelationId()),
		"version":   schema.Version(),
		"namespace": schema.Namespace,
		"name":      schema.Name,
		"schema":    schema.Schema(),
	})
}

func (f *Frame) Insert(
	schema *schemacache.RecordSchema, after []byte,
) {

	f.relationId = schema.RelationId()
	f.append(Insert, map[string]any{
		"relid":   int64(schema.RelationId()),
		"version": schema.Version(),
		"after":   nonNil(after),
	})
}

// Update adds an update message, a nil before image is
// encoded as null and means the old values are unknown
func (f *Frame) Update(
	schema *schemacache.RecordSchema, before, after []byte,
) {

	f.relationId = schema.RelationId()
	f.append(Update, map[string]any{
		"relid":   int64(schema.RelationId()),
		"version": schema.Version(),
		"before":  optionalBytes(before),
		"after":   nonNil(after),
	})
}

func (f *Frame) Delete(
	schema *schemacache.RecordSchema, before []byte,
) {

	f.relationId = schema.RelationId()
	f.append(Delete, map[string]any{
		"relid":   int64(schema.RelationId()),
		"version": schema.Version(),
		"before":  optionalBytes(before),
	})
}

// Native returns the goavro native form of the frame
func (f *Frame) Native() map[string]any {
	return map[string]any{
		"msg": f.messages,
	}
}

func (f *Frame) append(
	kind Kind, message map[string]any,
) {

	f.messages = append(f.messages, goavro.Union(kind.UnionName(), message))
	f.kinds = append(f.kinds, kind)
}

func micros(
	t time.Time,
) int64 {

	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func nonNil(
	data []byte,
) []byte {

	if data == nil {
		return []byte{}
	}
	return data
}

func optionalBytes(
	data []byte,
) any {

	if data == nil {
		return goavro.Union(`null`, nil)
	}
	return goavro.Union(`bytes`, data)
}
