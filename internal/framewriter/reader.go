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

package framewriter

import (
	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"
	"github.com/noctarius/avro-change-encoder/internal/envelope"
	"github.com/noctarius/avro-change-encoder/internal/tupleencoder"
	"github.com/noctarius/avro-change-encoder/spi/encoding"
)

// Row is a decoded frame message. Row changes carry their decoded
// before and after images.
type Row struct {
	envelope.Message
	BeforeValues map[string]any `json:"before,omitempty"`
	AfterValues  map[string]any `json:"after,omitempty"`
}

type announcedSchema struct {
	version int32
	codec   *goavro.Codec
}

// Reader decodes a stream of frames the way a consumer sees it.
// Record schemas are learned from TableSchema messages and used
// for the row changes that follow.
type Reader struct {
	writer  *Writer
	schemas map[uint32]announcedSchema
}

func NewReader() (*Reader, error) {
	writer, err := New()
	if err != nil {
		return nil, err
	}
	return &Reader{
		writer:  writer,
		schemas: make(map[uint32]announcedSchema),
	}, nil
}

// Read decodes the next frame of the stream
func (r *Reader) Read(
	data []byte,
) ([]Row, error) {

	messages, err := r.writer.Read(data)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(messages))
	for _, message := range messages {
		row := Row{Message: message}
		switch {
		case message.Kind == envelope.TableSchema:
			if err := r.announce(message); err != nil {
				return nil, err
			}
		case message.Kind.IsRowChange():
			schema, present := r.schemas[message.RelationId]
			if !present || schema.version != message.Version {
				return nil, encoding.NewError(
					encoding.SerializationError, message.RelationId, "",
					"no record schema version %d announced", message.Version,
				)
			}
			if message.Before != nil {
				if row.BeforeValues, err = tupleencoder.DecodeWithCodec(
					schema.codec, message.RelationId, message.Before,
				); err != nil {
					return nil, err
				}
			}
			if message.Kind != envelope.Delete {
				if row.AfterValues, err = tupleencoder.DecodeWithCodec(
					schema.codec, message.RelationId, message.After,
				); err != nil {
					return nil, err
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *Reader) announce(
	message envelope.Message,
) error {

	var definition struct {
		Fields []json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal([]byte(message.Schema), &definition); err != nil {
		return encoding.WrapError(
			encoding.SerializationError, message.RelationId, "", err, "announced record schema isn't valid json",
		)
	}

	var codec *goavro.Codec
	if len(definition.Fields) > 0 {
		c, err := goavro.NewCodec(message.Schema)
		if err != nil {
			return encoding.WrapError(
				encoding.SerializationError, message.RelationId, "", err, "failed to compile announced record schema",
			)
		}
		codec = c
	}

	r.schemas[message.RelationId] = announcedSchema{
		version: message.Version,
		codec:   codec,
	}
	return nil
}
