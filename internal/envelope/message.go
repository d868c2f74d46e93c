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
	"github.com/go-errors/errors"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"time"
)

// Message is the decoded form of a single frame message. Fields
// not carried by the message's kind keep their zero value. Before
// is nil if the before image is absent.
type Message struct {
	Kind       Kind
	Xid        uint32
	LSN        pgtypes.LSN
	CommitTime time.Time
	RelationId uint32
	Version    int32
	Namespace  string
	Name       string
	Schema     string
	Before     []byte
	After      []byte
}

// FromNative converts a decoded goavro frame back into messages
func FromNative(
	native any,
) ([]Message, error) {

	frame, ok := native.(map[string]any)
	if !ok {
		return nil, errors.Errorf("frame isn't a record: %T", native)
	}

	items, ok := frame["msg"].([]any)
	if !ok {
		return nil, errors.Errorf("frame messages aren't an array: %T", frame["msg"])
	}

	messages := make([]Message, 0, len(items))
	for _, item := range items {
		message, err := messageFromNative(item)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func messageFromNative(
	item any,
) (Message, error) {

	union, ok := item.(map[string]any)
	if !ok || len(union) != 1 {
		return Message{}, errors.Errorf("frame message isn't a union value: %v", item)
	}

	for unionName, value := range union {
		kind, present := kindsByUnionName[unionName]
		if !present {
			return Message{}, errors.Errorf("unknown frame message type '%s'", unionName)
		}

		fields, ok := value.(map[string]any)
		if !ok {
			return Message{}, errors.Errorf("frame message %s isn't a record", kind)
		}

		message := Message{Kind: kind}
		switch kind {
		case BeginTxn:
			message.Xid = uint32(asInt64(fields["xid"]))
			message.LSN = pgtypes.LSN(asInt64(fields["finalLsn"]))
			message.CommitTime = time.UnixMicro(asInt64(fields["commitTime"])).UTC()
		case CommitTxn:
			message.Xid = uint32(asInt64(fields["xid"]))
			message.LSN = pgtypes.LSN(asInt64(fields["lsn"]))
			message.CommitTime = time.UnixMicro(asInt64(fields["commitTime"])).UTC()
		case TableSchema:
			message.RelationId = uint32(asInt64(fields["relid"]))
			message.Version = int32(asInt64(fields["version"]))
			message.Namespace, _ = fields["namespace"].(string)
			message.Name, _ = fields["name"].(string)
			message.Schema, _ = fields["schema"].(string)
		default:
			message.RelationId = uint32(asInt64(fields["relid"]))
			message.Version = int32(asInt64(fields["version"]))
			message.Before = optionalBytesFromNative(fields["before"])
			if after, ok := fields["after"].([]byte); ok {
				message.After = after
			}
		}
		return message, nil
	}
	return Message{}, errors.Errorf("empty frame message")
}

func asInt64(
	value any,
) int64 {

	switch v := value.(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	}
	return 0
}

func optionalBytesFromNative(
	value any,
) []byte {

	if union, ok := value.(map[string]any); ok {
		if data, ok := union["bytes"].([]byte); ok {
			return data
		}
	}
	return nil
}
