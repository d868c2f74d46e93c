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

package sink

import (
	"fmt"
	"strconv"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"time"
)

type Provider = func(config *config.Config) (Sink, error)

// Message is a single encoded frame handed to the output
// transport. Data is owned by the message and stays valid
// after Emit returns.
type Message struct {
	Timestamp  time.Time
	Kind       string
	RelationId uint32
	Xid        uint32
	LSN        pgtypes.LSN
	Topic      string
	Key        []byte
	Data       []byte
}

func (m Message) String() string {
	return fmt.Sprintf(
		"{kind:%s relationId:%d xid:%d lsn:%s topic:%s size:%d}",
		m.Kind, m.RelationId, m.Xid, m.LSN, m.Topic, len(m.Data),
	)
}

// Header names of the message attributes transports carry
// next to the frame
const (
	HeaderKind       = "kind"
	HeaderRelationId = "relid"
	HeaderXid        = "xid"
	HeaderLSN        = "lsn"
)

// Headers returns the message attributes as strings, zero
// relation ids and xids are left out
func (m Message) Headers() map[string]string {
	headers := map[string]string{
		HeaderKind: m.Kind,
		HeaderLSN:  m.LSN.String(),
	}
	if m.RelationId != 0 {
		headers[HeaderRelationId] = strconv.FormatUint(uint64(m.RelationId), 10)
	}
	if m.Xid != 0 {
		headers[HeaderXid] = strconv.FormatUint(uint64(m.Xid), 10)
	}
	return headers
}

type Sink interface {
	Start() error
	Stop() error
	Emit(
		message Message,
	) error
}

type SinkFunc func(message Message) error

func (sf SinkFunc) Start() error {
	return nil
}

func (sf SinkFunc) Stop() error {
	return nil
}

func (sf SinkFunc) Emit(
	message Message,
) error {

	return sf(message)
}
