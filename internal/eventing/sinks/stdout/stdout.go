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

package stdout

import (
	"fmt"
	"github.com/noctarius/avro-change-encoder/internal/envelope"
	"github.com/noctarius/avro-change-encoder/internal/framewriter"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/encoding"
	"github.com/noctarius/avro-change-encoder/spi/sink"
	"io"
	"os"
	"sync"
	"time"
)

func init() {
	sink.RegisterSink(config.Stdout, newStdoutSink)
}

// stdoutSink decodes the frames like a consumer would and prints
// every message as a json line
type stdoutSink struct {
	mutex   sync.Mutex
	out     io.Writer
	reader  *framewriter.Reader
	encoder *encoding.JsonEncoder
}

func newStdoutSink(
	c *config.Config,
) (sink.Sink, error) {

	return newStdoutSinkWithWriter(c, os.Stdout)
}

func newStdoutSinkWithWriter(
	c *config.Config, out io.Writer,
) (sink.Sink, error) {

	reader, err := framewriter.NewReader()
	if err != nil {
		return nil, err
	}

	return &stdoutSink{
		out:     out,
		reader:  reader,
		encoder: encoding.NewJsonEncoderWithConfig(c),
	}, nil
}

func (s *stdoutSink) Start() error {
	return nil
}

func (s *stdoutSink) Stop() error {
	return nil
}

func (s *stdoutSink) Emit(
	message sink.Message,
) error {

	s.mutex.Lock()
	defer s.mutex.Unlock()

	rows, err := s.reader.Read(message.Data)
	if err != nil {
		return err
	}

	for _, row := range rows {
		data, err := s.encoder.Marshal(view(row))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(s.out, "===> /%s: \t%s\n", message.Topic, string(data)); err != nil {
			return err
		}
	}
	return nil
}

func view(
	row framewriter.Row,
) map[string]any {

	v := map[string]any{
		"kind": row.Kind.String(),
	}
	switch row.Kind {
	case envelope.BeginTxn, envelope.CommitTxn:
		v["xid"] = row.Xid
		v["lsn"] = row.LSN.String()
		v["commitTime"] = row.CommitTime.Format(time.RFC3339Nano)
	case envelope.TableSchema:
		v["relid"] = row.RelationId
		v["version"] = row.Version
		v["namespace"] = row.Namespace
		v["name"] = row.Name
	default:
		v["relid"] = row.RelationId
		v["version"] = row.Version
		if row.BeforeValues != nil {
			v["before"] = row.BeforeValues
		}
		if row.AfterValues != nil {
			v["after"] = row.AfterValues
		}
	}
	return v
}
