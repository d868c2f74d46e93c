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
	"github.com/linkedin/goavro/v2"
	"github.com/noctarius/avro-change-encoder/internal/envelope"
	"github.com/noctarius/avro-change-encoder/spi/encoding"
)

// Writer serializes frames against the fixed frame schema. The
// binary form carries no additional framing, the transport is
// responsible for any outer message boundaries.
type Writer struct {
	codec *goavro.Codec
}

func New() (*Writer, error) {
	codec, err := goavro.NewCodec(envelope.FrameSchema)
	if err != nil {
		return nil, encoding.WrapError(
			encoding.SerializationError, 0, "", err, "failed to compile frame schema",
		)
	}
	return &Writer{
		codec: codec,
	}, nil
}

// Write serializes the frame into a newly allocated buffer
func (w *Writer) Write(
	frame *envelope.Frame,
) ([]byte, error) {

	return w.AppendTo(nil, frame)
}

// AppendTo serializes the frame and appends it to buf. A frame
// which doesn't conform to the frame schema fails with a
// SerializationError and leaves buf untouched.
func (w *Writer) AppendTo(
	buf []byte, frame *envelope.Frame,
) ([]byte, error) {

	data, err := w.codec.BinaryFromNative(buf, frame.Native())
	if err != nil {
		return nil, encoding.WrapError(
			encoding.SerializationError, frame.RelationId(), "", err, "frame doesn't conform to the frame schema",
		)
	}
	return data, nil
}

// Read decodes a single binary frame
func (w *Writer) Read(
	data []byte,
) ([]envelope.Message, error) {

	native, remaining, err := w.codec.NativeFromBinary(data)
	if err != nil {
		return nil, encoding.WrapError(
			encoding.SerializationError, 0, "", err, "failed to decode frame",
		)
	}
	if len(remaining) > 0 {
		return nil, encoding.NewError(
			encoding.SerializationError, 0, "", "%d trailing bytes after frame", len(remaining),
		)
	}

	messages, err := envelope.FromNative(native)
	if err != nil {
		return nil, encoding.WrapError(
			encoding.SerializationError, 0, "", err, "failed to read frame",
		)
	}
	return messages, nil
}

// Schema returns the frame schema as JSON
func (w *Writer) Schema() string {
	return w.codec.Schema()
}
