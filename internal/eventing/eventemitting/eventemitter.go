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

package eventemitting

import (
	"github.com/cenkalti/backoff/v4"
	"github.com/go-errors/errors"
	"github.com/noctarius/avro-change-encoder/internal/envelope"
	"github.com/noctarius/avro-change-encoder/internal/stats"
	"github.com/noctarius/avro-change-encoder/internal/supporting/logging"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/noctarius/avro-change-encoder/spi/sink"
)

const (
	DefaultTopic      = "avro_change_encoder"
	defaultMaxRetries = 8
)

// EventEmitter hands encoded frames to the configured sink. Failed
// emits are retried with an exponential backoff, a frame that can't
// be delivered within the configured retries fails the session.
type EventEmitter struct {
	sink       sink.Sink
	topic      string
	maxRetries uint64
	newBackOff func() backoff.BackOff
	reporter   *stats.Reporter
	logger     *logging.Logger

	acknowledgedLSN pgtypes.LSN
}

func NewEventEmitter(
	c *config.Config, sink sink.Sink, reporter *stats.Reporter,
) (*EventEmitter, error) {

	logger, err := logging.NewLogger("EventEmitter")
	if err != nil {
		return nil, err
	}

	return &EventEmitter{
		sink:       sink,
		topic:      config.GetOrDefault(c, config.PropertySinkTopic, DefaultTopic),
		maxRetries: config.GetOrDefault(c, config.PropertySinkRetryMaxAttempts, uint64(defaultMaxRetries)),
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		reporter: reporter,
		logger:   logger,
	}, nil
}

func (ee *EventEmitter) Start() error {
	return ee.sink.Start()
}

func (ee *EventEmitter) Stop() error {
	return ee.sink.Stop()
}

// Emit delivers the message, the topic is assigned by the emitter
func (ee *EventEmitter) Emit(
	message sink.Message,
) error {

	message.Topic = ee.topic

	attempt := 0
	operation := func() error {
		attempt++
		ee.logger.Tracef("Publishing frame (attempt %d): %s", attempt, message)
		return ee.sink.Emit(message)
	}

	if err := backoff.Retry(operation, backoff.WithMaxRetries(ee.newBackOff(), ee.maxRetries)); err != nil {
		ee.reporter.Incr("emit.failures")
		return errors.Wrap(err, 0)
	}
	if attempt > 1 {
		ee.logger.Verbosef("Frame %s delivered after %d attempts", message, attempt)
		ee.reporter.Add("emit.retries", attempt-1)
	}

	// Only transaction ends are safe positions to restart from
	if message.Kind == envelope.CommitTxn.String() && message.LSN > ee.acknowledgedLSN {
		ee.acknowledgedLSN = message.LSN
	}
	return nil
}

// AcknowledgedLSN returns the commit LSN of the last transaction
// which was completely delivered to the sink
func (ee *EventEmitter) AcknowledgedLSN() pgtypes.LSN {
	return ee.acknowledgedLSN
}
