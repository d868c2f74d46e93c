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

package internal

import (
	"context"
	"github.com/go-errors/errors"
	"github.com/noctarius/avro-change-encoder/internal/eventing/eventemitting"
	"github.com/noctarius/avro-change-encoder/internal/replication"
	"github.com/noctarius/avro-change-encoder/internal/session"
	"github.com/noctarius/avro-change-encoder/internal/stats"
	"github.com/noctarius/avro-change-encoder/internal/supporting/logging"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/wiring"
)

// Streamer assembles and runs the replication stream, the encoder
// session and the sink
type Streamer struct {
	container    wiring.Container
	statsService *stats.Service
	emitter      *eventemitting.EventEmitter
	session      *session.Session
	replicator   *replication.Replicator
	options      session.Options
	logger       *logging.Logger
}

// NewStreamer wires all components. The options are passed to the
// session on startup, explicit options win over configured ones.
func NewStreamer(
	c *config.Config, options session.Options,
) (*Streamer, error) {

	logger, err := logging.NewLogger("Streamer")
	if err != nil {
		return nil, err
	}

	configModule := wiring.DefineModule("Config", func(module wiring.Module) {
		module.Provide(func() *config.Config {
			return c
		})
	})

	container, err := wiring.NewContainer(configModule, StaticModule, DynamicModule)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	streamer := &Streamer{
		container: container,
		options:   sessionOptions(c, options),
		logger:    logger,
	}

	if err := container.Service(&streamer.statsService); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	if err := container.Service(&streamer.emitter); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	if err := container.Service(&streamer.session); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	if err := container.Service(&streamer.replicator); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return streamer, nil
}

// Errors reports a failed replication stream
func (s *Streamer) Errors() <-chan error {
	return s.replicator.Errors()
}

func (s *Streamer) Start(
	ctx context.Context,
) error {

	if err := s.statsService.Start(); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := s.emitter.Start(); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := s.session.Startup(ctx, s.options); err != nil {
		return err
	}
	s.logger.Infof("Encoder session started with error policy %s", s.session.Policy())

	return s.replicator.StartReplication(ctx)
}

func (s *Streamer) Stop() error {
	var errs []error
	if err := s.replicator.StopReplication(); err != nil {
		errs = append(errs, err)
	}
	if err := s.emitter.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := s.statsService.Stop(); err != nil {
		errs = append(errs, err)
	}
	// Shuts the session down
	if err := s.container.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Wrap(errs[0], 0)
	}
	return nil
}

func sessionOptions(
	c *config.Config, options session.Options,
) session.Options {

	merged := make(session.Options)
	if policy := config.GetOrDefault[*string](c, config.PropertyEncoderErrorPolicy, nil); policy != nil {
		merged[session.OptionErrorPolicy] = policy
	}
	if mappingTable := config.GetOrDefault(c, config.PropertyEncoderMappingTable, ""); mappingTable != "" {
		merged[session.OptionMappingTable] = &mappingTable
	}
	for name, value := range options {
		merged[name] = value
	}
	return merged
}
