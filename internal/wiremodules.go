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
	"github.com/jackc/pgx/v5"
	"github.com/noctarius/avro-change-encoder/internal/eventing/eventemitting"
	_ "github.com/noctarius/avro-change-encoder/internal/eventing/sinks/awskinesis"
	_ "github.com/noctarius/avro-change-encoder/internal/eventing/sinks/awssqs"
	_ "github.com/noctarius/avro-change-encoder/internal/eventing/sinks/http"
	_ "github.com/noctarius/avro-change-encoder/internal/eventing/sinks/kafka"
	_ "github.com/noctarius/avro-change-encoder/internal/eventing/sinks/nats"
	_ "github.com/noctarius/avro-change-encoder/internal/eventing/sinks/redis"
	_ "github.com/noctarius/avro-change-encoder/internal/eventing/sinks/stdout"
	"github.com/noctarius/avro-change-encoder/internal/replication"
	"github.com/noctarius/avro-change-encoder/internal/session"
	intsidechannel "github.com/noctarius/avro-change-encoder/internal/sidechannel"
	"github.com/noctarius/avro-change-encoder/internal/stats"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/sidechannel"
	"github.com/noctarius/avro-change-encoder/spi/sink"
	"github.com/noctarius/avro-change-encoder/spi/wiring"
)

const statsPrefix = "encoder"

var StaticModule = wiring.DefineModule(
	"Static", func(module wiring.Module) {
		module.Provide(newPgxConfig)
		module.Provide(intsidechannel.NewSideChannel)
		module.Provide(stats.NewStatsService)
		module.Provide(eventemitting.NewEventEmitter)

		module.Provide(func(statsService *stats.Service) *stats.Reporter {
			return statsService.NewReporter(statsPrefix)
		})

		module.Provide(func(sideChannel sidechannel.SideChannel) (*replication.RelationCatalog, error) {
			// The catalog resolves types through the side channel
			return replication.NewRelationCatalog(sideChannel)
		})

		module.Provide(func(
			catalog *replication.RelationCatalog, sideChannel sidechannel.SideChannel,
			emitter *eventemitting.EventEmitter, reporter *stats.Reporter,
		) (*session.Session, error) {

			return session.New(catalog, sideChannel, emitter, reporter)
		})

		module.Provide(func(
			c *config.Config, pgxConfig *pgx.ConnConfig, sideChannel sidechannel.SideChannel,
			catalog *replication.RelationCatalog, s *session.Session,
			emitter *eventemitting.EventEmitter, reporter *stats.Reporter,
		) (*replication.Replicator, error) {

			return replication.NewReplicator(c, pgxConfig, sideChannel, catalog, s, emitter, reporter)
		})
	},
)

var DynamicModule = wiring.DefineModule(
	"Dynamic", func(module wiring.Module) {
		module.Provide(func(c *config.Config) (sink.Sink, error) {
			name := config.GetOrDefault(c, config.PropertySink, config.Stdout)
			return sink.NewSink(name, c)
		})
	},
)

func newPgxConfig(
	c *config.Config,
) (*pgx.ConnConfig, error) {

	connection := config.GetOrDefault(c, config.PropertyPostgresqlConnection, "host=localhost user=repl_user")
	pgxConfig, err := pgx.ParseConfig(connection)
	if err != nil {
		return nil, err
	}

	if password := config.GetOrDefault(c, config.PropertyPostgresqlPassword, ""); password != "" {
		pgxConfig.Password = password
	}
	return pgxConfig, nil
}
