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

package containers

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"time"
)

const (
	postgresImage    = "postgres:16"
	postgresUser     = "postgres"
	postgresPassword = "postgres"
	postgresDatabase = "encoder"
)

// SetupPostgresContainer starts a PostgreSQL server configured
// for logical replication and returns a connection string
func SetupPostgresContainer() (testcontainers.Container, string, error) {
	consumer, err := newLogConsumer("testcontainers-postgres")
	if err != nil {
		return nil, "", err
	}

	container, err := testcontainers.GenericContainer(context.Background(),
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        postgresImage,
				ExposedPorts: []string{"5432/tcp"},
				Cmd:          []string{"-c", "wal_level=logical", "-c", "max_replication_slots=4"},
				Env: map[string]string{
					"POSTGRES_USER":     postgresUser,
					"POSTGRES_PASSWORD": postgresPassword,
					"POSTGRES_DB":       postgresDatabase,
				},
				WaitingFor: wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(time.Minute),
				LogConsumerCfg: &testcontainers.LogConsumerConfig{
					Consumers: []testcontainers.LogConsumer{consumer},
				},
			},
			Started: true,
		},
	)
	if err != nil {
		return nil, "", err
	}

	host, err := container.Host(context.Background())
	if err != nil {
		return nil, "", err
	}

	port, err := container.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return nil, "", err
	}

	connection := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port.Int(), postgresUser, postgresPassword, postgresDatabase,
	)
	return container, connection, nil
}

// NewPool opens a regular connection pool to the container
func NewPool(
	connection string,
) (*pgxpool.Pool, error) {

	return pgxpool.New(context.Background(), connection)
}
