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

package testsupport

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"strings"
)

const (
	DatabaseSchema = "public"
)

// Column describes a column of a test table
type Column struct {
	Name       string
	PgType     string
	Nullable   bool
	PrimaryKey bool
}

func NewColumn(
	name, pgType string, nullable, primaryKey bool,
) Column {

	return Column{
		Name:       name,
		PgType:     pgType,
		Nullable:   nullable,
		PrimaryKey: primaryKey,
	}
}

// CreateTable creates a table with a random name and the default
// replica identity, old tuples of updates and deletes carry the key only
func CreateTable(
	pool *pgxpool.Pool, columns ...Column,
) (string, string, error) {

	tableName := randomTableName()
	tx, err := pool.Begin(context.Background())
	if err != nil {
		return "", "", err
	}

	columnDefinitions := make([]string, len(columns))
	for i, column := range columns {
		columnDefinitions[i] = toDefinition(column)
	}

	query := fmt.Sprintf("CREATE TABLE \"%s\".\"%s\" (%s)", DatabaseSchema,
		tableName, strings.Join(columnDefinitions, ", "))

	if _, err := tx.Exec(context.Background(), query); err != nil {
		tx.Rollback(context.Background())
		return "", "", err
	}

	if err := tx.Commit(context.Background()); err != nil {
		return "", "", err
	}
	return DatabaseSchema, tableName, nil
}

// ReplicaIdentityFull makes updates and deletes of the table carry
// the complete old tuple
func ReplicaIdentityFull(
	pool *pgxpool.Pool, schemaName, tableName string,
) error {

	_, err := pool.Exec(context.Background(),
		fmt.Sprintf("ALTER TABLE \"%s\".\"%s\" REPLICA IDENTITY FULL", schemaName, tableName),
	)
	return err
}

// RelationId looks up the OID of the given table
func RelationId(
	pool *pgxpool.Pool, schemaName, tableName string,
) (uint32, error) {

	var relid uint32
	err := pool.QueryRow(context.Background(),
		"SELECT c.oid FROM pg_catalog.pg_class c "+
			"JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace "+
			"WHERE n.nspname = $1 AND c.relname = $2",
		schemaName, tableName,
	).Scan(&relid)
	return relid, err
}

func randomTableName() string {
	return lo.RandomString(20, lo.LowerCaseLettersCharset)
}

func toDefinition(
	column Column,
) string {

	builder := strings.Builder{}
	builder.WriteString(column.Name)
	builder.WriteString(" ")
	builder.WriteString(column.PgType)
	if !column.Nullable && !column.PrimaryKey {
		builder.WriteString(" NOT NULL")
	}
	if column.PrimaryKey {
		builder.WriteString(" PRIMARY KEY")
	}
	return builder.String()
}
