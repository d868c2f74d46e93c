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

package sidechannel

import (
	"context"
	"fmt"
	"github.com/go-errors/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/noctarius/avro-change-encoder/internal/supporting/logging"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/noctarius/avro-change-encoder/spi/sidechannel"
	"github.com/noctarius/avro-change-encoder/spi/systemcatalog"
	"github.com/noctarius/avro-change-encoder/spi/version"
	"strings"
	"time"
)

type sideChannel struct {
	logger    *logging.Logger
	pgxConfig *pgx.ConnConfig
}

func NewSideChannel(
	pgxConfig *pgx.ConnConfig,
) (sidechannel.SideChannel, error) {

	logger, err := logging.NewLogger("SideChannel")
	if err != nil {
		return nil, err
	}

	return &sideChannel{
		logger:    logger,
		pgxConfig: pgxConfig,
	}, nil
}

func (sc *sideChannel) CreatePublication(
	publicationName string,
) (success bool, err error) {

	err = sc.newSession(time.Second*10, func(session *session) error {
		query := fmt.Sprintf(queryTemplateCreatePublication, pgx.Identifier{publicationName}.Sanitize())
		if _, err := session.exec(query); err != nil {
			return err
		}
		sc.logger.Infof("Created publication %s", publicationName)
		success = true
		return nil
	})
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) ExistsPublication(
	publicationName string,
) (found bool, err error) {

	err = sc.newSession(time.Second*10, func(session *session) error {
		return session.queryRow(queryCheckPublicationExists, publicationName).Scan(&found)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
	}
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) DropPublication(
	publicationName string,
) error {

	return sc.newSession(time.Second*10, func(session *session) error {
		_, err := session.exec(fmt.Sprintf(queryTemplateDropPublication, pgx.Identifier{publicationName}.Sanitize()))
		if isErrorCode(err, pgerrcode.UndefinedObject) {
			return nil
		}
		if err == nil {
			sc.logger.Infof("Dropped publication %s", publicationName)
		}
		if err != nil {
			err = errors.Wrap(err, 0)
		}
		return err
	})
}

func (sc *sideChannel) GetSystemInformation() (databaseName, systemId string, timeline int32, err error) {
	if err := sc.newSession(time.Second*10, func(session *session) error {
		return session.queryRow(queryReadSystemInformation).Scan(&databaseName, &systemId, &timeline)
	}); err != nil {
		return databaseName, systemId, timeline, errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) GetWalLevel() (walLevel string, err error) {
	walLevel = "unknown"
	err = sc.newSession(time.Second*10, func(session *session) error {
		return session.queryRow(queryConfiguredWalLevel).Scan(&walLevel)
	})
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) GetPostgresVersion() (pgVersion version.PostgresVersion, err error) {
	if err = sc.newSession(time.Second*10, func(session *session) error {
		var v string
		if err := session.queryRow(queryPostgreSqlVersion).Scan(&v); err != nil {
			return err
		}
		pgVersion, err = version.ParsePostgresVersion(v)
		return err
	}); err != nil {
		return 0, errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) ReadReplicationSlot(
	slotName string,
) (pluginName, slotType string, restartLsn, confirmedFlushLsn pgtypes.LSN, err error) {

	err = sc.newSession(time.Second*10, func(session *session) error {
		var restart, confirmed *string
		if err := session.queryRow(queryReadReplicationSlot, slotName).Scan(
			&pluginName, &slotType, &restart, &confirmed,
		); err != nil {
			return err
		}
		if restartLsn, err = parseLSN(restart); err != nil {
			return err
		}
		confirmedFlushLsn, err = parseLSN(confirmed)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
	}
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) ExistsReplicationSlot(
	slotName string,
) (found bool, err error) {

	err = sc.newSession(time.Second*10, func(session *session) error {
		return session.queryRow(queryCheckReplicationSlotExists, slotName).Scan(&found)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
	}
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) ReadPgTypes(
	cb func(typeInfo systemcatalog.TypeInfo) error, oids ...uint32,
) error {

	if len(oids) == 0 {
		return nil
	}

	return sc.newSession(time.Second*30, func(session *session) error {
		return session.queryFunc(func(row pgx.Row) error {
			var typeInfo systemcatalog.TypeInfo
			var kind, category string
			if err := row.Scan(
				&typeInfo.Oid, &typeInfo.Namespace, &typeInfo.Name, &kind, &category,
			); err != nil {
				return errors.Wrap(err, 0)
			}
			typeInfo.Kind = systemcatalog.PgKind(kind)
			typeInfo.Category = systemcatalog.PgCategory(category)
			return cb(typeInfo)
		}, queryReadPostgreSqlTypes, oids)
	})
}

// ResolveMappingRelationId looks up the relation id of the mapping
// table, the name may be schema qualified
func (sc *sideChannel) ResolveMappingRelationId(
	ctx context.Context, mappingTable string,
) (relationId uint32, found bool, err error) {

	err = sc.newSessionWithContext(ctx, time.Second*10, func(session *session) error {
		var oid *uint32
		if err := session.queryRow(queryResolveMappingRelationId, mappingTable).Scan(&oid); err != nil {
			return err
		}
		if oid != nil {
			relationId = *oid
			found = true
		}
		return nil
	})
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

// ReadReplicaIdentity reads the replica identity setting of the
// relation: d(efault), n(othing), f(ull) or i(ndex)
func (sc *sideChannel) ReadReplicaIdentity(
	ctx context.Context, relationId uint32,
) (replicaIdentity string, err error) {

	err = sc.newSessionWithContext(ctx, time.Second*10, func(session *session) error {
		return session.queryRow(queryReadReplicaIdentity, relationId).Scan(&replicaIdentity)
	})
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

// ReadColumnMappings reads all rows of the mapping table ordered
// by relation id and ordinal position. A missing mapping table
// yields no rows.
func (sc *sideChannel) ReadColumnMappings(
	ctx context.Context, mappingTable string,
	cb func(relationId uint32, position int32, column string) error,
) error {

	query := fmt.Sprintf(queryTemplateReadColumnMappings, sanitizeTableName(mappingTable))
	err := sc.newSessionWithContext(ctx, time.Second*30, func(session *session) error {
		return session.queryFunc(func(row pgx.Row) error {
			var relationId uint32
			var position int32
			var column string
			if err := row.Scan(&relationId, &position, &column); err != nil {
				return errors.Wrap(err, 0)
			}
			return cb(relationId, position, column)
		}, query)
	})
	if isErrorCode(err, pgerrcode.UndefinedTable) {
		sc.logger.Warnf("Mapping table '%s' disappeared while reading", mappingTable)
		return nil
	}
	return err
}

func (sc *sideChannel) newSession(
	timeout time.Duration, fn func(session *session) error,
) error {

	return sc.newSessionWithContext(context.Background(), timeout, fn)
}

func (sc *sideChannel) newSessionWithContext(
	parent context.Context, timeout time.Duration, fn func(session *session) error,
) error {

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	connection, err := sc.newSideChannelConnection(ctx)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer connection.Close(context.Background())

	s := &session{
		connection: connection,
		ctx:        ctx,
	}
	return fn(s)
}

func (sc *sideChannel) newSideChannelConnection(
	ctx context.Context,
) (*pgx.Conn, error) {

	return pgx.ConnectConfig(ctx, sc.pgxConfig)
}

func sanitizeTableName(
	table string,
) string {

	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

func parseLSN(
	value *string,
) (pgtypes.LSN, error) {

	if value == nil {
		return 0, nil
	}
	lsn, err := pglogrepl.ParseLSN(*value)
	if err != nil {
		return 0, errors.Wrap(err, 0)
	}
	return pgtypes.LSN(lsn), nil
}

func isErrorCode(
	err error, code string,
) bool {

	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

type rowFunction = func(
	row pgx.Row,
) error

type session struct {
	connection *pgx.Conn
	ctx        context.Context
}

func (s *session) queryFunc(
	fn rowFunction, query string, args ...any,
) error {

	rows, err := s.connection.Query(s.ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}

	return rows.Err()
}

func (s *session) queryRow(
	query string, args ...any,
) pgx.Row {

	return s.connection.QueryRow(s.ctx, query, args...)
}

func (s *session) exec(
	query string, args ...any,
) (pgconn.CommandTag, error) {

	return s.connection.Exec(s.ctx, query, args...)
}
