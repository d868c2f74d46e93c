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
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/noctarius/avro-change-encoder/spi/systemcatalog"
	"github.com/noctarius/avro-change-encoder/spi/version"
)

// SideChannel is a regular SQL connection next to the replication
// stream, used for catalog lookups and administrative statements
type SideChannel interface {
	CreatePublication(
		publicationName string,
	) (success bool, err error)
	ExistsPublication(
		publicationName string,
	) (found bool, err error)
	DropPublication(
		publicationName string,
	) error
	GetSystemInformation() (
		databaseName, systemId string, timeline int32, err error,
	)
	GetWalLevel() (walLevel string, err error)
	GetPostgresVersion() (pgVersion version.PostgresVersion, err error)
	ReadReplicationSlot(
		slotName string,
	) (pluginName, slotType string, restartLsn, confirmedFlushLsn pgtypes.LSN, err error)
	ExistsReplicationSlot(
		slotName string,
	) (found bool, err error)
	ReadPgTypes(
		cb func(typeInfo systemcatalog.TypeInfo) error, oids ...uint32,
	) error
	ResolveMappingRelationId(
		ctx context.Context, mappingTable string,
	) (relationId uint32, found bool, err error)
	ReadColumnMappings(
		ctx context.Context, mappingTable string,
		cb func(relationId uint32, position int32, column string) error,
	) error
	ReadReplicaIdentity(
		ctx context.Context, relationId uint32,
	) (replicaIdentity string, err error)
}
