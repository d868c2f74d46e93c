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

package systemcatalog

import "fmt"

// Relation describes a source table as announced by the
// logical replication stream
type Relation struct {
	id         uint32
	schemaName string
	tableName  string
}

func NewRelation(
	id uint32, schemaName, tableName string,
) *Relation {

	return &Relation{
		id:         id,
		schemaName: schemaName,
		tableName:  tableName,
	}
}

func (r *Relation) Id() uint32 {
	return r.id
}

func (r *Relation) SchemaName() string {
	return r.schemaName
}

func (r *Relation) TableName() string {
	return r.tableName
}

// CanonicalName returns the quoted, schema qualified name
func (r *Relation) CanonicalName() string {
	return MakeRelationKey(r.schemaName, r.tableName)
}

func (r *Relation) String() string {
	return fmt.Sprintf("{id:%d schema:%s table:%s}", r.id, r.schemaName, r.tableName)
}

func MakeRelationKey(
	schemaName, tableName string,
) string {

	return fmt.Sprintf("\"%s\".\"%s\"", schemaName, tableName)
}

// CatalogReader provides the current ordered column
// descriptors of a relation
type CatalogReader interface {
	Columns(
		relationId uint32,
	) (Columns, error)
}

// CatalogReaderFunc is a functional CatalogReader
type CatalogReaderFunc func(relationId uint32) (Columns, error)

func (f CatalogReaderFunc) Columns(
	relationId uint32,
) (Columns, error) {

	return f(relationId)
}
