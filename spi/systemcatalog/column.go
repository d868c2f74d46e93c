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

import (
	"fmt"
	"github.com/samber/lo"
)

// Columns represents the ordered collection of columns
// of a relation, in catalog order
type Columns []Column

// Lookup returns the column with the given name and true,
// otherwise present is false
func (c Columns) Lookup(
	name string,
) (column Column, present bool) {

	return lo.Find(c, func(item Column) bool {
		return item.name == name
	})
}

// Names returns the column names in catalog order
func (c Columns) Names() []string {
	return lo.Map(c, func(item Column, _ int) string {
		return item.name
	})
}

// PrimaryKeyColumns returns the subset of columns being part
// of the relation's replica identity or primary key
func (c Columns) PrimaryKeyColumns() Columns {
	return lo.Filter(c, func(item Column, _ int) bool {
		return item.primaryKey
	})
}

// Column represents a column of a relation
type Column struct {
	name       string
	position   int
	dataType   uint32
	typeInfo   TypeInfo
	modifiers  int32
	nullable   bool
	primaryKey bool
}

// NewColumn instantiates a new Column. The type information
// is used to derive the target field type while building
// record schemas.
func NewColumn(
	name string, position int, typeInfo TypeInfo, modifiers int32, nullable, primaryKey bool,
) Column {

	return Column{
		name:       name,
		position:   position,
		dataType:   typeInfo.Oid,
		typeInfo:   typeInfo,
		modifiers:  modifiers,
		nullable:   nullable,
		primaryKey: primaryKey,
	}
}

// Name returns the column name
func (c Column) Name() string {
	return c.name
}

// Position returns the 1-based attribute number
func (c Column) Position() int {
	return c.position
}

// DataType returns the type oid
func (c Column) DataType() uint32 {
	return c.dataType
}

// TypeName returns the name of the column's type
func (c Column) TypeName() string {
	return c.typeInfo.Name
}

// TypeInfo returns the full type information
func (c Column) TypeInfo() TypeInfo {
	return c.typeInfo
}

// Modifiers returns the type modifier (atttypmod), -1 if none
func (c Column) Modifiers() int32 {
	return c.modifiers
}

// IsNullable returns true if the column accepts NULL values
func (c Column) IsNullable() bool {
	return c.nullable
}

// IsPrimaryKey returns true if the column is part of the
// relation's replica identity
func (c Column) IsPrimaryKey() bool {
	return c.primaryKey
}

func (c Column) String() string {
	return fmt.Sprintf(
		"{name:%s position:%d dataType:%d typeName:%s modifiers:%d nullable:%t primaryKey:%t}",
		c.name, c.position, c.dataType, c.typeInfo.Name, c.modifiers, c.nullable, c.primaryKey,
	)
}
