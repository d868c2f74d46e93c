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

package eventfiltering

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-errors/errors"
	"github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/noctarius/avro-change-encoder/spi/systemcatalog"
	"github.com/samber/lo"
	"slices"
	"strings"
)

// EventFilter decides if a row change is encoded. Changes
// rejected by the filter are turned into skips.
type EventFilter interface {
	Evaluate(
		relation *systemcatalog.Relation, kind pgtypes.ChangeKind, oldValues, newValues pgtypes.Tuple,
	) (bool, error)
}

type eventFilterFunc func(
	relation *systemcatalog.Relation, kind pgtypes.ChangeKind, oldValues, newValues pgtypes.Tuple,
) (bool, error)

func (eff eventFilterFunc) Evaluate(
	relation *systemcatalog.Relation, kind pgtypes.ChangeKind, oldValues, newValues pgtypes.Tuple,
) (bool, error) {

	return eff(relation, kind, oldValues, newValues)
}

func NewEventFilter(
	filterDefinitions map[string]config.EventFilterConfig,
) (EventFilter, error) {

	if len(filterDefinitions) == 0 {
		return acceptAllFilter, nil
	}

	names := lo.Keys(filterDefinitions)
	slices.Sort(names)

	filters := make([]*eventFilter, 0, len(names))
	for _, name := range names {
		def := filterDefinitions[name]

		defaultValue := true
		if def.DefaultValue != nil {
			defaultValue = *def.DefaultValue
		}

		prog, err := expr.Compile(def.Condition, expr.AsBool())
		if err != nil {
			return nil, errors.Errorf("failed to compile filter '%s': %s", name, err.Error())
		}

		filters = append(filters, &eventFilter{
			name:         name,
			defaultValue: defaultValue,
			condition:    def.Condition,
			tables:       def.Tables,
			prog:         prog,
			vm:           &vm.VM{},
		})
	}
	return compositeFilter(filters), nil
}

var acceptAllFilter eventFilterFunc = func(
	_ *systemcatalog.Relation, _ pgtypes.ChangeKind, _, _ pgtypes.Tuple,
) (bool, error) {

	return true, nil
}

var compositeFilter = func(filters []*eventFilter) EventFilter {
	return eventFilterFunc(func(
		relation *systemcatalog.Relation, kind pgtypes.ChangeKind, oldValues, newValues pgtypes.Tuple,
	) (bool, error) {

		for _, filter := range filters {
			if !filter.enabled(relation) {
				continue
			}
			success, err := filter.evaluate(relation, kind, oldValues, newValues)
			if err != nil {
				return false, err
			}
			if !success {
				return false, nil
			}
		}
		return true, nil
	})
}

type eventFilter struct {
	name         string
	defaultValue bool
	condition    string
	tables       []string
	prog         *vm.Program
	vm           *vm.VM
}

// enabled matches the relation against the configured tables,
// given either as table or as schema.table
func (f *eventFilter) enabled(
	relation *systemcatalog.Relation,
) bool {

	if len(f.tables) == 0 || relation == nil {
		return true
	}
	qualified := relation.SchemaName() + "." + relation.TableName()
	return lo.ContainsBy(f.tables, func(table string) bool {
		table = strings.TrimSpace(table)
		return table == relation.TableName() || table == qualified
	})
}

func (f *eventFilter) evaluate(
	relation *systemcatalog.Relation, kind pgtypes.ChangeKind, oldValues, newValues pgtypes.Tuple,
) (bool, error) {

	env := map[string]any{
		"op":  strings.ToLower(kind.String()),
		"old": map[string]any(oldValues),
		"new": map[string]any(newValues),
	}
	if relation != nil {
		env["schema"] = relation.SchemaName()
		env["table"] = relation.TableName()
		env["relid"] = relation.Id()
	}

	result, err := f.vm.Run(f.prog, env)
	if err != nil {
		return false, errors.Errorf("filter '%s' failed: %s", f.name, err.Error())
	}

	r, ok := result.(bool)
	if !ok {
		return false, errors.Errorf("result of filter «%s» isn't a boolean", f.condition)
	}

	if r {
		return f.defaultValue, nil
	}
	return !f.defaultValue, nil
}
