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

package wiring

import (
	"github.com/go-errors/errors"
	"github.com/samber/do"
	"github.com/samber/lo"
	"reflect"
)

var errorReflectiveType = reflect.TypeOf((*error)(nil)).Elem()

// PostConstructable services are called right after construction
type PostConstructable interface {
	PostConstruct() error
}

type ProvideOption interface {
	applyProvideOption(info *bindingInfo)
}

// ForceInitialization constructs the service when the container
// is created instead of on first use
func ForceInitialization() ProvideOption {
	return forceInitializationProvideOption{}
}

type forceInitializationProvideOption struct{}

func (f forceInitializationProvideOption) applyProvideOption(
	info *bindingInfo,
) {

	info.forceInit = true
}

// Module is a named set of constructors and invocations. Services
// are bound by their constructor's return type, parameters are
// resolved the same way.
type Module interface {
	Provide(constructor any, options ...ProvideOption)
	Invoke(call any)
	Name() string
	register(injector *do.Injector)
	initialize(injector *do.Injector) error
}

func DefineModule(
	name string, definer func(module Module),
) Module {

	m := &module{
		name: name,
	}
	definer(m)
	return m
}

type module struct {
	name     string
	bindings []*bindingInfo
}

func (m *module) Name() string {
	return m.name
}

// register binds the providers, later modules override bindings
// of earlier ones
func (m *module) register(
	injector *do.Injector,
) {

	for _, binding := range m.bindings {
		if binding.invoker != nil {
			continue
		}
		if lo.Contains(injector.ListProvidedServices(), binding.output.String()) {
			do.OverrideNamed(injector, binding.output.String(), binding.provider)
		} else {
			do.ProvideNamed(injector, binding.output.String(), binding.provider)
		}
	}
}

func (m *module) initialize(
	injector *do.Injector,
) error {

	for _, binding := range m.bindings {
		if binding.invoker != nil {
			if err := binding.invoker(injector); err != nil {
				return errors.WrapPrefix(err, "module "+m.name, 0)
			}
		}
		if binding.forceInit {
			if _, err := do.InvokeNamed[any](injector, binding.output.String()); err != nil {
				return errors.WrapPrefix(err, "module "+m.name, 0)
			}
		}
	}
	return nil
}

func (m *module) Provide(
	constructor any, options ...ProvideOption,
) {

	t, v := funcOf(constructor)
	switch {
	case t.NumOut() == 2 && !t.Out(1).ConvertibleTo(errorReflectiveType):
		panic(errors.Errorf("Type %s has two return values, but the second one isn't an error", t))
	case t.NumOut() == 0 || t.NumOut() > 2:
		panic(errors.Errorf("Type %s must have 1 or 2 return values, but has %d", t, t.NumOut()))
	}

	binding := &bindingInfo{
		output: t.Out(0),
	}
	binding.provider = func(injector *do.Injector) (any, error) {
		results, err := call(injector, t, v)
		if err != nil {
			return nil, err
		}
		if len(results) == 2 && !results[1].IsNil() {
			return nil, results[1].Interface().(error)
		}

		value := results[0].Interface()
		if pc, ok := value.(PostConstructable); ok {
			if err := pc.PostConstruct(); err != nil {
				return nil, err
			}
		}
		return value, nil
	}

	for _, option := range options {
		option.applyProvideOption(binding)
	}
	m.bindings = append(m.bindings, binding)
}

func (m *module) Invoke(
	invocation any,
) {

	t, v := funcOf(invocation)
	switch {
	case t.NumOut() == 1 && !t.Out(0).ConvertibleTo(errorReflectiveType):
		panic(errors.Errorf("Type %s has a return value, but it isn't an error", t))
	case t.NumOut() > 1:
		panic(errors.Errorf("Type %s can only have 1 return value, but has %d", t, t.NumOut()))
	}

	m.bindings = append(m.bindings, &bindingInfo{
		invoker: func(injector *do.Injector) error {
			results, err := call(injector, t, v)
			if err != nil {
				return err
			}
			if len(results) == 1 && !results[0].IsNil() {
				return results[0].Interface().(error)
			}
			return nil
		},
	})
}

func funcOf(
	fn any,
) (reflect.Type, reflect.Value) {

	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		panic(errors.Errorf("Type %v is not a function", t))
	}
	return t, reflect.ValueOf(fn)
}

// call resolves all parameters from the injector and calls fn
func call(
	injector *do.Injector, t reflect.Type, fn reflect.Value,
) ([]reflect.Value, error) {

	params := make([]reflect.Value, 0, t.NumIn())
	for i := 0; i < t.NumIn(); i++ {
		param, err := do.InvokeNamed[any](injector, t.In(i).String())
		if err != nil {
			return nil, err
		}
		params = append(params, reflect.ValueOf(param))
	}
	return fn.Call(params), nil
}

type bindingInfo struct {
	output    reflect.Type
	forceInit bool
	provider  func(injector *do.Injector) (any, error)
	invoker   func(injector *do.Injector) error
}
