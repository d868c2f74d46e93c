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

package encoding

import (
	"fmt"
	"github.com/go-errors/errors"
)

type ErrorKind int

const (
	StoreUnavailable ErrorKind = iota + 1
	SchemaBuildError
	UnsupportedType
	ValueConversionError
	EncodeError
	SerializationError
	InvalidPolicyValue
	MissingPolicyValue
)

func (k ErrorKind) String() string {
	switch k {
	case StoreUnavailable:
		return "StoreUnavailable"
	case SchemaBuildError:
		return "SchemaBuildError"
	case UnsupportedType:
		return "UnsupportedType"
	case ValueConversionError:
		return "ValueConversionError"
	case EncodeError:
		return "EncodeError"
	case SerializationError:
		return "SerializationError"
	case InvalidPolicyValue:
		return "InvalidPolicyValue"
	case MissingPolicyValue:
		return "MissingPolicyValue"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Severe reports whether the kind indicates a logic defect rather
// than a data problem.
func (k ErrorKind) Severe() bool {
	return k == SerializationError
}

// Error is the single error type reported by the encoding pipeline.
// RelationId and Field are zero values when not applicable.
type Error struct {
	Kind       ErrorKind
	RelationId uint32
	Field      string
	Message    string
	Cause      error
}

func NewError(
	kind ErrorKind, relationId uint32, field string, format string, args ...any,
) *Error {

	return &Error{
		Kind:       kind,
		RelationId: relationId,
		Field:      field,
		Message:    fmt.Sprintf(format, args...),
	}
}

func WrapError(
	kind ErrorKind, relationId uint32, field string, cause error, format string, args ...any,
) *Error {

	e := NewError(kind, relationId, field, format, args...)
	e.Cause = cause
	return e
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.RelationId != 0 {
		msg = fmt.Sprintf("%s [relation %d]", msg, e.RelationId)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s [field %s]", msg, e.Field)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s => %s", msg, e.Cause.Error())
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of the first *Error in err's chain,
// or zero if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
