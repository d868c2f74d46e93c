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

package errorpolicy

import (
	"github.com/go-errors/errors"
	"github.com/noctarius/avro-change-encoder/internal/stats"
	"github.com/noctarius/avro-change-encoder/internal/supporting/logging"
	"github.com/noctarius/avro-change-encoder/spi/encoding"
	"strings"
)

// ErrorPolicy decides whether a failed change aborts the session
type ErrorPolicy int

const (
	ExitOnError ErrorPolicy = iota
	LogAndContinue
)

const (
	ExitOnErrorValue    = "exit_on_error"
	LogAndContinueValue = "log_and_continue"
)

// Default is used when no policy option was given at all
const Default = ExitOnError

func (p ErrorPolicy) String() string {
	switch p {
	case LogAndContinue:
		return LogAndContinueValue
	default:
		return ExitOnErrorValue
	}
}

// Parse reads the policy from an option value. A nil value means
// the option was given without a value.
func Parse(
	option *string,
) (ErrorPolicy, error) {

	if option == nil {
		return Default, encoding.NewError(
			encoding.MissingPolicyValue, 0, "", "error policy option requires a value",
		)
	}

	switch strings.ToLower(strings.TrimSpace(*option)) {
	case ExitOnErrorValue:
		return ExitOnError, nil
	case LogAndContinueValue:
		return LogAndContinue, nil
	}
	return Default, encoding.NewError(
		encoding.InvalidPolicyValue, 0, "",
		"invalid error policy '%s', expected %s or %s", *option, LogAndContinueValue, ExitOnErrorValue,
	)
}

// FatalError is returned by the Handler when the session has to
// abort. It wraps the original cause.
type FatalError struct {
	RelationId uint32
	Cause      error
}

func (e *FatalError) Error() string {
	return "session aborted: " + e.Cause.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Cause
}

// IsFatal returns true if err's chain carries a FatalError
func IsFatal(
	err error,
) bool {

	var fatal *FatalError
	return errors.As(err, &fatal)
}

type Handler struct {
	policy   ErrorPolicy
	logger   *logging.Logger
	reporter *stats.Reporter
	counts   map[encoding.ErrorKind]uint64
}

func NewHandler(
	policy ErrorPolicy, reporter *stats.Reporter,
) (*Handler, error) {

	logger, err := logging.NewLogger("ErrorPolicy")
	if err != nil {
		return nil, err
	}

	return &Handler{
		policy:   policy,
		logger:   logger,
		reporter: reporter,
		counts:   make(map[encoding.ErrorKind]uint64),
	}, nil
}

func (h *Handler) Policy() ErrorPolicy {
	return h.policy
}

// Handle reports err for the given relation. The context is a
// human readable description of what was being processed, for
// example the schema debug string. It returns nil if processing
// continues, otherwise a FatalError.
func (h *Handler) Handle(
	relationId uint32, context string, err error,
) error {

	if err == nil {
		return nil
	}

	kind := encoding.KindOf(err)
	if kind == 0 {
		kind = encoding.EncodeError
	}

	h.counts[kind]++
	h.reporter.Incr("errors", stats.Tag("kind", kind.String()), stats.Tag("policy", h.policy.String()))

	logger := h.logger
	if relationId != 0 {
		logger = logger.WithRelation(relationId)
	}

	if kind.Severe() {
		logger.Errorf("%s (%s)", err.Error(), context)
	} else {
		logger.Warnf("%s (%s)", err.Error(), context)
	}

	if h.policy == LogAndContinue {
		return nil
	}
	return &FatalError{
		RelationId: relationId,
		Cause:      err,
	}
}

// Count returns how many errors of the given kind were handled
func (h *Handler) Count(
	kind encoding.ErrorKind,
) uint64 {

	return h.counts[kind]
}
