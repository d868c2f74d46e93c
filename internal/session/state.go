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

package session

import "fmt"

// State is the processing state of a session. Every event passes
// Resetting, Encoding, Writing and Releasing and returns to Idle.
type State uint8

const (
	Idle State = iota
	Resetting
	Priming
	Encoding
	Writing
	Releasing
	Fatal
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Resetting:
		return "Resetting"
	case Priming:
		return "Priming"
	case Encoding:
		return "Encoding"
	case Writing:
		return "Writing"
	case Releasing:
		return "Releasing"
	case Fatal:
		return "Fatal"
	case Closed:
		return "Closed"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// IsTerminal returns true if no further events are processed
func (s State) IsTerminal() bool {
	return s == Fatal || s == Closed
}
