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

package pgtypes

import (
	"fmt"
	"github.com/jackc/pglogrepl"
	"time"
)

type LSN pglogrepl.LSN

func (lsn LSN) String() string {
	return pglogrepl.LSN(lsn).String()
}

// ChangeKind is the closed set of row level change kinds a
// session accepts. Transaction boundaries are separate operations.
type ChangeKind uint8

const (
	Insert ChangeKind = iota + 1
	Update
	Delete
	// Skip marks a change which is intentionally excluded, it
	// never produces a frame
	Skip
)

func (ck ChangeKind) String() string {
	switch ck {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	case Skip:
		return "skip"
	}
	return fmt.Sprintf("unknown(%d)", uint8(ck))
}

// Tuple is a decoded row image keyed by column name. An absent
// key means the value is unknown (for example an unchanged TOAST
// value or a key-only delete image), a present key with a nil
// value means SQL NULL.
type Tuple map[string]any

func (t Tuple) Lookup(
	column string,
) (value any, present bool) {

	if t == nil {
		return nil, false
	}
	value, present = t[column]
	return
}

type TxnMeta struct {
	Xid        uint32
	FinalLSN   LSN
	CommitTime time.Time
}

func (m TxnMeta) String() string {
	return fmt.Sprintf(
		"{xid:%d finalLSN:%s commitTime:%s}", m.Xid, m.FinalLSN, m.CommitTime.String(),
	)
}
