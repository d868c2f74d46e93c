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

package schemacache

import (
	"fmt"
	"strings"
	"unicode"
)

// avroName converts an SQL identifier into a valid avro name,
// [A-Za-z_][A-Za-z0-9_]*. Invalid characters are replaced by
// their code point, which keeps most distinct identifiers
// distinct, collisions are detected when building a record.
func avroName(
	name string,
) string {

	builder := strings.Builder{}
	for i, r := range name {
		switch {
		case r == '_':
			builder.WriteRune(r)
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || (unicode.IsDigit(r) && i > 0)):
			builder.WriteRune(r)
		default:
			builder.WriteString(fmt.Sprintf("_u%04x_", r))
		}
	}
	if builder.Len() == 0 {
		return "_"
	}
	return builder.String()
}
