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

package tupleencoder

import (
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"github.com/cockroachdb/apd/v3"
	"github.com/go-errors/errors"
	"github.com/goccy/go-json"
	"github.com/hashicorp/go-uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noctarius/avro-change-encoder/internal/schemacache"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"golang.org/x/exp/constraints"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

var ErrIllegalValue = errors.New("illegal value")

const (
	microsPerDay    = int64(24 * time.Hour / time.Microsecond)
	secondsPerDay   = int64(24 * time.Hour / time.Second)
	timestampLayout = "2006-01-02 15:04:05.999999999"
)

// converter turns a decoded source value into the native avro
// value of the field's type. Nil values never reach a converter.
type converter func(oid uint32, value any) (any, error)

var converters = map[schemacache.Conversion]converter{
	schemacache.ConvertBoolean:   bool2boolean,
	schemacache.ConvertInt32:     int2int32,
	schemacache.ConvertInt64:     int2int64,
	schemacache.ConvertFloat32:   float2float32,
	schemacache.ConvertFloat64:   float2float64,
	schemacache.ConvertString:    text2string,
	schemacache.ConvertTextual:   any2text,
	schemacache.ConvertBytes:     bytea2bytes,
	schemacache.ConvertDate:      date2days,
	schemacache.ConvertTime:      time2micros,
	schemacache.ConvertTimestamp: timestamp2micros,
	schemacache.ConvertNumeric:   numeric2text,
	schemacache.ConvertUUID:      uuid2text,
	schemacache.ConvertGeometry:  geometry2ewkb,
}

func inRange[T constraints.Integer | constraints.Float](
	value, min, max T,
) bool {

	return value >= min && value <= max
}

// normalize unwraps database/sql valuers (all pgtype value types
// implement it) into plain go values
func normalize(
	value any,
) (any, error) {

	if valuer, ok := value.(driver.Valuer); ok {
		return valuer.Value()
	}
	return value, nil
}

func integerValue(
	value any,
) (int64, error) {

	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return unsignedValue(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return unsignedValue(v)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, 0)
		}
		return i, nil
	}
	return 0, ErrIllegalValue
}

func unsignedValue(
	value uint64,
) (int64, error) {

	if value > math.MaxInt64 {
		return 0, errors.Errorf("value %d exceeds the range of long", value)
	}
	return int64(value), nil
}

func bool2boolean(_ uint32, value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		return b, nil
	}
	return nil, ErrIllegalValue
}

func int2int32(_ uint32, value any) (any, error) {
	i, err := integerValue(value)
	if err != nil {
		return nil, err
	}
	if !inRange(i, math.MinInt32, math.MaxInt32) {
		return nil, errors.Errorf("value %d exceeds the range of int", i)
	}
	return int32(i), nil
}

func int2int64(_ uint32, value any) (any, error) {
	return integerValue(value)
}

func float2float32(_ uint32, value any) (any, error) {
	var f float64
	switch v := value.(type) {
	case float32:
		return v, nil
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		return float32(parsed), nil
	default:
		i, err := integerValue(v)
		if err != nil {
			return nil, err
		}
		f = float64(i)
	}
	if !math.IsInf(f, 0) && !math.IsNaN(f) && !inRange(f, -math.MaxFloat32, math.MaxFloat32) {
		return nil, errors.Errorf("value %g exceeds the range of float", f)
	}
	return float32(f), nil
}

func float2float64(_ uint32, value any) (any, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		return parsed, nil
	}
	i, err := integerValue(value)
	if err != nil {
		return nil, err
	}
	return float64(i), nil
}

func text2string(_ uint32, value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int32:
		// "char" values decode as runes
		return string(v), nil
	case uint8:
		return string([]byte{v}), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return nil, ErrIllegalValue
}

func any2text(oid uint32, value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return v.String(), nil
	}

	normalized, err := normalize(value)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	if s, ok := normalized.(string); ok {
		return s, nil
	}

	// json and jsonb may be decoded into maps or slices
	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return string(data), nil
}

func bytea2bytes(_ uint32, value any) (any, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		if strings.HasPrefix(v, "\\x") {
			d, err := hex.DecodeString(v[2:])
			if err != nil {
				return nil, errors.Wrap(err, 0)
			}
			return d, nil
		}
		return []byte(v), nil
	}
	return nil, ErrIllegalValue
}

func date2days(_ uint32, value any) (any, error) {
	var t time.Time
	switch v := value.(type) {
	case time.Time:
		t = v
	case string:
		if isInfinity(v) {
			return nil, errors.Errorf("date '%s' can't be represented as days since epoch", v)
		}
		parsed, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		t = parsed
	default:
		return nil, ErrIllegalValue
	}

	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return floorDiv(midnight.Unix(), secondsPerDay), nil
}

func time2micros(_ uint32, value any) (any, error) {
	switch v := value.(type) {
	case pgtype.Time:
		if !v.Valid {
			return nil, ErrIllegalValue
		}
		return v.Microseconds, nil
	case time.Duration:
		return v.Microseconds(), nil
	case int64:
		return v, nil
	case time.Time:
		midnight := time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, v.Location())
		return v.Sub(midnight).Microseconds(), nil
	case string:
		return parseTimeOfDay(v)
	}
	return nil, ErrIllegalValue
}

func timestamp2micros(_ uint32, value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UnixMicro(), nil
	case pgtype.Timestamp:
		if v.InfinityModifier != pgtype.Finite {
			return nil, errors.Errorf("timestamp '%s' can't be represented as micros since epoch", v.InfinityModifier)
		}
		return v.Time.UnixMicro(), nil
	case pgtype.Timestamptz:
		if v.InfinityModifier != pgtype.Finite {
			return nil, errors.Errorf("timestamp '%s' can't be represented as micros since epoch", v.InfinityModifier)
		}
		return v.Time.UnixMicro(), nil
	case string:
		if isInfinity(v) {
			return nil, errors.Errorf("timestamp '%s' can't be represented as micros since epoch", v)
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.UnixMicro(), nil
		}
		t, err := time.ParseInLocation(timestampLayout, v, time.UTC)
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		return t.UnixMicro(), nil
	}
	return nil, ErrIllegalValue
}

func numeric2text(_ uint32, value any) (any, error) {
	switch v := value.(type) {
	case pgtype.Numeric:
		if v.NaN {
			return "NaN", nil
		}
		switch v.InfinityModifier {
		case pgtype.Infinity:
			return "Infinity", nil
		case pgtype.NegativeInfinity:
			return "-Infinity", nil
		}
		if v.Int == nil {
			return nil, ErrIllegalValue
		}
		return bigInt2text(v.Int, v.Exp), nil
	case *big.Int:
		return bigInt2text(v, 0), nil
	case apd.Decimal:
		return v.Text('f'), nil
	case *apd.Decimal:
		return v.Text('f'), nil
	case float32:
		return float2text(float64(v))
	case float64:
		return float2text(v)
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "nan":
			return "NaN", nil
		case "infinity", "+infinity", "inf":
			return "Infinity", nil
		case "-infinity", "-inf":
			return "-Infinity", nil
		}
		d, _, err := apd.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		return d.Text('f'), nil
	}
	i, err := integerValue(value)
	if err != nil {
		return nil, err
	}
	return strconv.FormatInt(i, 10), nil
}

func bigInt2text(
	coefficient *big.Int, exponent int32,
) string {

	d := apd.NewWithBigInt(new(apd.BigInt).SetMathBigInt(coefficient), exponent)
	return d.Text('f')
}

func float2text(
	value float64,
) (any, error) {

	switch {
	case math.IsNaN(value):
		return "NaN", nil
	case math.IsInf(value, 1):
		return "Infinity", nil
	case math.IsInf(value, -1):
		return "-Infinity", nil
	}
	d, err := new(apd.Decimal).SetFloat64(value)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return d.Text('f'), nil
}

func uuid2text(_ uint32, value any) (any, error) {
	var data []byte
	switch v := value.(type) {
	case pgtype.UUID:
		data = v.Bytes[:]
	case [16]byte:
		data = v[:]
	case []byte:
		data = v
	case string:
		parsed, err := uuid.ParseUUID(strings.ToLower(strings.TrimSpace(v)))
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		data = parsed
	default:
		return nil, ErrIllegalValue
	}

	u, err := uuid.FormatUUID(data)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return u, nil
}

// geometry2ewkb emits PostGIS values as little endian EWKB,
// text values are expected in the hex encoded EWKB form
// PostGIS uses as its output format
func geometry2ewkb(_ uint32, value any) (any, error) {
	var g geom.T
	switch v := value.(type) {
	case geom.T:
		g = v
	case string:
		b, err := hex.DecodeString(v)
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		if g, err = ewkb.Unmarshal(b); err != nil {
			return nil, errors.Wrap(err, 0)
		}
	case []byte:
		var err error
		if g, err = ewkb.Unmarshal(v); err != nil {
			return nil, errors.Wrap(err, 0)
		}
	default:
		return nil, ErrIllegalValue
	}

	data, err := ewkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return data, nil
}

func parseTimeOfDay(
	value string,
) (int64, error) {

	value = strings.TrimSpace(value)
	if value == "24:00:00" {
		return microsPerDay, nil
	}
	t, err := time.Parse("15:04:05.999999", value)
	if err != nil {
		return 0, errors.Wrap(err, 0)
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return t.Sub(midnight).Microseconds(), nil
}

func isInfinity(
	value string,
) bool {

	v := strings.ToLower(strings.TrimSpace(value))
	return v == "infinity" || v == "-infinity"
}

func floorDiv(
	a, b int64,
) int64 {

	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
