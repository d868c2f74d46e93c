package eventfiltering

import (
	spiconfig "github.com/noctarius/avro-change-encoder/spi/config"
	"github.com/noctarius/avro-change-encoder/spi/pgtypes"
	"github.com/noctarius/avro-change-encoder/spi/systemcatalog"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

var accounts = systemcatalog.NewRelation(42, "public", "accounts")

func TestEventFilter_Evaluate(t *testing.T) {
	filter, err := NewEventFilter(map[string]spiconfig.EventFilterConfig{
		"inserts": {
			Condition: "op == \"insert\"",
		},
	})
	require.NoError(t, err)

	success, err := filter.Evaluate(accounts, pgtypes.Insert, nil, pgtypes.Tuple{"id": int32(1)})
	require.NoError(t, err)
	assert.True(t, success)

	success, err = filter.Evaluate(accounts, pgtypes.Delete, pgtypes.Tuple{"id": int32(1)}, nil)
	require.NoError(t, err)
	assert.False(t, success)
}

func TestEventFilter_Default_Value_Inverts(t *testing.T) {
	filter, err := NewEventFilter(map[string]spiconfig.EventFilterConfig{
		"drop-internal": {
			DefaultValue: lo.ToPtr(false),
			Condition:    "new.name == \"internal\"",
		},
	})
	require.NoError(t, err)

	success, err := filter.Evaluate(accounts, pgtypes.Insert, nil, pgtypes.Tuple{"name": "internal"})
	require.NoError(t, err)
	assert.False(t, success)

	success, err = filter.Evaluate(accounts, pgtypes.Insert, nil, pgtypes.Tuple{"name": "customer"})
	require.NoError(t, err)
	assert.True(t, success)
}

func TestEventFilter_Tables(t *testing.T) {
	filter, err := NewEventFilter(map[string]spiconfig.EventFilterConfig{
		"orders-only": {
			Condition: "false",
			Tables:    []string{"public.orders"},
		},
	})
	require.NoError(t, err)

	success, err := filter.Evaluate(accounts, pgtypes.Insert, nil, pgtypes.Tuple{})
	require.NoError(t, err)
	assert.True(t, success)

	orders := systemcatalog.NewRelation(43, "public", "orders")
	success, err = filter.Evaluate(orders, pgtypes.Insert, nil, pgtypes.Tuple{})
	require.NoError(t, err)
	assert.False(t, success)
}

func TestEventFilter_Accept_All(t *testing.T) {
	filter, err := NewEventFilter(nil)
	require.NoError(t, err)

	success, err := filter.Evaluate(accounts, pgtypes.Update, nil, nil)
	require.NoError(t, err)
	assert.True(t, success)
}

func TestEventFilter_Invalid_Condition(t *testing.T) {
	_, err := NewEventFilter(map[string]spiconfig.EventFilterConfig{
		"broken": {Condition: "op ==="},
	})
	assert.Error(t, err)
}
