package jsonutil_test

import (
	"math"
	"testing"

	"github.com/jvs-project/timelock/pkg/jsonutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalMarshal_SortedKeysNoWhitespace(t *testing.T) {
	data, err := jsonutil.CanonicalMarshal(map[string]any{"b": 1, "a": []any{true, nil}, "c": map[string]any{"z": "x", "y": 2}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[true,null],"b":1,"c":{"y":2,"z":"x"}}`, string(data))
}

func TestCanonicalMarshal_StructFieldsSorted(t *testing.T) {
	type rec struct {
		Type   string `json:"type"`
		Amount uint64 `json:"amount"`
	}
	data, err := jsonutil.CanonicalMarshal(rec{Type: "deposited", Amount: 7})
	require.NoError(t, err)
	assert.Equal(t, `{"amount":7,"type":"deposited"}`, string(data))
}

func TestCanonicalMarshal_LargeIntegersExact(t *testing.T) {
	data, err := jsonutil.CanonicalMarshal(map[string]uint64{"amount": math.MaxUint64})
	require.NoError(t, err)
	assert.Equal(t, `{"amount":18446744073709551615}`, string(data))

	a, err := jsonutil.SHA256Hex(map[string]uint64{"amount": math.MaxUint64})
	require.NoError(t, err)
	b, err := jsonutil.SHA256Hex(map[string]uint64{"amount": math.MaxUint64 - 1})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSHA256Hex_Deterministic(t *testing.T) {
	a, err := jsonutil.SHA256Hex(map[string]any{"x": 1, "y": 2})
	require.NoError(t, err)
	b, err := jsonutil.SHA256Hex(map[string]any{"y": 2, "x": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestCanonicalMarshal_Unmarshalable(t *testing.T) {
	_, err := jsonutil.CanonicalMarshal(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}
