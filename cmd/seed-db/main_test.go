package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeVehicles(t *testing.T) {
	got, err := decodeVehicles([]byte(`[
		{"name":"Golf","pricePerDay":"50.00","extra":[1,2]},
		{"name":"Fiat","pricePerDay":"35.50","isAvailable":false}
	]`))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Golf", got[0].Name)
	assert.True(t, got[0].IsAvailable)
	assert.True(t, decimal.RequireFromString("50").Equal(got[0].PricePerDay))
	assert.False(t, got[1].IsAvailable)

	_, err = decodeVehicles([]byte(`[{"pricePerDay":"1.00"}]`))
	require.Error(t, err)

	_, err = decodeVehicles([]byte(`[{"name":"X","pricePerDay":"abc"}]`))
	require.Error(t, err)
}
