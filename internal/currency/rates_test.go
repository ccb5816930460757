package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSettlement(t *testing.T) {
	got, err := ToSettlement(5000, "BIF")
	require.NoError(t, err)
	assert.InDelta(t, 0.001735, got, 1e-12)

	got, err = ToSettlement(10, "USD")
	require.NoError(t, err)
	assert.InDelta(t, 0.004, got, 1e-12)

	_, err = ToSettlement(100, "RWF")
	assert.Error(t, err)
}

func TestFromSettlementRoundTrip(t *testing.T) {
	for _, code := range Supported() {
		settlement, err := ToSettlement(1234.5, code)
		require.NoError(t, err)
		local, err := FromSettlement(settlement, code)
		require.NoError(t, err)
		assert.InDelta(t, 1234.5, local, 1e-6, "round trip for %s", code)
	}
}

func TestSupportedIsSorted(t *testing.T) {
	assert.Equal(t, []string{"BIF", "KES", "USD"}, Supported())
}
