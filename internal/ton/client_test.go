package ton

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/ton/wallet"
)

func TestValidateAddress(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	addr, err := wallet.AddressFromPubKey(pub, wallet.V4R2, wallet.DefaultSubwallet)
	require.NoError(t, err)

	assert.NoError(t, ValidateAddress(addr.String()))
	assert.NoError(t, ValidateAddress("  "+addr.String()+"  "))

	assert.Error(t, ValidateAddress(""))
	assert.Error(t, ValidateAddress("not-an-address"))
	assert.Error(t, ValidateAddress("EQabc"))
}

func TestFallbackEngagesMidBudget(t *testing.T) {
	assert.False(t, useFallback(0), "first attempt stays on the primary pool")
	for attempt := 1; attempt < rpcAttempts; attempt++ {
		assert.True(t, useFallback(attempt), "attempt %d should use the fallback pool", attempt+1)
	}
}
