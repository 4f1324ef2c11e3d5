package privacy

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateAlias returns an opaque counterparty label like "Seller-ab12".
// Not reversible and not a secret, just an opacity layer on the wire.
func GenerateAlias(role string) (string, error) {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", role, hex.EncodeToString(buf)), nil
}
