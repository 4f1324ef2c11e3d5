package privacy

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/sponsorbridge/backend/internal/apperr"
)

func testCipher(t *testing.T) *FieldCipher {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, 32)
	c, err := NewFieldCipher(key)
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}
	return c
}

func TestFieldCipherRoundTrip(t *testing.T) {
	c := testCipher(t)

	for _, plain := range []string{"", "hello", "word seed phrase with spaces", strings.Repeat("x", 4096)} {
		enc, err := c.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if parts := strings.Split(enc, ":"); len(parts) != 3 {
			t.Fatalf("encrypted field has %d parts, want iv:tag:ciphertext", len(parts))
		}
		got, err := c.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != plain {
			t.Errorf("round trip = %q, want %q", got, plain)
		}
	}
}

func TestFieldCipherFreshIVs(t *testing.T) {
	c := testCipher(t)

	a, _ := c.Encrypt("same plaintext")
	b, _ := c.Encrypt("same plaintext")
	if a == b {
		t.Error("two encryptions of the same plaintext must differ")
	}
}

func TestFieldCipherRejectsTampering(t *testing.T) {
	c := testCipher(t)

	enc, _ := c.Encrypt("sensitive")
	parts := strings.Split(enc, ":")

	// Flip one hex digit of the ciphertext.
	ct := []byte(parts[2])
	if ct[0] == 'a' {
		ct[0] = 'b'
	} else {
		ct[0] = 'a'
	}
	tampered := parts[0] + ":" + parts[1] + ":" + string(ct)

	if _, err := c.Decrypt(tampered); !errors.Is(err, apperr.ErrAuth) {
		t.Errorf("tampered ciphertext: err = %v, want ErrAuth", err)
	}
	if _, err := c.Decrypt("not-a-field"); !errors.Is(err, apperr.ErrAuth) {
		t.Errorf("malformed field: err = %v, want ErrAuth", err)
	}
}

func TestFieldCipherKeyLength(t *testing.T) {
	if _, err := NewFieldCipher([]byte("short")); err == nil {
		t.Error("short key accepted")
	}
	if _, err := NewFieldCipher(nil); err == nil {
		t.Error("nil key accepted")
	}
}

func TestHashDealDataDeterministic(t *testing.T) {
	fields := map[string]any{
		"deal_id":      int64(42),
		"amount":       "12.5",
		"final_status": "completed",
	}

	a, err := HashDealData(fields)
	if err != nil {
		t.Fatalf("HashDealData: %v", err)
	}
	b, _ := HashDealData(fields)
	if a != b {
		t.Error("same fields must hash equally")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}

	fields["amount"] = "12.6"
	c, _ := HashDealData(fields)
	if a == c {
		t.Error("changed field must change the hash")
	}
}

func TestHashContent(t *testing.T) {
	if HashContent("abc") != HashContent("abc") {
		t.Error("content hash must be deterministic")
	}
	if HashContent("abc") == HashContent("abd") {
		t.Error("different content must hash differently")
	}
	if HashContent("a", "bc") != HashContent("abc") {
		t.Error("parts are joined without a separator")
	}
}

func TestGenerateAlias(t *testing.T) {
	re := regexp.MustCompile(`^creator-[0-9a-f]{4}$`)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		alias, err := GenerateAlias("creator")
		if err != nil {
			t.Fatalf("GenerateAlias: %v", err)
		}
		if !re.MatchString(alias) {
			t.Fatalf("alias %q does not match role-hex4", alias)
		}
		seen[alias] = true
	}
	// 20 draws from 65536 values colliding every time would mean a broken RNG.
	if len(seen) < 2 {
		t.Error("aliases never vary")
	}
}
