package money

import (
	"math/big"
	"testing"
)

func amt(t *testing.T, s string) Amount {
	t.Helper()
	a, err := FromDecimalString(s)
	if err != nil {
		t.Fatalf("FromDecimalString(%q): %v", s, err)
	}
	return a
}

func TestFromDecimalString(t *testing.T) {
	if _, err := FromDecimalString("not a number"); err == nil {
		t.Error("garbage accepted")
	}
	if got := amt(t, " 12.5 ").String(); got != "12.5" {
		t.Errorf("trimmed parse = %q, want 12.5", got)
	}
	// Sub-nano digits round away.
	if got := amt(t, "1.0000000005").String(); got != "1.000000001" && got != "1" {
		t.Errorf("scale-9 rounding = %q", got)
	}
}

func TestNanoRoundTrip(t *testing.T) {
	tests := []struct {
		dec  string
		nano int64
	}{
		{"1", 1_000_000_000},
		{"0.05", 50_000_000},
		{"12.345678901", 12_345_678_901},
		{"0", 0},
	}
	for _, tt := range tests {
		a := amt(t, tt.dec)
		if got := a.ToNano(); got.Cmp(big.NewInt(tt.nano)) != 0 {
			t.Errorf("ToNano(%s) = %s, want %d", tt.dec, got, tt.nano)
		}
		back := FromNano(big.NewInt(tt.nano))
		if !back.Equal(a) {
			t.Errorf("FromNano(%d) = %s, want %s", tt.nano, back, a)
		}
	}
}

func TestMulPercent(t *testing.T) {
	a := amt(t, "200")
	if got := a.MulPercent(10).String(); got != "20" {
		t.Errorf("200 * 10%% = %q, want 20", got)
	}
	if got := a.MulPercent(100).String(); got != "200" {
		t.Errorf("200 * 100%% = %q, want 200", got)
	}
	if got := a.MulPercent(0).String(); got != "0" {
		t.Errorf("200 * 0%% = %q, want 0", got)
	}
}

func TestSubtractFee(t *testing.T) {
	a := amt(t, "100")

	split, err := SubtractFee(a, 10)
	if err != nil {
		t.Fatalf("SubtractFee: %v", err)
	}
	if split.Fee.String() != "10" || split.Payout.String() != "90" {
		t.Errorf("fee/payout = %s/%s, want 10/90", split.Fee, split.Payout)
	}

	// Fee + payout always reassembles the original, even with awkward scales.
	for _, s := range []string{"0.000000001", "99.999999999", "7.123456789", "1"} {
		for _, pct := range []int{0, 1, 5, 33, 50, 99, 100} {
			a := amt(t, s)
			split, err := SubtractFee(a, pct)
			if err != nil {
				t.Fatalf("SubtractFee(%s, %d): %v", s, pct, err)
			}
			if !split.Fee.Add(split.Payout).Equal(a) {
				t.Errorf("SubtractFee(%s, %d): %s + %s != %s", s, pct, split.Fee, split.Payout, a)
			}
		}
	}

	if _, err := SubtractFee(a, -1); err == nil {
		t.Error("negative percent accepted")
	}
	if _, err := SubtractFee(a, 101); err == nil {
		t.Error("percent over 100 accepted")
	}
}

func TestCmpAndPositive(t *testing.T) {
	a, b := amt(t, "1.5"), amt(t, "2")
	if a.Cmp(b) >= 0 {
		t.Error("1.5 < 2")
	}
	if !b.Sub(a).IsPositive() {
		t.Error("2 - 1.5 is positive")
	}
	if Zero().IsPositive() {
		t.Error("zero is not positive")
	}
}
