package types

import "testing"

func TestCanonicalPair(t *testing.T) {
	tt := []struct {
		name   string
		a, b   string
		wantLo string
		wantHi string
	}{
		{
			name:   "already_ordered",
			a:      "aaa",
			b:      "bbb",
			wantLo: "aaa",
			wantHi: "bbb",
		},
		{
			name:   "swapped",
			a:      "bbb",
			b:      "aaa",
			wantLo: "aaa",
			wantHi: "bbb",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			lo, hi := CanonicalPair(tc.a, tc.b)
			if lo != tc.wantLo || hi != tc.wantHi {
				t.Fatalf("CanonicalPair(%q, %q) = %q, %q; want %q, %q", tc.a, tc.b, lo, hi, tc.wantLo, tc.wantHi)
			}

			// Both orders map to the same lock key.
			lo2, hi2 := CanonicalPair(tc.b, tc.a)
			if PairLockKey(lo, hi) != PairLockKey(lo2, hi2) {
				t.Fatalf("lock key differs across argument order")
			}
		})
	}
}
