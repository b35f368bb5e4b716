package bot

import "testing"

func TestNormalizeAlertName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already normalized", "morning longs", "morning longs"},
		{"underscores", "morning_longs", "morning longs"},
		{"dashes", "Morning-Longs", "morning longs"},
		{"mixed whitespace", "  Morning   Longs  ", "morning longs"},
		{"zero width chars", "morning​_longs", "morning longs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeAlertName(tt.in); got != tt.want {
				t.Errorf("NormalizeAlertName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeAlertName_FixedPoint(t *testing.T) {
	inputs := []string{"morning_longs", "Morning-Longs", "  weird   Case_Name "}
	for _, in := range inputs {
		once := NormalizeAlertName(in)
		twice := NormalizeAlertName(once)
		if once != twice {
			t.Errorf("normalization not a fixed point: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "SBIN", "SBIN"},
		{"lowercase", "sbin", "SBIN"},
		{"exchange prefix", "NSE:SBIN", "SBIN"},
		{"ns suffix", "SBIN.NS", "SBIN"},
		{"eq suffix", "SBIN-EQ", "SBIN"},
		{"prefix and suffix", "NSE:SBIN-EQ", "SBIN"},
		{"drops unknown chars", "SBIN@#$", "SBIN"},
		{"keeps ampersand, strips eq suffix", "M&M-EQ", "M&M"},
		{"bare exchange code rejected", "NSE:NSE", ""},
		{"bse rejected", "BSE", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeSymbol(tt.in); got != tt.want {
				t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeSymbol_FixedPoint(t *testing.T) {
	inputs := []string{"NSE:SBIN-EQ", "m&m.ns", "tcs"}
	for _, in := range inputs {
		once := NormalizeSymbol(in)
		twice := NormalizeSymbol(once)
		if once != twice {
			t.Errorf("normalization not a fixed point: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeSymbols_DedupPreservesOrder(t *testing.T) {
	got := NormalizeSymbols([]string{"SBIN", "sbin", "NSE:TCS", "", "TCS.NS"})
	want := []string{"SBIN", "TCS"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
		}
	}
}

func TestAlertNameVariants(t *testing.T) {
	variants := AlertNameVariants("Morning_Longs")
	found := make(map[string]bool)
	for _, v := range variants {
		found[v] = true
	}
	for _, want := range []string{"Morning_Longs", "morning_longs", "morning longs"} {
		if !found[want] {
			t.Errorf("expected variant %q in %v", want, variants)
		}
	}
}
