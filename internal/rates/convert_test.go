package rates

import (
	"testing"

	"ledgersync/internal/currency"
)

func TestConvert(t *testing.T) {
	table := Table{
		"USD_COP": 4000,
		"BTC_USD": 50000,
		"EUR_COP": 4400,
	}

	tests := []struct {
		name     string
		amount   float64
		from, to currency.Code
		want     float64
	}{
		{"same_currency", 12.345, currency.USD, currency.USD, 12.345},
		{"direct", 10, currency.USD, currency.COP, 40000},
		{"inverse", 40000, currency.COP, currency.USD, 10},
		{"inverse_rounds_to_target", 10000, currency.COP, currency.USD, 2.5},
		{"pivot_through_cop", 100, currency.EUR, currency.USD, 110},
		{"pivot_through_usd", 0.5, currency.BTC, currency.COP, 100_000_000},
		{"fallback_table", 2, currency.ETH, currency.USD, 5609.76},
		{"cop_precision", 1.23456, currency.USD, currency.COP, 4938},
		{"unknown_pair_unchanged", 7, currency.Code("XAU"), currency.COP, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Convert(table, tt.amount, tt.from, tt.to); got != tt.want {
				t.Errorf("Convert(%v %s -> %s) = %v, want %v", tt.amount, tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestConvert_EmptyTableUsesFallback(t *testing.T) {
	if got := Convert(nil, 1, currency.USD, currency.COP); got != 4100 {
		t.Errorf("got %v, want 4100", got)
	}
	if got := Convert(Table{}, 4450, currency.COP, currency.EUR); got != 1 {
		t.Errorf("got %v, want 1", got)
	}
}
