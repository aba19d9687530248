package rates

import (
	"github.com/shopspring/decimal"

	"ledgersync/internal/currency"
)

// Convert converts amount from one currency to another using table. It tries
// the direct pair, the inverse pair, a pivot through COP or USD, and finally
// the fallback table. An unsupported currency leaves the amount unchanged.
// The result is rounded to the precision of to.
func Convert(table Table, amount float64, from, to currency.Code) float64 {
	if from == to || !currency.IsSupported(string(from)) || !currency.IsSupported(string(to)) {
		return amount
	}
	converted := convert(table, decimal.NewFromFloat(amount), from, to)
	return currency.Round(converted, to).InexactFloat64()
}

func convert(table Table, amount decimal.Decimal, from, to currency.Code) decimal.Decimal {
	if from == to {
		return amount
	}
	if v, ok := lookup(table, from, to); ok {
		return v.Mul(amount)
	}
	if v, ok := lookup(table, to, from); ok {
		return amount.Div(v)
	}

	pivot := currency.USD
	if _, ok := lookup(table, from, currency.COP); ok {
		pivot = currency.COP
	}
	if from != pivot && to != pivot {
		return convert(table, convert(table, amount, from, pivot), pivot, to)
	}
	return convertFallback(amount, from, to)
}

func convertFallback(amount decimal.Decimal, from, to currency.Code) decimal.Decimal {
	table := FallbackRates()
	if v, ok := lookup(table, from, to); ok {
		return v.Mul(amount)
	}
	if v, ok := lookup(table, to, from); ok {
		return amount.Div(v)
	}
	if from != currency.COP && to != currency.COP {
		return convertFallback(convertFallback(amount, from, currency.COP), currency.COP, to)
	}
	return amount
}

func lookup(table Table, from, to currency.Code) (decimal.Decimal, bool) {
	v, ok := table[Pair(from, to)]
	if !ok || v == 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(v), true
}
