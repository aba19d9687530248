// Package currency holds the fixed currency set of the ledger, the precision
// table for each code, and rounding and display helpers built on it.
package currency

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Code is a currency code from the supported set.
type Code string

// Supported currencies.
const (
	COP  Code = "COP"
	USD  Code = "USD"
	EUR  Code = "EUR"
	USDT Code = "USDT"
	BTC  Code = "BTC"
	ETH  Code = "ETH"
)

// DefaultPrecision applies to any code outside the table.
const DefaultPrecision int32 = 2

var precisions = map[Code]int32{
	COP:  0,
	USD:  2,
	EUR:  2,
	USDT: 6,
	BTC:  8,
	ETH:  18,
}

var cryptoSymbols = map[Code]string{
	USDT: "USDT",
	BTC:  "₿",
	ETH:  "Ξ",
}

// All returns the supported codes in display order.
func All() []Code {
	return []Code{COP, USD, EUR, USDT, BTC, ETH}
}

// IsSupported reports whether s names a supported currency.
func IsSupported(s string) bool {
	_, ok := precisions[Code(s)]
	return ok
}

// IsCrypto reports whether c is one of the digital assets.
func IsCrypto(c Code) bool {
	_, ok := cryptoSymbols[c]
	return ok
}

// Precision returns the number of decimal places used for c.
func Precision(c Code) int32 {
	if p, ok := precisions[c]; ok {
		return p
	}
	return DefaultPrecision
}

// Step returns the smallest representable amount of c.
func Step(c Code) decimal.Decimal {
	return decimal.New(1, -Precision(c))
}

// Round rounds amount half away from zero to the precision of c.
func Round(amount decimal.Decimal, c Code) decimal.Decimal {
	return amount.Round(Precision(c))
}

// RoundFloat is Round for callers holding float64 amounts.
func RoundFloat(amount float64, c Code) float64 {
	return Round(decimal.NewFromFloat(amount), c).InexactFloat64()
}

// Format renders amount for display. Fiat codes use the go-money symbol and
// separators at the ledger's precision; digital assets show fewer decimals the
// larger the amount is.
func Format(amount float64, c Code) string {
	if symbol, ok := cryptoSymbols[c]; ok {
		return symbol + " " + formatCrypto(decimal.NewFromFloat(amount), c)
	}

	cur := money.GetCurrency(string(c))
	if cur == nil {
		return string(c) + " " + decimal.NewFromFloat(amount).StringFixed(DefaultPrecision)
	}

	p := Precision(c)
	minor := Round(decimal.NewFromFloat(amount), c).Shift(p).IntPart()
	f := money.NewFormatter(int(p), cur.Decimal, cur.Thousand, cur.Grapheme, cur.Template)
	return f.Format(minor)
}

func formatCrypto(amount decimal.Decimal, c Code) string {
	p := Precision(c)
	abs := amount.Abs()

	var shown int32
	switch {
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1)):
		shown = min(2, p)
	case abs.GreaterThanOrEqual(decimal.New(1, -2)):
		shown = min(4, p)
	case abs.GreaterThanOrEqual(decimal.New(1, -4)):
		shown = min(6, p)
	default:
		shown = p
	}

	s := amount.Round(shown).StringFixed(shown)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}
