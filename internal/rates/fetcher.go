// Package rates fetches market exchange rates, caches them, and converts
// amounts between the supported currencies.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"ledgersync/internal/currency"
	"ledgersync/internal/logger"
)

const (
	defaultFiatURL   = "https://api.exchangerate-api.com/v4/latest/USD"
	defaultCryptoURL = "https://api.coingecko.com/api/v3/simple/price"

	// DefaultTimeout bounds each upstream request.
	DefaultTimeout = 10 * time.Second
)

// Table maps "FROM_TO" pair keys to the price of one FROM in TO.
type Table map[string]float64

// Pair returns the key of the from/to pair.
func Pair(from, to currency.Code) string {
	return string(from) + "_" + string(to)
}

// Clone returns a copy of t.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// FallbackRates is the fixed table used when the providers are unreachable.
func FallbackRates() Table {
	return Table{
		"USD_COP":  4100,
		"EUR_COP":  4450,
		"USDT_COP": 4100,
		"BTC_COP":  295_000_000,
		"ETH_COP":  11_500_000,
	}
}

var coinGeckoIDs = map[currency.Code]string{
	currency.BTC:  "bitcoin",
	currency.ETH:  "ethereum",
	currency.USDT: "tether",
}

// Fetcher queries the fiat and crypto rate providers.
type Fetcher struct {
	httpClient *http.Client
	fiatURL    string // overridable for tests
	cryptoURL  string // overridable for tests
	timeout    time.Duration
	log        *zap.SugaredLogger
}

// NewFetcher creates a Fetcher. A non-positive timeout uses DefaultTimeout.
func NewFetcher(httpClient *http.Client, timeout time.Duration) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		httpClient: httpClient,
		fiatURL:    defaultFiatURL,
		cryptoURL:  defaultCryptoURL,
		timeout:    timeout,
		log:        logger.Named("rates"),
	}
}

// Fetch returns the live table. The crypto provider is only queried for the
// digital assets among currencies.
func (f *Fetcher) Fetch(ctx context.Context, currencies []currency.Code) (Table, error) {
	table := Table{}
	if err := f.fetchFiat(ctx, table); err != nil {
		return nil, err
	}

	var ids []string
	for _, c := range currencies {
		if id, ok := coinGeckoIDs[c]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		if err := f.fetchCrypto(ctx, ids, table); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// FetchRates is Fetch that never fails: on any error it logs and returns the
// fallback table.
func (f *Fetcher) FetchRates(ctx context.Context, currencies []currency.Code) Table {
	table, err := f.Fetch(ctx, currencies)
	if err != nil {
		f.log.Warnw("Rate fetch failed, using fallback rates", "error", err)
		return FallbackRates()
	}
	return table
}

type fiatResponse struct {
	Rates map[string]float64 `json:"rates"`
}

func (f *Fetcher) fetchFiat(ctx context.Context, table Table) error {
	var body fiatResponse
	if err := f.getJSON(ctx, f.fiatURL, &body); err != nil {
		return fmt.Errorf("fiat rates: %w", err)
	}

	cop := body.Rates[string(currency.COP)]
	if cop > 0 {
		table[Pair(currency.USD, currency.COP)] = cop
		if eur := body.Rates[string(currency.EUR)]; eur > 0 {
			table[Pair(currency.EUR, currency.COP)] = cop / eur
		}
	}
	return nil
}

func (f *Fetcher) fetchCrypto(ctx context.Context, ids []string, table Table) error {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "cop,usd")

	var body map[string]map[string]float64
	if err := f.getJSON(ctx, f.cryptoURL+"?"+q.Encode(), &body); err != nil {
		return fmt.Errorf("crypto rates: %w", err)
	}

	for code, id := range coinGeckoIDs {
		prices, ok := body[id]
		if !ok {
			continue
		}
		if v := prices["cop"]; v > 0 {
			table[Pair(code, currency.COP)] = v
		}
		if v := prices["usd"]; v > 0 {
			table[Pair(code, currency.USD)] = v
		}
	}
	return nil
}

func (f *Fetcher) getJSON(ctx context.Context, rawURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
