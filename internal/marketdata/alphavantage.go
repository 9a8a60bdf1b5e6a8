package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"TradeSentinel/internal/model"
)

// AlphaVantageProvider implements Provider using the Alpha Vantage REST API.
// Free-tier keys are limited to roughly one request per second, so all calls
// pass through a shared rate limiter.
type AlphaVantageProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	limiter *rate.Limiter
}

// NewAlphaVantageProvider creates a rate-limited Alpha Vantage provider.
func NewAlphaVantageProvider(apiKey, proxyURL string) *AlphaVantageProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &AlphaVantageProvider{
		BaseURL: "https://www.alphavantage.co/query",
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Every(1100*time.Millisecond), 1),
	}
}

func (p *AlphaVantageProvider) Name() string { return "alphavantage" }

func (p *AlphaVantageProvider) formatSymbol(symbol string) string {
	if strings.HasSuffix(strings.ToUpper(symbol), ".L") {
		return symbol
	}
	return symbol + ".L"
}

func (p *AlphaVantageProvider) getJSON(ctx context.Context, params url.Values, out interface{}) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	params.Set("apikey", p.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("alphavantage fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("alphavantage: status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("alphavantage decode: %w", err)
	}
	return nil
}

func (p *AlphaVantageProvider) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", p.formatSymbol(symbol))

	var result struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := p.getJSON(ctx, params, &result); err != nil {
		return model.Quote{}, err
	}
	if len(result.GlobalQuote) == 0 {
		return model.Quote{}, fmt.Errorf("alphavantage: no quote for %s", symbol)
	}

	price, err := strconv.ParseFloat(result.GlobalQuote["05. price"], 64)
	if err != nil {
		return model.Quote{}, fmt.Errorf("alphavantage parse price: %w", err)
	}
	volume, _ := strconv.ParseFloat(result.GlobalQuote["06. volume"], 64)

	return model.Quote{
		Symbol: symbol,
		Price:  price,
		Volume: volume,
		Time:   time.Now(),
	}, nil
}

// GetHistorical fetches daily bars. Alpha Vantage returns either the compact
// window (~100 bars) or the full history; periods longer than 3 months need full.
func (p *AlphaVantageProvider) GetHistorical(ctx context.Context, symbol, period string) ([]model.OHLCV, error) {
	outputSize := "compact"
	if period == "1y" || period == "2y" {
		outputSize = "full"
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", p.formatSymbol(symbol))
	params.Set("outputsize", outputSize)

	var result struct {
		Series map[string]map[string]string `json:"Time Series (Daily)"`
	}
	if err := p.getJSON(ctx, params, &result); err != nil {
		return nil, err
	}
	if len(result.Series) == 0 {
		return nil, fmt.Errorf("alphavantage: no daily series for %s", symbol)
	}

	cutoff := periodStart(period, time.Now())
	bars := make([]model.OHLCV, 0, len(result.Series))
	for date, fields := range result.Series {
		ts, err := time.Parse("2006-01-02", date)
		if err != nil || ts.Before(cutoff) {
			continue
		}
		o, _ := strconv.ParseFloat(fields["1. open"], 64)
		h, _ := strconv.ParseFloat(fields["2. high"], 64)
		l, _ := strconv.ParseFloat(fields["3. low"], 64)
		c, _ := strconv.ParseFloat(fields["4. close"], 64)
		v, _ := strconv.ParseFloat(fields["5. volume"], 64)
		bars = append(bars, model.OHLCV{Time: ts, Open: o, High: h, Low: l, Close: c, Volume: v})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func (p *AlphaVantageProvider) GetMarketStatus(_ context.Context) (model.MarketStatus, error) {
	return londonStatus(time.Now()), nil
}

// periodStart maps a Yahoo-style period string to its start time.
func periodStart(period string, now time.Time) time.Time {
	switch period {
	case "1mo":
		return now.AddDate(0, -1, 0)
	case "3mo":
		return now.AddDate(0, -3, 0)
	case "6mo":
		return now.AddDate(0, -6, 0)
	case "2y":
		return now.AddDate(-2, 0, 0)
	default:
		return now.AddDate(-1, 0, 0)
	}
}
