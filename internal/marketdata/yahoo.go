package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"TradeSentinel/internal/model"
)

// YahooProvider implements Provider using the Yahoo Finance public chart API.
type YahooProvider struct {
	Client *http.Client
	Suffix string // exchange suffix appended to bare symbols, e.g. ".L" for LSE
}

// NewYahooProvider creates a new Yahoo Finance provider with optional proxy support.
func NewYahooProvider(proxyURL string) *YahooProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooProvider{
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		Suffix: ".L",
	}
}

func (p *YahooProvider) Name() string { return "yahoo" }

func (p *YahooProvider) formatSymbol(symbol string) string {
	if p.Suffix == "" || strings.HasSuffix(strings.ToUpper(symbol), strings.ToUpper(p.Suffix)) {
		return symbol
	}
	return symbol + p.Suffix
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func (p *YahooProvider) fetchChart(ctx context.Context, symbol, interval, rng string) ([]model.OHLCV, error) {
	u := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?interval=%s&range=%s",
		url.PathEscape(p.formatSymbol(symbol)), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	return chartBars(&chart, symbol)
}

// chartBars converts a decoded chart response into ordered bars. The API does
// not guarantee the per-field arrays cover every timestamp, so the walk is
// bounded by the shortest series.
func chartBars(chart *yahooChart, symbol string) ([]model.OHLCV, error) {
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned for %s", symbol)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no quote series for %s", symbol)
	}
	quote := result.Indicators.Quote[0]

	n := len(result.Timestamp)
	for _, series := range [][]interface{}{quote.Open, quote.High, quote.Low, quote.Close, quote.Volume} {
		if len(series) < n {
			n = len(series)
		}
	}
	bars := make([]model.OHLCV, 0, n)

	for i, ts := range result.Timestamp[:n] {
		o := toFloat(quote.Open[i])
		h := toFloat(quote.High[i])
		l := toFloat(quote.Low[i])
		c := toFloat(quote.Close[i])
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: toFloat(quote.Volume[i]),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// GetHistorical fetches daily bars for the given Yahoo range string
// ("1mo", "3mo", "6mo", "1y", "2y").
func (p *YahooProvider) GetHistorical(ctx context.Context, symbol, period string) ([]model.OHLCV, error) {
	switch period {
	case "1mo", "3mo", "6mo", "1y", "2y":
	default:
		period = "1y"
	}
	return p.fetchChart(ctx, symbol, "1d", period)
}

func (p *YahooProvider) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	bars, err := p.fetchChart(ctx, symbol, "1d", "5d")
	if err != nil {
		return model.Quote{}, err
	}
	if len(bars) == 0 {
		return model.Quote{}, fmt.Errorf("yahoo: no price data for %s", symbol)
	}
	last := bars[len(bars)-1]
	return model.Quote{
		Symbol: symbol,
		Price:  last.Close,
		Volume: last.Volume,
		Time:   last.Time,
	}, nil
}

func (p *YahooProvider) GetMarketStatus(_ context.Context) (model.MarketStatus, error) {
	return londonStatus(time.Now()), nil
}
