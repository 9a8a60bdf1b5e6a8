// Package news collects market headlines fed into advisory prompts.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
)

// Headline is a single news item passed into advisory context.
type Headline struct {
	Title     string
	Source    string
	Published time.Time
}

// rss mirrors the subset of the RSS 2.0 schema the feeds actually fill.
type rss struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	PubDate string `xml:"pubDate"`
	Source  struct {
		Text string `xml:",chardata"`
	} `xml:"source"`
}

// Fetcher pulls headlines from configured RSS feeds and the Yahoo Finance
// search API. Feed failures are logged and skipped; headlines are advisory
// color, never a hard dependency of a trading cycle.
type Fetcher struct {
	client   *resty.Client
	feeds    []string
	maxItems int
}

func NewFetcher(feeds []string, maxItems int) *Fetcher {
	if maxItems <= 0 {
		maxItems = 10
	}
	client := resty.New()
	client.SetTimeout(15 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	return &Fetcher{client: client, feeds: feeds, maxItems: maxItems}
}

// Headlines fetches general market headlines from every configured feed.
func (f *Fetcher) Headlines(ctx context.Context) []Headline {
	var out []Headline
	for _, feed := range f.feeds {
		items, err := f.fetchFeed(ctx, feed)
		if err != nil {
			log.Printf("[WARN] news feed %s: %v", feed, err)
			continue
		}
		out = append(out, items...)
		if len(out) >= f.maxItems {
			return out[:f.maxItems]
		}
	}
	return out
}

func (f *Fetcher) fetchFeed(ctx context.Context, url string) ([]Headline, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("status %d", resp.StatusCode())
	}

	var doc rss
	if err := xml.Unmarshal(resp.Body(), &doc); err != nil {
		return nil, fmt.Errorf("parse rss: %w", err)
	}

	var out []Headline
	for _, item := range doc.Channel.Items {
		if item.Title == "" {
			continue
		}
		h := Headline{Title: item.Title, Source: item.Source.Text}
		if h.Source == "" {
			h.Source = doc.Channel.Title
		}
		if ts, err := parsePubDate(item.PubDate); err == nil {
			h.Published = ts
		}
		out = append(out, h)
	}
	return out, nil
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
}

func parsePubDate(s string) (time.Time, error) {
	for _, layout := range pubDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized pubDate %q", s)
}

// yahooSearch mirrors the news portion of the Yahoo Finance search response.
type yahooSearch struct {
	News []struct {
		Title            string `json:"title"`
		Publisher        string `json:"publisher"`
		ProviderPublish  int64  `json:"providerPublishTime"`
	} `json:"news"`
}

// TickerNews fetches recent headlines mentioning one symbol.
func (f *Fetcher) TickerNews(ctx context.Context, symbol string) []Headline {
	var result yahooSearch
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":          symbol,
			"newsCount":  fmt.Sprintf("%d", f.maxItems),
			"quotesCount": "0",
		}).
		SetResult(&result).
		Get("https://query1.finance.yahoo.com/v1/finance/search")
	if err != nil {
		log.Printf("[WARN] ticker news %s: %v", symbol, err)
		return nil
	}
	if resp.IsError() {
		log.Printf("[WARN] ticker news %s: status %d", symbol, resp.StatusCode())
		return nil
	}

	var out []Headline
	for _, n := range result.News {
		if n.Title == "" {
			continue
		}
		out = append(out, Headline{
			Title:     n.Title,
			Source:    n.Publisher,
			Published: time.Unix(n.ProviderPublish, 0).UTC(),
		})
		if len(out) >= f.maxItems {
			break
		}
	}
	return out
}

// Titles flattens headlines into prompt-ready strings.
func Titles(headlines []Headline) []string {
	out := make([]string, 0, len(headlines))
	for _, h := range headlines {
		if h.Source != "" {
			out = append(out, fmt.Sprintf("%s (%s)", h.Title, h.Source))
			continue
		}
		out = append(out, h.Title)
	}
	return out
}
