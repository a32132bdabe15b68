package tool

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DuckDuckGoSearch scrapes the DuckDuckGo HTML endpoint. It needs no API key,
// which makes it the default research backend.
type DuckDuckGoSearch struct {
	BaseURL    string
	MaxResults int
	UserAgent  string
	client     *http.Client
}

type DuckDuckGoOption func(*DuckDuckGoSearch)

// WithDuckDuckGoBaseURL overrides the endpoint, mainly for tests.
func WithDuckDuckGoBaseURL(baseURL string) DuckDuckGoOption {
	return func(d *DuckDuckGoSearch) {
		d.BaseURL = baseURL
	}
}

// WithDuckDuckGoMaxResults caps the number of results (1-25).
func WithDuckDuckGoMaxResults(n int) DuckDuckGoOption {
	return func(d *DuckDuckGoSearch) {
		if n < 1 {
			n = 1
		}
		if n > 25 {
			n = 25
		}
		d.MaxResults = n
	}
}

// WithDuckDuckGoHTTPClient sets the HTTP client used for requests.
func WithDuckDuckGoHTTPClient(client *http.Client) DuckDuckGoOption {
	return func(d *DuckDuckGoSearch) {
		d.client = client
	}
}

// NewDuckDuckGoSearch creates the search backend.
func NewDuckDuckGoSearch(opts ...DuckDuckGoOption) *DuckDuckGoSearch {
	d := &DuckDuckGoSearch{
		BaseURL:    "https://html.duckduckgo.com/html/",
		MaxResults: 5,
		UserAgent:  "Mozilla/5.0 (compatible; chatd/1.0)",
		client:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Search runs the query and parses the result list out of the HTML page.
func (d *DuckDuckGoSearch) Search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)

	reqURL := fmt.Sprintf("%s?%s", d.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find(".result__a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		results = append(results, Result{
			Title:   title,
			URL:     resolveResultURL(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
		return len(results) < d.MaxResults
	})

	return results, nil
}

// Name returns the name of the tool.
func (d *DuckDuckGoSearch) Name() string {
	return "DuckDuckGo_Search"
}

// Description returns the description of the tool.
func (d *DuckDuckGoSearch) Description() string {
	return "Searches the web with DuckDuckGo. " +
		"Useful for finding current information without an API key. " +
		"Input should be a search query."
}

// Call executes the search and formats hits as plain text.
func (d *DuckDuckGoSearch) Call(ctx context.Context, input string) (string, error) {
	results, err := d.Search(ctx, input)
	if err != nil {
		return "", err
	}
	return formatResults(results), nil
}

// resolveResultURL unwraps DuckDuckGo's redirect links (the uddg parameter)
// into the target URL.
func resolveResultURL(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
