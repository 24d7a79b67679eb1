// Package ophim talks to the OPhim catalog API: paginated movie lists and
// per-slug movie details.
package ophim

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly"
)

const (
	DefaultBaseURL   = "https://ophim1.com"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	DefaultTimeout   = 30 * time.Second

	listPath   = "danh-sach/phim-moi-cap-nhat"
	detailPath = "phim"
)

// Config holds the client settings. Zero values fall back to the defaults.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Debug     bool
}

// Client fetches catalog pages. It does no caching, no retrying and no rate
// limiting; callers wrap each call with the resilience helpers.
//
// The context is checked before each request. colly cannot abort a request
// that is already on the wire, so a cancelled call returns once that request
// completes or Config.Timeout expires.
type Client struct {
	collector *colly.Collector
	baseURL   *url.URL
	debug     bool
}

// NewClient creates a catalog client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog base URL %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("catalog base URL must be http or https: %q", base)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := colly.NewCollector(
		colly.UserAgent(ua),
		// retries hit the same URL again
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)

	return &Client{collector: c, baseURL: u, debug: cfg.Debug}, nil
}

// ListURL returns the list endpoint URL for a page.
func (c *Client) ListURL(page int) string {
	u := *c.baseURL
	u.Path = path.Join("/", u.Path, listPath)
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// DetailURL returns the detail endpoint URL for a slug.
func (c *Client) DetailURL(slug string) string {
	u := *c.baseURL
	u.Path = path.Join("/", u.Path, detailPath, slug)
	u.RawPath = ""
	return u.String()
}

// FetchMovieList fetches one page of the catalog.
func (c *Client) FetchMovieList(ctx context.Context, page int) (*ListPage, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be >= 1, got %d", page)
	}

	target := c.ListURL(page)
	body, err := c.get(ctx, target)
	if err != nil {
		return nil, err
	}

	var resp ListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DecodeError{URL: target, Err: err}
	}

	return &ListPage{
		Page:       page,
		Items:      resp.Items,
		PathImage:  resp.PathImage,
		TotalItems: resp.Pagination.TotalItems,
		TotalPages: resp.Pagination.TotalPages,
	}, nil
}

// FetchMovieDetail fetches the full payload of one movie.
func (c *Client) FetchMovieDetail(ctx context.Context, slug string) (*MovieDetail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("slug must not be empty")
	}

	target := c.DetailURL(slug)
	body, err := c.get(ctx, target)
	if err != nil {
		return nil, err
	}

	var detail MovieDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, &DecodeError{URL: target, Err: err}
	}
	if !detail.Status {
		return nil, &APIError{URL: target, Msg: detail.Msg}
	}
	return &detail, nil
}

// get performs one GET on a cloned collector so callbacks never pile up on
// the shared one.
func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	col := c.collector.Clone()

	var (
		body      []byte
		statusErr error
	)

	col.OnRequest(func(r *colly.Request) {
		if c.debug {
			log.Println("Visiting:", r.URL)
		}
	})

	col.OnResponse(func(r *colly.Response) {
		body = r.Body
		if c.debug {
			log.Println("Response received:", r.StatusCode, len(r.Body), "bytes")
		}
	})

	col.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			statusErr = &HTTPStatusError{URL: target, StatusCode: r.StatusCode}
		}
	})

	if err := col.Visit(target); err != nil {
		if statusErr != nil {
			return nil, statusErr
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	if statusErr != nil {
		return nil, statusErr
	}
	return body, nil
}
