// Package scraper mirrors a documentation website into a local directory
// tree that the loader can ingest.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/loader"
)

const maxPageSize = 10 << 20

type ScraperConfig struct {
	BaseURL           string
	MaxDepth          int
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
}

// Page is one fetched HTML page.
type Page struct {
	URL   string
	Depth int
	Body  []byte
}

type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	limiter  *rate.Limiter
	baseHost string
	logger   *zap.Logger
}

func NewWithConfig(config ScraperConfig, logger *zap.Logger) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, types.Wrap(types.ErrConfiguration, "scraper", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, types.Wrap(types.ErrConfiguration, "scraper", fmt.Errorf("base URL must be http or https, got %q", config.BaseURL))
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
		logger:   logger,
	}, nil
}

func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	// Check if URL is from the same host
	if parsedURL.Host != s.baseHost {
		return false
	}

	// The last path segment must either have no extension or an allowed one.
	p := strings.ToLower(parsedURL.Path)
	validExt := false
	for _, allowedExt := range s.config.AllowedExtensions {
		switch {
		case allowedExt == "" && path.Ext(p) == "":
			validExt = true
		case allowedExt != "" && strings.HasSuffix(p, allowedExt):
			validExt = true
		}
	}
	if !validExt {
		return false
	}

	// Check ignore patterns
	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

// Scrape crawls breadth-first from the base URL, following same-host links
// up to MaxDepth. Pages that fail are yielded as errors and crawling
// continues.
func (s *Scraper) Scrape(ctx context.Context) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		type item struct {
			url   string
			depth int
		}

		start := normalize(s.config.BaseURL)
		visited := map[string]bool{start: true}
		queue := []item{{start, 0}}

		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]

			if err := ctx.Err(); err != nil {
				yield(Page{}, err)
				return
			}
			if s.config.OnProgress != nil {
				s.config.OnProgress(current.url)
			}

			page, links, err := s.fetch(ctx, current.url)
			if err != nil {
				s.logger.Warn("failed to fetch page", zap.String("url", current.url), zap.Error(err))
				if !yield(Page{}, err) {
					return
				}
				continue
			}
			page.Depth = current.depth
			if !yield(page, nil) {
				return
			}

			if current.depth >= s.config.MaxDepth {
				continue
			}
			for _, link := range links {
				if visited[link] || !s.shouldProcessURL(link) {
					continue
				}
				visited[link] = true
				queue = append(queue, item{link, current.depth + 1})
			}
		}
	}
}

func (s *Scraper) fetch(ctx context.Context, urlStr string) (Page, []string, error) {
	// Apply rate limiting
	if err := s.limiter.Wait(ctx); err != nil {
		return Page{}, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return Page{}, nil, types.WrapPath(types.ErrFileRead, "fetch", urlStr, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Page{}, nil, types.WrapPath(types.ErrFileRead, "fetch", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, nil, types.WrapPath(types.ErrFileRead, "fetch", urlStr,
			fmt.Errorf("received status code %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return Page{}, nil, types.WrapPath(types.ErrFileRead, "fetch", urlStr, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, nil, types.WrapPath(types.ErrParse, "parse", urlStr, err)
	}

	base, _ := url.Parse(urlStr)
	var links []string
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		// Make sure the URL is absolute
		links = append(links, normalize(base.ResolveReference(ref).String()))
	})

	return Page{URL: urlStr, Body: body}, links, nil
}

// normalize drops fragments so #anchors on one page are fetched once.
func normalize(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// PagePath maps a page URL to a .txt file under root, mirroring the URL
// path: https://docs.example.com/api/visit -> root/docs.example.com/api/visit.txt
func PagePath(root, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}

	p := strings.Trim(path.Clean("/"+u.Path), "/")
	if p == "" || strings.HasSuffix(u.Path, "/") {
		p = path.Join(p, "index")
	}
	p = strings.TrimSuffix(p, path.Ext(p)) + ".txt"

	return filepath.Join(root, u.Host, filepath.FromSlash(p)), nil
}

// MirrorResult summarises a Mirror run.
type MirrorResult struct {
	Written int
	Errors  []error
}

// Mirror crawls the site and writes the main text of every page under root
// as a .txt file. Pages without text are skipped.
func (s *Scraper) Mirror(ctx context.Context, root string) (*MirrorResult, error) {
	result := &MirrorResult{}
	extract := loader.HTMLStrategy{}

	for page, err := range s.Scrape(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Errors = append(result.Errors, err)
			continue
		}

		texts, err := extract.Parse(page.Body)
		if err != nil {
			result.Errors = append(result.Errors, types.WrapPath(types.ErrParse, "extract", page.URL, err))
			continue
		}
		if len(texts) == 0 || strings.TrimSpace(texts[0]) == "" {
			continue
		}

		dest, err := PagePath(root, page.URL)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return result, fmt.Errorf("failed to create directory: %w", err)
		}
		if err := os.WriteFile(dest, []byte(texts[0]+"\n"), 0644); err != nil {
			return result, fmt.Errorf("failed to write page: %w", err)
		}
		result.Written++
		s.logger.Debug("mirrored page", zap.String("url", page.URL), zap.String("path", dest))
	}

	return result, nil
}
