package crawler

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/extraction"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

// maxBodyBytes caps how much of a single page is read.
const maxBodyBytes = 10 << 20

// Options tunes a Crawler.
//
// UserAgent:     sent with every request.
// Delay:         minimum spacing between two fetches of one scrape.
// FetchTimeout:  per-request timeout.
// RespectRobots: consult robots.txt before crawling a site in ScrapeSites.
type Options struct {
	UserAgent     string
	Delay         time.Duration
	FetchTimeout  time.Duration
	RespectRobots bool
}

// Crawler walks websites breadth-first and turns their pages into documents.
type Crawler struct {
	client *http.Client
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

func New(client *http.Client, opts Options, logger *zap.Logger) *Crawler {
	if client == nil {
		client = &http.Client{}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "RAGBot/1.0 (Educational Purpose)"
	}
	return &Crawler{client: client, opts: opts, logger: logger.Named("crawler"), now: time.Now}
}

// Session holds the content hashes seen during one ingestion run so a page
// reachable from several seeds is emitted once.
type Session struct {
	c      *Crawler
	mu     sync.Mutex
	hashes map[string]string
}

// NewSession starts an empty dedupe scope.
func (c *Crawler) NewSession() *Session {
	return &Session{c: c, hashes: make(map[string]string)}
}

// Scrape crawls seedURL in a fresh session.
func (c *Crawler) Scrape(ctx context.Context, seedURL string, maxPages int) ([]models.Document, error) {
	return c.NewSession().Scrape(ctx, seedURL, maxPages)
}

// SiteResult is the outcome of crawling one seed in ScrapeSites.
type SiteResult struct {
	Seed      string
	Documents []models.Document
	Skipped   bool
	Err       error
}

// ScrapeSites crawls each seed in order within a single session. onSite, if
// non-nil, is called after every seed with its 1-based position.
func (c *Crawler) ScrapeSites(ctx context.Context, seeds []string, maxPages int, onSite func(done, total int, res SiteResult)) []SiteResult {
	s := c.NewSession()
	results := make([]SiteResult, 0, len(seeds))
	for i, seed := range seeds {
		res := SiteResult{Seed: seed}
		if c.opts.RespectRobots && !c.Allowed(ctx, seed) {
			c.logger.Info("robots.txt disallows crawling", zap.String("seed", seed))
			res.Skipped = true
		} else {
			res.Documents, res.Err = s.Scrape(ctx, seed, maxPages)
		}
		results = append(results, res)
		if onSite != nil {
			onSite(i+1, len(seeds), res)
		}
	}
	return results
}

// Scrape performs a breadth-first crawl of seedURL, following only links on
// the seed's scheme and host under its path, until the frontier is empty or
// maxPages URLs have been visited. Fetch failures are logged and skipped; the
// returned error is only set for an unusable seed or a cancelled context.
func (s *Session) Scrape(ctx context.Context, seedURL string, maxPages int) ([]models.Document, error) {
	seed, err := url.Parse(seedURL)
	if err != nil || (seed.Scheme != "http" && seed.Scheme != "https") || seed.Host == "" {
		return nil, fmt.Errorf("invalid seed url %q", seedURL)
	}
	c := s.c
	log := c.logger.With(zap.String("seed", seedURL))

	limit := rate.Inf
	if c.opts.Delay > 0 {
		limit = rate.Every(c.opts.Delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var (
		docs     []models.Document
		frontier = []string{seedURL}
		queued   = map[string]bool{seedURL: true}
		visited  = make(map[string]bool)
		fetched  int
	)
	for len(frontier) > 0 && fetched < maxPages {
		pageURL := frontier[0]
		frontier = frontier[1:]

		normalized := normalize(pageURL)
		if visited[pageURL] || visited[normalized] {
			continue
		}
		visited[pageURL] = true
		visited[normalized] = true
		fetched++

		if err := limiter.Wait(ctx); err != nil {
			return docs, err
		}

		body, err := c.fetch(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return docs, ctx.Err()
			}
			log.Warn("skipping page", zap.String("url", pageURL), zap.Error(err))
			continue
		}

		page, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			log.Warn("unparsable page", zap.String("url", pageURL), zap.Error(err))
			continue
		}

		for _, link := range links(page, pageURL, seed) {
			if !visited[link] && !queued[link] {
				queued[link] = true
				frontier = append(frontier, link)
			}
		}

		doc, err := s.parse(page, pageURL)
		switch {
		case errors.Is(err, core.ErrDuplicateContent):
			log.Debug("duplicate content", zap.String("url", pageURL), zap.Error(err))
		case err != nil:
			log.Debug("no content", zap.String("url", pageURL), zap.Error(err))
		default:
			docs = append(docs, *doc)
		}
	}

	log.Info("scraped site", zap.Int("pages_visited", fetched), zap.Int("documents", len(docs)))
	return docs, nil
}

var errEmptyPage = errors.New("empty page")

// parse strips boilerplate, extracts the main content and registers its hash.
// It mutates page.
func (s *Session) parse(page *goquery.Document, pageURL string) (*models.Document, error) {
	title := strings.TrimSpace(page.Find("title").First().Text())
	description, _ := page.Find(`meta[name="description"]`).First().Attr("content")
	canonical := pageURL
	if href, ok := page.Find(`link[rel="canonical"]`).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		canonical = resolve(pageURL, strings.TrimSpace(href))
	}

	page.Find("script, style, nav, footer").Remove()
	main := page.Find("main").First()
	if main.Length() == 0 {
		main = page.Find("article").First()
	}
	if main.Length() == 0 {
		main = page.Find("body").First()
	}
	if main.Length() == 0 {
		return nil, errEmptyPage
	}

	text := visibleText(main)
	if text == "" {
		return nil, errEmptyPage
	}

	sum := md5.Sum([]byte(text))
	hash := hex.EncodeToString(sum[:])

	s.mu.Lock()
	original, dup := s.hashes[hash]
	if !dup {
		s.hashes[hash] = pageURL
	}
	s.mu.Unlock()
	if dup {
		return nil, fmt.Errorf("%s matches %s: %w", pageURL, original, core.ErrDuplicateContent)
	}

	domain := ""
	if u, err := url.Parse(pageURL); err == nil {
		domain = u.Host
	}

	return &models.Document{
		Text: text,
		Metadata: map[string]any{
			"source":        pageURL,
			"title":         title,
			"description":   strings.TrimSpace(description),
			"source_type":   "web",
			"file_type":     "html",
			"domain":        domain,
			"canonical_url": canonical,
			"content_hash":  hash,
			"scraped_at":    s.c.now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// fetch GETs pageURL and returns its body if the response is a successful
// HTML document.
func (c *Crawler) fetch(ctx context.Context, pageURL string) (string, error) {
	if c.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.FetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrFetchFailure, err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrFetchFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", core.ErrFetchFailure, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err == nil && mediaType != "text/html" && mediaType != "application/xhtml+xml" {
			return "", fmt.Errorf("%w: content type %s", core.ErrFetchFailure, mediaType)
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", core.ErrFetchFailure, err)
	}
	return string(body), nil
}

// visibleText joins every text node under sel with spaces and collapses the
// whitespace.
func visibleText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return extraction.CleanText(strings.Join(parts, " "))
}

// links returns the absolute, fragment-free targets of page's anchors that
// stay on the seed's scheme and host and start with its path.
func links(page *goquery.Document, pageURL string, seed *url.URL) []string {
	var out []string
	page.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		abs := resolve(pageURL, href)
		if withinSeed(abs, seed) {
			out = append(out, abs)
		}
	})
	return out
}

// withinSeed reports whether raw has the seed's scheme and host (compared
// case-insensitively) and a path under the seed's path.
func withinSeed(raw string, seed *url.URL) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, seed.Scheme) || !strings.EqualFold(u.Host, seed.Host) {
		return false
	}
	return strings.HasPrefix(u.EscapedPath(), seed.EscapedPath())
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	abs := b.ResolveReference(r)
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String()
}

// normalize reduces a URL to scheme://host/path.
func normalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Scheme + "://" + u.Host + u.Path
}
