package crawler

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Allowed reports whether the site of seedURL may be crawled. It only honours
// a blanket "Disallow: /" line and allows crawling whenever robots.txt cannot
// be read.
func (c *Crawler) Allowed(ctx context.Context, seedURL string) bool {
	u, err := url.Parse(seedURL)
	if err != nil || u.Host == "" {
		return true
	}
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	if c.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.FetchTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return true
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("robots.txt unavailable", zap.String("url", robotsURL), zap.Error(err))
		return true
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return true
	}

	scanner := bufio.NewScanner(io.LimitReader(resp.Body, 512<<10))
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "Disallow: /" {
			return false
		}
	}
	return true
}
