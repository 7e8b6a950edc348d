package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"catalog-service/internal/util"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrPermanent marks a download failure that retrying will not fix
var ErrPermanent = errors.New("permanent image failure")

// Image is a downloaded image body
type Image struct {
	Data        []byte
	ContentType string
	SourceURL   string
}

// FetcherConfig tunes retries and outbound throttling
type FetcherConfig struct {
	Attempts      int
	Backoff       time.Duration
	Timeout       time.Duration
	RatePerSecond float64
}

// Fetcher downloads product images with retries
type Fetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	attempts int
	backoff  time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewFetcher creates a fetcher. Zero config values fall back to
// 3 attempts, 1s initial backoff, 30s per attempt and no throttling.
func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &Fetcher{
		client:   &http.Client{},
		limiter:  rate.NewLimiter(limit, 1),
		attempts: cfg.Attempts,
		backoff:  cfg.Backoff,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	switch e.code {
	case http.StatusForbidden:
		return fmt.Sprintf("access forbidden (403), image may be protected: %s", e.url)
	case http.StatusNotFound:
		return fmt.Sprintf("image not found (404): %s", e.url)
	}
	return fmt.Sprintf("HTTP error %d: %s", e.code, e.url)
}

func (e *statusError) Is(target error) bool {
	return target == ErrPermanent && (e.code == http.StatusForbidden || e.code == http.StatusNotFound)
}

func (e *statusError) retryable() bool {
	return e.code >= 500 || e.code == http.StatusTooManyRequests
}

// Fetch downloads the image at rawURL. If the URL serves an HTML page its
// og:image or twitter:image is followed once.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	img, err := f.fetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !isHTML(img.ContentType) {
		return img, nil
	}

	imageURL, err := resolvePageImage(img)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("Resolved page image", zap.String("page", rawURL), zap.String("image", imageURL))

	img, err = f.fetchWithRetry(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	if isHTML(img.ContentType) {
		return nil, fmt.Errorf("%w: %s is not an image", ErrPermanent, imageURL)
	}
	return img, nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, rawURL string) (*Image, error) {
	delay := f.backoff
	var lastErr error

	for attempt := 1; attempt <= f.attempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		img, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return img, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
		if errors.Is(err, ErrPermanent) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == f.attempts {
			break
		}

		f.logger.Warn("Image download failed, retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}

	return nil, fmt.Errorf("failed to download image after %d attempts: %w", f.attempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Image, error) {
	util.ImageFetchAttemptsTotal.Inc()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q in %s", ErrPermanent, req.URL.Scheme, rawURL)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, url: rawURL}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxObjectSize+1))
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &Image{Data: data, ContentType: contentType, SourceURL: resp.Request.URL.String()}, nil
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(contentType, "text/html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// resolvePageImage extracts the preview image URL from an HTML page
func resolvePageImage(page *Image) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var found string
	for _, sel := range []string{
		`meta[property="og:image"]`,
		`meta[property="og:image:url"]`,
		`meta[name="twitter:image"]`,
		`link[rel="image_src"]`,
	} {
		node := doc.Find(sel).First()
		if v, ok := node.Attr("content"); ok && strings.TrimSpace(v) != "" {
			found = strings.TrimSpace(v)
			break
		}
		if v, ok := node.Attr("href"); ok && strings.TrimSpace(v) != "" {
			found = strings.TrimSpace(v)
			break
		}
	}
	if found == "" {
		return "", fmt.Errorf("%w: no image found on page %s", ErrPermanent, page.SourceURL)
	}

	base, err := url.Parse(page.SourceURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	ref, err := url.Parse(found)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	return base.ResolveReference(ref).String(), nil
}
