package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/spigell/scholarship-hunter/internal/utils"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultMaxChars  = 8000
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	ModeText     = "text"
	ModeMarkdown = "markdown"

	// Bodies larger than this are cut before parsing.
	maxBodyBytes = 5 << 20
)

const strippedElements = "script, style, nav, footer, header, noscript"

// HTTPError represents a non-2xx answer from the page host.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// Config controls how pages are downloaded and reduced to text.
type Config struct {
	Timeout   time.Duration
	MaxChars  int
	Mode      string
	UserAgent string
}

// Fetcher downloads a page and returns its visible text.
type Fetcher struct {
	client    *http.Client
	maxChars  int
	mode      string
	userAgent string
	converter *md.Converter
	logger    *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode != ModeMarkdown {
		mode = ModeText
	}

	return &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		maxChars:  cfg.MaxChars,
		mode:      mode,
		userAgent: cfg.UserAgent,
		converter: md.NewConverter("", true, nil),
		logger:    logger,
	}
}

// WithHTTPClient replaces the underlying client. Used by tests.
func (f *Fetcher) WithHTTPClient(client *http.Client) *Fetcher {
	f.client = client
	return f
}

// Fetch returns the cleaned page text, truncated to the configured number of characters.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(strippedElements).Remove()

	var text string
	if f.mode == ModeMarkdown {
		text = f.converter.Convert(doc.Find("body"))
		if strings.TrimSpace(text) == "" {
			text = f.converter.Convert(doc.Selection)
		}
		text = strings.TrimSpace(text)
	} else {
		text = utils.CollapseSpaces(visibleText(doc.Nodes...))
	}

	text = truncate(strings.ToValidUTF8(text, ""), f.maxChars)

	f.logger.Debug("scraped page",
		zap.String("url", url),
		zap.String("mode", f.mode),
		zap.Int("chars", len([]rune(text))),
	)

	return text, nil
}

// visibleText joins every text node with a space separator.
func visibleText(nodes ...*html.Node) string {
	var b strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				b.WriteString(s)
				b.WriteByte(' ')
			}
		case html.CommentNode:
			return
		case html.ElementNode:
			if n.Data == "head" || n.Data == "template" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range nodes {
		walk(n)
	}

	return b.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
