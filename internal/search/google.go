package search

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	googleAPIURL = "https://www.googleapis.com/customsearch/v1"
	// The API returns at most 10 items per request and 100 per query.
	googlePageSize = 10
	googleMaxTotal = 100
	userAgent      = "spigell/scholarship-hunter"
)

// Google queries the Custom Search JSON API.
type Google struct {
	apiKey     string
	engineID   string
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
	UserAgent  string
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

type googleErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewGoogle(apiKey, engineID string, logger *zap.Logger) *Google {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Google{
		apiKey:   strings.TrimSpace(apiKey),
		engineID: strings.TrimSpace(engineID),
		logger:   logger,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		APIURL:    googleAPIURL,
		UserAgent: userAgent,
	}
}

// Search returns up to limit hits, paging through the API when limit is above 10.
func (g *Google) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if g.apiKey == "" || g.engineID == "" {
		return nil, errors.New("google search api key and engine id are required")
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query must not be empty")
	}

	if limit <= 0 {
		limit = googlePageSize
	}
	limit = min(limit, googleMaxTotal)

	hits := make([]Hit, 0, limit)
	for start := 1; len(hits) < limit; start += googlePageSize {
		num := min(googlePageSize, limit-len(hits))

		page, err := g.page(ctx, query, start, num)
		if err != nil {
			return nil, err
		}

		g.logger.Debug("got response from google search",
			zap.String("query", query),
			zap.Int("start", start),
			zap.Int("items", len(page)),
		)

		hits = append(hits, page...)

		if len(page) < num {
			break
		}
	}

	return hits, nil
}

func (g *Google) page(ctx context.Context, query string, start, num int) ([]Hit, error) {
	q := url.Values{}
	q.Set("key", g.apiKey)
	q.Set("cx", g.engineID)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(num))
	if start > 1 {
		q.Set("start", strconv.Itoa(start))
	}

	var response googleResponse
	if err := g.getJSON(ctx, q, &response); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(response.Items))
	for _, item := range response.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		hits = append(hits, Hit{
			Title:   strings.TrimSpace(item.Title),
			URL:     link,
			Snippet: strings.TrimSpace(item.Snippet),
			Query:   query,
		})
	}

	return hits, nil
}

func (g *Google) getJSON(ctx context.Context, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.APIURL, nil)
	if err != nil {
		return err
	}

	req.Header.Set("User-Agent", g.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.URL.RawQuery = q.Encode()

	// The query carries the api key, so only the path is logged.
	g.logger.Debug("make request", zap.String("url", req.URL.Scheme+"://"+req.URL.Host+req.URL.Path))

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("google search request: %w", err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{
			Provider:   "google",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
		var apiErr googleErrorResponse
		if json.Unmarshal(data, &apiErr) == nil {
			statusErr.Message = apiErr.Error.Message
		}
		return statusErr
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode google search response: %w", err)
	}

	return nil
}
