package knowledge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// wikipediaBaseURL is the REST v1 page-summary endpoint.
const wikipediaBaseURL = "https://en.wikipedia.org/api/rest_v1/page/summary/"

// lookupTimeout bounds every external lookup. There is no cancellation
// model beyond this: a dispatched lookup runs to completion or times out.
const lookupTimeout = 10 * time.Second

// Wikipedia looks up topic summaries via the Wikipedia REST API. It
// requires no credentials and is enabled by default.
type Wikipedia struct {
	logger     *slog.Logger
	baseURL    string
	enabled    bool
	httpClient *http.Client
}

// NewWikipedia creates the Wikipedia source.
func NewWikipedia(logger *slog.Logger) *Wikipedia {
	return &Wikipedia{
		logger:  logger,
		baseURL: wikipediaBaseURL,
		enabled: true,
		httpClient: &http.Client{
			Timeout: lookupTimeout,
		},
	}
}

func (w *Wikipedia) Name() string { return "wikipedia" }

// wikipediaSummary is the subset of the REST response we keep.
type wikipediaSummary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Lookup fetches a page summary. Any transport or decode failure, and
// any non-200 status, degrades to LookupNotFound.
func (w *Wikipedia) Lookup(ctx context.Context, topic string) (map[string]any, LookupStatus) {
	if !w.enabled {
		return nil, LookupDisabled
	}

	// Wikipedia page titles use underscores for spaces.
	page := strings.ReplaceAll(strings.TrimSpace(topic), " ", "_")
	reqURL := w.baseURL + url.PathEscape(page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		w.logger.Warn("wikipedia: build request", "topic", topic, "error", err)
		return nil, LookupNotFound
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Warn("wikipedia: request failed", "topic", topic, "error", err)
		return nil, LookupNotFound
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, LookupNotFound
	}

	var summary wikipediaSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		w.logger.Warn("wikipedia: decode response", "topic", topic, "error", err)
		return nil, LookupNotFound
	}

	return map[string]any{
		"title":     summary.Title,
		"extract":   summary.Extract,
		"summary":   truncate(summary.Extract, 300),
		"url":       summary.ContentURLs.Desktop.Page,
		"timestamp": time.Now().Format(time.RFC3339),
	}, LookupSuccess
}

func (w *Wikipedia) configure(opts SourceOptions) {
	if opts.Enabled != nil {
		w.enabled = *opts.Enabled
	}
}
