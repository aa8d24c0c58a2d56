// Package comms ingests notices from the national communication feed:
// it pages through the feed, deduplicates by content hash and links each
// notice to a unified case, creating stub cases for unknown lawsuits.
package comms

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/courtcapture/internal/logger"
)

// FeedPageSize is the fixed page size of the national feed contract.
const FeedPageSize = 100

const feedMaxBodyBytes = 20 * 1024 * 1024

// Notice is one communication retrieved from the feed.
type Notice struct {
	Hash       string
	CaseNumber string
	Court      string
	OrganName  string
	Text       string
	NoticedAt  time.Time
}

// ContentHash returns the feed-supplied hash, deriving one from the
// notice content when the feed omitted it.
func (n *Notice) ContentHash() string {
	if n.Hash != "" {
		return n.Hash
	}
	sum := sha256.Sum256([]byte(n.CaseNumber + "|" + n.Text + "|" + n.NoticedAt.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(sum[:])
}

type feedItem struct {
	Hash        string `json:"hash"`
	CaseNumber  string `json:"numero_processo"`
	Court       string `json:"siglaTribunal"`
	OrganName   string `json:"nomeOrgao"`
	Text        string `json:"texto"`
	AvailableAt string `json:"data_disponibilizacao"`
}

type feedResponse struct {
	Count int        `json:"count"`
	Items []feedItem `json:"items"`
}

// FeedClientConfig configures the feed client.
type FeedClientConfig struct {
	BaseURL        string
	RequestDelay   time.Duration
	RequestTimeout time.Duration
	UserAgent      string
}

// FeedClient pages through the national communication feed. The feed is
// public but rate-limited; requests are throttled client-side.
type FeedClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	userAgent  string
	log        logger.Interface
}

// NewFeedClient creates a feed client.
func NewFeedClient(cfg FeedClientConfig, log logger.Interface) *FeedClient {
	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &FeedClient{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Every(delay), 1),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		log:        log.WithComponent("comms"),
	}
}

// Fetch retrieves every notice matching the filters, walking the feed
// page by page until the reported count is exhausted.
func (c *FeedClient) Fetch(ctx context.Context, filters url.Values) ([]*Notice, error) {
	var notices []*Notice

	for page := 1; ; page++ {
		resp, err := c.fetchPage(ctx, page, filters)
		if err != nil {
			return nil, err
		}
		if len(resp.Items) == 0 {
			break
		}

		for i := range resp.Items {
			notice, convErr := toNotice(&resp.Items[i])
			if convErr != nil {
				c.log.Warn("skipping malformed feed item", "error", convErr)
				continue
			}
			notices = append(notices, notice)
		}

		totalPages := (resp.Count + FeedPageSize - 1) / FeedPageSize
		if page >= totalPages {
			break
		}
	}

	return notices, nil
}

func (c *FeedClient) fetchPage(ctx context.Context, page int, filters url.Values) (*feedResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("feed throttle interrupted: %w", err)
	}

	query := url.Values{}
	for k, vs := range filters {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	query.Set("pagina", strconv.Itoa(page))
	query.Set("itensPorPagina", strconv.Itoa(FeedPageSize))

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		c.baseURL+"/api/v1/comunicacao?"+query.Encode(), nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed page %d: status %d", page, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, feedMaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed response: %w", err)
	}

	var parsed feedResponse
	if err = json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("feed page %d: malformed response: %w", page, err)
	}

	return &parsed, nil
}

func toNotice(item *feedItem) (*Notice, error) {
	if item.CaseNumber == "" {
		return nil, fmt.Errorf("feed item without case number")
	}

	noticedAt, err := parseFeedDate(item.AvailableAt)
	if err != nil {
		return nil, fmt.Errorf("feed item %s: %w", item.CaseNumber, err)
	}

	return &Notice{
		Hash:       item.Hash,
		CaseNumber: item.CaseNumber,
		Court:      strings.ToLower(item.Court),
		OrganName:  item.OrganName,
		Text:       item.Text,
		NoticedAt:  noticedAt,
	}, nil
}

func parseFeedDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
