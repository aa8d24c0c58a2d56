// Package capture implements the capture executors: authenticated,
// paginated retrieval from jurisdiction portals with streaming raw-log
// persistence and totalizer validation.
package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/courtcapture/internal/courts"
	"github.com/jonesrussell/courtcapture/internal/credentials"
	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/logger"
)

// maxResponseBodyBytes limits the size of portal responses.
const maxResponseBodyBytes = 20 * 1024 * 1024 // 20 MB

// Session is an authenticated portal session for one capture run.
type Session struct {
	token  string
	config *courts.Config
}

// Page is one page of a portal collection response.
type Page struct {
	Items []json.RawMessage `json:"resultado"`
	// Total is the totalizer the portal reports alongside the page.
	Total int `json:"totalRegistros"`
	// PageCount is the number of pages the portal reports for the query.
	PageCount int `json:"qtdPaginas"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"senha"`
	OTP      string `json:"codigoOtp,omitempty"`
}

type loginResponse struct {
	Token   string `json:"token"`
	Message string `json:"mensagem"`
}

type totalsResponse struct {
	Total int `json:"quantidadeProcessos"`
}

// ClientConfig configures the portal client.
type ClientConfig struct {
	RequestDelay   time.Duration
	RequestTimeout time.Duration
	UserAgent      string
}

// Client performs authenticated HTTP requests against jurisdiction
// portals. Requests to the same jurisdiction endpoint are throttled with
// an inter-request delay; this is deliberate backpressure against the
// portals' anti-scraping defenses.
type Client struct {
	httpClient *http.Client
	log        logger.Interface
	userAgent  string
	delay      time.Duration

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// NewClient creates a portal client.
func NewClient(cfg ClientConfig, log logger.Interface) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		log:        log,
		userAgent:  cfg.UserAgent,
		delay:      cfg.RequestDelay,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// limiter returns the rate limiter for a jurisdiction, creating it on
// first use. The per-jurisdiction delay overrides the client default.
func (c *Client) limiter(cfg *courts.Config) *rate.Limiter {
	c.limitersMu.Lock()
	defer c.limitersMu.Unlock()

	lim, ok := c.limiters[cfg.Code]
	if !ok {
		delay := c.delay
		if cfg.RequestDelay > 0 {
			delay = cfg.RequestDelay
		}
		lim = rate.NewLimiter(rate.Every(delay), 1)
		c.limiters[cfg.Code] = lim
	}
	return lim
}

// Authenticate logs in against the jurisdiction and returns a session.
// Portal rejections surface as CodeAuthError with the portal's own
// message, so callers can distinguish expired-password from
// locked-account where the portal reports it.
func (c *Client) Authenticate(
	ctx context.Context,
	cfg *courts.Config,
	cred *credentials.Decrypted,
) (*Session, error) {
	body, err := json.Marshal(loginRequest{
		Login:    cred.Login,
		Password: string(cred.Password()),
		OTP:      string(cred.OTPSeed()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}

	data, status, err := c.do(ctx, cfg, http.MethodPost, cfg.LoginPath, nil, body)
	if err != nil {
		return nil, domain.NewCaptureError(domain.CodeAuthError, "login request failed", err)
	}

	var resp loginResponse
	if unmarshalErr := json.Unmarshal(data, &resp); unmarshalErr != nil {
		return nil, domain.NewCaptureError(domain.CodeAuthError, "malformed login response", unmarshalErr)
	}

	if status != http.StatusOK || resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = fmt.Sprintf("portal rejected credential (status %d)", status)
		}
		return nil, domain.NewCaptureError(domain.CodeAuthError, msg, nil)
	}

	return &Session{token: resp.Token, config: cfg}, nil
}

// FetchPage retrieves one page of a capture kind's collection. Pages are
// requested in increasing index order; some jurisdictions return cursors
// that depend on sequential consumption.
func (c *Client) FetchPage(
	ctx context.Context,
	session *Session,
	kind domain.CaptureKind,
	pageIndex, pageSize int,
	params url.Values,
) (*Page, error) {
	path, err := session.config.ListPath(kind)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	query.Set("pagina", strconv.Itoa(pageIndex))
	query.Set("tamanhoPagina", strconv.Itoa(pageSize))

	data, status, err := c.doAuthenticated(ctx, session, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %d: %w", pageIndex, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("page %d: portal returned status %d", pageIndex, status)
	}

	var page Page
	if unmarshalErr := json.Unmarshal(data, &page); unmarshalErr != nil {
		return nil, fmt.Errorf("page %d: malformed response: %w", pageIndex, unmarshalErr)
	}

	return &page, nil
}

// FetchTotals retrieves the totalizer for a capture kind from the
// dedicated totals endpoint.
func (c *Client) FetchTotals(
	ctx context.Context,
	session *Session,
	params url.Values,
) (int, error) {
	data, status, err := c.doAuthenticated(ctx, session, http.MethodGet, session.config.TotalsPath, params, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch totals: %w", err)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("totals endpoint returned status %d", status)
	}

	var resp totalsResponse
	if unmarshalErr := json.Unmarshal(data, &resp); unmarshalErr != nil {
		return 0, fmt.Errorf("malformed totals response: %w", unmarshalErr)
	}

	return resp.Total, nil
}

// DownloadDocument retrieves one binary document.
func (c *Client) DownloadDocument(ctx context.Context, session *Session, documentID int64) ([]byte, error) {
	path := session.config.DocumentPath + "/" + strconv.FormatInt(documentID, 10)

	data, status, err := c.doAuthenticated(ctx, session, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download document %d: %w", documentID, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("document %d: portal returned status %d", documentID, status)
	}

	return data, nil
}

// doAuthenticated performs a request with the session token attached.
func (c *Client) doAuthenticated(
	ctx context.Context,
	session *Session,
	method, path string,
	query url.Values,
	body []byte,
) ([]byte, int, error) {
	return c.doWithToken(ctx, session.config, method, path, query, body, session.token)
}

func (c *Client) do(
	ctx context.Context,
	cfg *courts.Config,
	method, path string,
	query url.Values,
	body []byte,
) ([]byte, int, error) {
	return c.doWithToken(ctx, cfg, method, path, query, body, "")
}

func (c *Client) doWithToken(
	ctx context.Context,
	cfg *courts.Config,
	method, path string,
	query url.Values,
	body []byte,
	token string,
) ([]byte, int, error) {
	// Inter-request throttle per jurisdiction endpoint.
	if err := c.limiter(cfg).Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("throttle wait interrupted: %w", err)
	}

	reqURL := cfg.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, resp.StatusCode, nil
}
