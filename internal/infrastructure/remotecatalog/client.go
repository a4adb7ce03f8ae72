package remotecatalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from the remote API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// credentialPlacement selects where the consumer key/secret are sent
type credentialPlacement int

const (
	credentialsInHeader credentialPlacement = iota
	credentialsInQuery
)

func (p credentialPlacement) String() string {
	if p == credentialsInQuery {
		return "query"
	}
	return "header"
}

// Client implements integration.RemoteCatalog against a WooCommerce-style REST API
type Client struct {
	config     *Config
	httpClient *http.Client
	validate   *validator.Validate
	logger     *zap.Logger
}

// Ensure Client implements the port
var _ integration.RemoteCatalog = (*Client)(nil)

// NewClient creates a new remote catalog client with the given configuration
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{},
		validate:   validator.New(),
		logger:     logger.Named("remotecatalog"),
	}, nil
}

// FetchPage returns one page of published products. Records that fail
// validation are reported in Page.Rejected and the rest of the page is kept.
func (c *Client) FetchPage(ctx context.Context, page, pageSize int) (*integration.Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(pageSize))
	query.Set("status", string(integration.ItemStatusPublish))

	resp, err := c.get(ctx, "/products", query)
	if err != nil {
		return nil, err
	}

	var payloads []productPayload
	if err := json.Unmarshal(resp.body, &payloads); err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", integration.ErrRemoteInvalidResponse, page, err)
	}

	result := &integration.Page{
		Number: page,
		Items:  make([]integration.RemoteItem, 0, len(payloads)),
	}
	for i := range payloads {
		item, err := c.decodeItem(&payloads[i])
		if err != nil {
			result.Rejected = append(result.Rejected, c.reject(page, i, payloads[i].ID, err))
			continue
		}
		result.Items = append(result.Items, item)
	}

	result.TotalPages, result.TotalCount = paginationTotals(resp.header, len(payloads))
	return result, nil
}

// FetchVariationPage returns one page of the variations of a configurable product
func (c *Client) FetchVariationPage(ctx context.Context, remoteProductID int64, page int) (*integration.VariationPage, error) {
	path := "/products/" + strconv.FormatInt(remoteProductID, 10) + "/variations"
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(c.config.VariationPageSize))

	resp, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}

	var payloads []variationPayload
	if err := json.Unmarshal(resp.body, &payloads); err != nil {
		return nil, fmt.Errorf("%w: variations of %d: %v", integration.ErrRemoteInvalidResponse, remoteProductID, err)
	}

	result := &integration.VariationPage{
		Number:   page,
		Variants: make([]integration.RemoteVariant, 0, len(payloads)),
	}
	for i := range payloads {
		variant, err := c.decodeVariant(&payloads[i])
		if err != nil {
			result.Rejected = append(result.Rejected, c.reject(page, i, payloads[i].ID, err))
			continue
		}
		result.Variants = append(result.Variants, variant)
	}

	result.TotalPages, _ = paginationTotals(resp.header, len(payloads))
	return result, nil
}

func (c *Client) decodeItem(p *productPayload) (integration.RemoteItem, error) {
	if err := c.validate.Struct(p); err != nil {
		return integration.RemoteItem{}, err
	}
	return p.toRemoteItem()
}

func (c *Client) decodeVariant(v *variationPayload) (integration.RemoteVariant, error) {
	if err := c.validate.Struct(v); err != nil {
		return integration.RemoteVariant{}, err
	}
	return v.toRemoteVariant()
}

func (c *Client) reject(page, position int, remoteID int64, err error) integration.RejectedRecord {
	c.logger.Warn("Remote record rejected",
		zap.Int("page", page),
		zap.Int("position", position),
		zap.Int64("remote_id", remoteID),
		zap.Error(err),
	)
	return integration.RejectedRecord{
		Position: position,
		RemoteID: max(remoteID, 0),
		Reason:   err.Error(),
	}
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

type response struct {
	status int
	header http.Header
	body   []byte
}

// get performs an authenticated GET. Header credentials are tried first;
// an auth-class rejection is retried once with query-string credentials.
func (c *Client) get(ctx context.Context, path string, query url.Values) (*response, error) {
	if !c.config.HasCredentials() {
		return nil, integration.ErrCredentialsMissing
	}

	resp, err := c.do(ctx, path, query, credentialsInHeader)
	if err != nil {
		return nil, err
	}
	if isAuthFailure(resp.status) {
		c.logger.Warn("Header credentials rejected, retrying with query credentials",
			zap.String("path", path),
			zap.Int("status", resp.status),
		)
		resp, err = c.do(ctx, path, query, credentialsInQuery)
		if err != nil {
			return nil, err
		}
		if isAuthFailure(resp.status) {
			return nil, fmt.Errorf("%w: HTTP %d on %s", integration.ErrRemoteAuthFailed, resp.status, path)
		}
	}

	if resp.status >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d on %s", integration.ErrRemoteRequestFailed, resp.status, path)
	}
	return resp, nil
}

// do sends one request under its own timeout and screens the body for
// anti-bot challenges.
func (c *Client) do(ctx context.Context, path string, query url.Values, placement credentialPlacement) (*response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	if placement == credentialsInQuery {
		q.Set("consumer_key", c.config.ConsumerKey)
		q.Set("consumer_secret", c.config.ConsumerSecret)
	}

	endpoint := c.config.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("remotecatalog: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if placement == credentialsInHeader {
		req.SetBasicAuth(c.config.ConsumerKey, c.config.ConsumerSecret)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		// Cancellation of the caller wins over the per-request timeout
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", integration.ErrRemoteUnavailable, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrRemoteUnavailable, err)
	}

	if err := detectChallenge(httpResp.StatusCode, httpResp.Header.Get("Content-Type"), body); err != nil {
		c.logger.Error("Anti-bot challenge detected",
			zap.String("path", path),
			zap.Int("status", httpResp.StatusCode),
			zap.String("credentials", placement.String()),
		)
		return nil, err
	}

	return &response{
		status: httpResp.StatusCode,
		header: httpResp.Header,
		body:   body,
	}, nil
}

func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// paginationTotals reads the total page and item counts from the response
// headers. Missing or malformed headers describe a single page.
func paginationTotals(header http.Header, itemCount int) (totalPages, totalCount int) {
	totalPages = headerInt(header, "X-Total-Pages", "X-WP-TotalPages")
	totalCount = headerInt(header, "X-Total", "X-WP-Total")
	if totalPages <= 0 {
		totalPages = 1
	}
	if totalCount <= 0 {
		totalCount = itemCount
	}
	return totalPages, totalCount
}

func headerInt(header http.Header, names ...string) int {
	for _, name := range names {
		v := header.Get(name)
		if v == "" {
			continue
		}
		n, err := cast.ToIntE(v)
		if err == nil {
			return n
		}
	}
	return 0
}
