package mediacloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Static errors for provider client operations.
var (
	// ErrCredentialsMissing is returned when the account secret could not
	// be decrypted; no network call is attempted in that case.
	ErrCredentialsMissing = errors.New("mediacloud: credentials missing or unusable")
	// ErrAccountIDRequired is returned when the credentials carry no account id.
	ErrAccountIDRequired = errors.New("mediacloud: account ID is required")
	// ErrPublicIDRequired is returned when an operation needs a public id.
	ErrPublicIDRequired = errors.New("mediacloud: public ID is required")
)

// SearchError is returned when the search endpoint responds non-2xx.
type SearchError struct {
	Status int
	Body   string
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("mediacloud: search failed with status %d: %s", e.Status, e.Body)
}

// UploadError is returned when the upload endpoint responds non-2xx.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("mediacloud: upload failed with status %d: %s", e.Status, e.Body)
}

// RequestError is returned for other non-2xx provider responses.
type RequestError struct {
	Operation string
	Status    int
	Body      string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("mediacloud: %s failed with status %d: %s", e.Operation, e.Status, e.Body)
}

// Client defines the operations the reel compiler needs from the provider.
type Client interface {
	// Search returns assets matching the provider query expression.
	Search(ctx context.Context, creds Credentials, expression string, maxResults int) ([]Asset, error)

	// FetchByPublicID returns the asset with the given public id, or nil
	// (with no error) when the provider reports 404.
	FetchByPublicID(ctx context.Context, creds Credentials, publicID string) (*Asset, error)

	// UpdateTags adds or removes a tag on the given assets. Empty
	// publicIDs is a no-op.
	UpdateTags(ctx context.Context, creds Credentials, publicIDs []string, command, tag string) error

	// UpdateContext sets one structured context key/value on an asset.
	UpdateContext(ctx context.Context, creds Credentials, publicID, key, value, deliveryType string) error

	// UploadVideo uploads a local video file into the given folder under
	// the given public id.
	UploadVideo(ctx context.Context, creds Credentials, localPath, folder, publicID string) (UploadResult, error)

	// Download fetches asset bytes from a delivery URL into destPath.
	Download(ctx context.Context, assetURL, destPath string) error
}

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the provider API.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimRight(u, "/")
	}
}

// WithClock sets the clock used for signature timestamps.
func WithClock(now func() time.Time) ClientOption {
	return func(hc *HTTPClient) {
		hc.now = now
	}
}

// NewClient creates a provider HTTP client.
func NewClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    "https://api.mediacloud.com",
		httpClient: &http.Client{Timeout: 60 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// checkCreds validates that the credentials are complete enough to call
// the provider. A missing secret means decryption failed upstream.
func checkCreds(creds Credentials) error {
	if creds.AccountID == "" {
		return ErrAccountIDRequired
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return ErrCredentialsMissing
	}
	return nil
}

func (c *HTTPClient) accountURL(creds Credentials, parts ...string) string {
	segs := append([]string{c.baseURL, "v1_1", creds.AccountID}, parts...)
	return strings.Join(segs, "/")
}

// Search queries the provider's search endpoint with Basic authentication.
func (c *HTTPClient) Search(ctx context.Context, creds Credentials, expression string, maxResults int) ([]Asset, error) {
	if err := checkCreds(creds); err != nil {
		return nil, err
	}

	body, err := json.Marshal(searchRequest{
		Expression: expression,
		MaxResults: maxResults,
		WithField:  "context",
	})
	if err != nil {
		return nil, fmt.Errorf("mediacloud: marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.accountURL(creds, "resources", "search"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("mediacloud: create search request: %w", err)
	}
	req.Header.Set("Authorization", BasicAuth(creds.APIKey, creds.APISecret))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mediacloud: search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mediacloud: read search response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SearchError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("mediacloud: unmarshal search response: %w", err)
	}

	assets := make([]Asset, 0, len(parsed.Resources))
	for i := range parsed.Resources {
		assets = append(assets, parsed.Resources[i].toAsset())
	}
	return assets, nil
}

// FetchByPublicID fetches one asset's metadata; a 404 maps to nil, nil.
func (c *HTTPClient) FetchByPublicID(ctx context.Context, creds Credentials, publicID string) (*Asset, error) {
	if err := checkCreds(creds); err != nil {
		return nil, err
	}
	if publicID == "" {
		return nil, ErrPublicIDRequired
	}

	fetchURL := c.accountURL(creds, "resources", "image", "upload", url.PathEscape(publicID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("mediacloud: create fetch request: %w", err)
	}
	req.Header.Set("Authorization", BasicAuth(creds.APIKey, creds.APISecret))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mediacloud: fetch request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mediacloud: read fetch response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RequestError{Operation: "fetch", Status: resp.StatusCode, Body: string(respBody)}
	}

	var res searchResource
	if err := json.Unmarshal(respBody, &res); err != nil {
		return nil, fmt.Errorf("mediacloud: unmarshal fetch response: %w", err)
	}
	asset := res.toAsset()
	return &asset, nil
}

// UpdateTags adds or removes a tag on the given assets with a signed
// form-encoded POST. An empty publicIDs slice is a no-op.
func (c *HTTPClient) UpdateTags(ctx context.Context, creds Credentials, publicIDs []string, command, tag string) error {
	if len(publicIDs) == 0 {
		return nil
	}
	if err := checkCreds(creds); err != nil {
		return err
	}

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	signature := SignParams(map[string]string{
		"command":    command,
		"tag":        tag,
		"public_ids": strings.Join(publicIDs, ","),
		"timestamp":  timestamp,
		"type":       "upload",
	}, creds.APISecret)

	form := url.Values{}
	form.Set("command", command)
	form.Set("tag", tag)
	for _, id := range publicIDs {
		form.Add("public_ids[]", id)
	}
	form.Set("type", "upload")
	form.Set("timestamp", timestamp)
	form.Set("api_key", creds.APIKey)
	form.Set("signature", signature)

	return c.postForm(ctx, "tag update", c.accountURL(creds, "image", "tags"), form)
}

// UpdateContext sets a structured context key/value on one asset with a
// signed form-encoded POST.
func (c *HTTPClient) UpdateContext(ctx context.Context, creds Credentials, publicID, key, value, deliveryType string) error {
	if err := checkCreds(creds); err != nil {
		return err
	}
	if publicID == "" {
		return ErrPublicIDRequired
	}
	if deliveryType == "" {
		deliveryType = "upload"
	}

	contextValue := key + "=" + value
	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	signature := SignParams(map[string]string{
		"command":    TagCommandAdd,
		"context":    contextValue,
		"public_ids": publicID,
		"timestamp":  timestamp,
		"type":       deliveryType,
	}, creds.APISecret)

	form := url.Values{}
	form.Set("command", TagCommandAdd)
	form.Set("context", contextValue)
	form.Add("public_ids[]", publicID)
	form.Set("type", deliveryType)
	form.Set("timestamp", timestamp)
	form.Set("api_key", creds.APIKey)
	form.Set("signature", signature)

	return c.postForm(ctx, "context update", c.accountURL(creds, "image", "context"), form)
}

// UploadVideo uploads a local video file as multipart form data, signed
// over the folder, public_id, and timestamp parameters.
func (c *HTTPClient) UploadVideo(ctx context.Context, creds Credentials, localPath, folder, publicID string) (UploadResult, error) {
	if err := checkCreds(creds); err != nil {
		return UploadResult{}, err
	}
	if publicID == "" {
		return UploadResult{}, ErrPublicIDRequired
	}

	f, err := os.Open(localPath) // #nosec G304 - path is produced by the render pipeline
	if err != nil {
		return UploadResult{}, fmt.Errorf("mediacloud: open upload file: %w", err)
	}
	defer func() { _ = f.Close() }()

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	signature := SignParams(map[string]string{
		"folder":    folder,
		"public_id": publicID,
		"timestamp": timestamp,
	}, creds.APISecret)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"api_key":   creds.APIKey,
		"timestamp": timestamp,
		"public_id": publicID,
		"folder":    folder,
		"signature": signature,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return UploadResult{}, fmt.Errorf("mediacloud: write upload field: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return UploadResult{}, fmt.Errorf("mediacloud: create upload part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return UploadResult{}, fmt.Errorf("mediacloud: copy upload data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("mediacloud: finalize upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.accountURL(creds, "video", "upload"), &buf)
	if err != nil {
		return UploadResult{}, fmt.Errorf("mediacloud: create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("mediacloud: upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("mediacloud: read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UploadResult{}, &UploadError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var result UploadResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return UploadResult{}, fmt.Errorf("mediacloud: unmarshal upload response: %w", err)
	}
	return result, nil
}

// Download fetches asset bytes from a delivery URL into destPath.
func (c *HTTPClient) Download(ctx context.Context, assetURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return fmt.Errorf("mediacloud: create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mediacloud: download request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &RequestError{Operation: "download", Status: resp.StatusCode, Body: assetURL}
	}

	out, err := os.Create(destPath) // #nosec G304 - destPath lives in the request's temp dir
	if err != nil {
		return fmt.Errorf("mediacloud: create download file: %w", err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("mediacloud: copy download data: %w", err)
	}
	return nil
}

// postForm POSTs a signed form and maps non-2xx responses to RequestError.
func (c *HTTPClient) postForm(ctx context.Context, operation, endpoint string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("mediacloud: create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mediacloud: %s request failed: %w", operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mediacloud: read %s response: %w", operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{Operation: operation, Status: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
