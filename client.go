package devstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the production devstore API endpoint.
const DefaultBaseURL = "https://xbdev.store/api/"

// DefaultTimeout bounds every API call so unreachable networks
// surface as errors instead of hanging the caller.
const DefaultTimeout = 30 * time.Second

// uploadArchiveName is the file name the service expects for save
// archives. Must stay in sync with the server side.
const uploadArchiveName = "XB_Save.zip"

// Client talks to the devstore API.
//
// The zero value is not usable; construct with NewClient. The base
// URL may be swapped at runtime (SetBaseURL), which the FFI layer
// exposes as set_custom_url, so access is mutex-guarded.
type Client struct {
	httpClient *http.Client

	mu      sync.RWMutex
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL sets the API endpoint; a trailing slash is appended if
// missing.
func WithBaseURL(raw string) Option {
	return func(c *Client) { c.baseURL = normalizeURL(raw) }
}

// NewClient creates a Client for the devstore API. The endpoint
// defaults to DefaultBaseURL and may be overridden by the
// DEVSTORE_API_URL environment variable or WithBaseURL.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultBaseURL,
	}
	if env := os.Getenv("DEVSTORE_API_URL"); env != "" {
		c.baseURL = normalizeURL(env)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func normalizeURL(raw string) string {
	if strings.HasSuffix(raw, "/") {
		return raw
	}
	return raw + "/"
}

// BaseURL returns the current API endpoint.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL swaps the API endpoint, normalizing the trailing slash.
// Only absolute http(s) URLs are accepted.
func (c *Client) SetBaseURL(raw string) error {
	if raw == "" {
		return missingParam("custom_url")
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalidParam("custom_url")
	}
	c.mu.Lock()
	c.baseURL = normalizeURL(raw)
	c.mu.Unlock()
	return nil
}

func (c *Client) endpoint(path string) string {
	return c.BaseURL() + path
}

// UploadSave zips the file or directory at path and uploads it as the
// cloud save for the given package. The returned string is the
// server's acknowledgement message.
func (c *Client) UploadSave(ctx context.Context, packageID, userSecret, path string) (string, error) {
	if err := requireParams(param{"package_id", packageID}, param{"user_secret", userSecret}, param{"file_or_folder_path", path}); err != nil {
		return "", err
	}

	archive, err := packArchive(path)
	if err != nil {
		trackError("archive_error", "UploadSave")
		return "", err
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if err := mw.WriteField("user_secret", userSecret); err != nil {
		return "", err
	}
	if err := mw.WriteField("product_id", packageID); err != nil {
		return "", err
	}
	part, err := mw.CreatePart(zipPartHeader("save_file", uploadArchiveName))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(archive); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	endpoint := c.endpoint("cloud-saves/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		trackError("connection_error", "UploadSave")
		return "", &RequestError{Op: "upload", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	text := readBodyText(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ServerError{Op: "upload", StatusCode: resp.StatusCode, Message: fmt.Sprintf("Upload failed: %s", text)}
	}

	trackEvent("save_uploaded", nil)
	if msg := jsonField(text, "message"); msg != "" {
		return msg, nil
	}
	return text, nil
}

// zipPartHeader builds a multipart header for a zip attachment.
func zipPartHeader(field, filename string) textproto.MIMEHeader {
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", "application/zip")
	return h
}

// DownloadSave fetches the cloud save for the given package and
// extracts it under extractPath.
func (c *Client) DownloadSave(ctx context.Context, packageID, userSecret, extractPath string) error {
	if err := requireParams(param{"package_id", packageID}, param{"user_secret", userSecret}, param{"extract_path", extractPath}); err != nil {
		return err
	}

	endpoint := c.endpoint("cloud-saves/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	q.Set("user_secret", userSecret)
	q.Set("product_id", packageID)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		trackError("connection_error", "DownloadSave")
		return &RequestError{Op: "download", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ServerError{Op: "download", StatusCode: resp.StatusCode, Message: fmt.Sprintf("Download failed: %s", readBodyText(resp.Body))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Op: "download", URL: endpoint, Err: err}
	}
	if err := extractArchive(data, extractPath); err != nil {
		trackError("archive_error", "DownloadSave")
		return err
	}
	trackEvent("save_downloaded", nil)
	return nil
}

// PackageVersion returns the published version string for a package.
func (c *Client) PackageVersion(ctx context.Context, packageID string) (string, error) {
	if err := requireParams(param{"package_id", packageID}); err != nil {
		return "", err
	}

	endpoint := c.endpoint("version-hex/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("product_id", packageID)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &RequestError{Op: "version", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	text := readBodyText(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ServerError{Op: "version", StatusCode: resp.StatusCode, Message: fmt.Sprintf("Request failed: %s", text)}
	}
	if v := jsonField(text, "version"); v != "" {
		return v, nil
	}
	// Not every deployment wraps the version in JSON.
	return text, nil
}

// Username resolves the account name behind a user secret.
func (c *Client) Username(ctx context.Context, userSecret string) (string, error) {
	if err := requireParams(param{"user_secret", userSecret}); err != nil {
		return "", err
	}

	endpoint := c.endpoint("get-username-by-secret/")
	resp, err := c.postForm(ctx, endpoint, url.Values{"user_secret": {userSecret}})
	if err != nil {
		return "", &RequestError{Op: "username", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	text := readBodyText(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ServerError{Op: "username", StatusCode: resp.StatusCode, Message: fmt.Sprintf("Request failed (status %d): %s", resp.StatusCode, text)}
	}

	var payload struct {
		Status   string `json:"status"`
		Username string `json:"username"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return "", &ServerError{Op: "username", StatusCode: resp.StatusCode, Message: fmt.Sprintf("Failed to parse response JSON: %v", err)}
	}

	switch payload.Status {
	case "success":
		if payload.Username == "" {
			return "", &ServerError{Op: "username", StatusCode: resp.StatusCode, Message: "Username missing in response"}
		}
		return payload.Username, nil
	case "error":
		msg := payload.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return "", &ServerError{Op: "username", StatusCode: resp.StatusCode, Message: fmt.Sprintf("Server error: %s", msg)}
	case "":
		return "", &ServerError{Op: "username", StatusCode: resp.StatusCode, Message: "Missing status in response"}
	default:
		return "", &ServerError{Op: "username", StatusCode: resp.StatusCode, Message: fmt.Sprintf("Unexpected status in response: %s", payload.Status)}
	}
}

// OnlineState reports the service availability as seen by Online.
type OnlineState int

const (
	// StateOnline means the service answered with 200.
	StateOnline OnlineState = iota

	// StateMaintenance means the service answered with 503.
	StateMaintenance

	// StateDegraded means the service answered with any other code.
	StateDegraded
)

// String returns the string representation of OnlineState.
func (s OnlineState) String() string {
	switch s {
	case StateOnline:
		return "online"
	case StateMaintenance:
		return "maintenance"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Online probes the service status endpoint. The returned code is the
// raw HTTP status for callers that surface it.
func (c *Client) Online(ctx context.Context) (OnlineState, int, error) {
	endpoint := c.endpoint("status-check")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return StateDegraded, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return StateDegraded, 0, &RequestError{Op: "status", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return StateOnline, resp.StatusCode, nil
	case http.StatusServiceUnavailable:
		return StateMaintenance, resp.StatusCode, nil
	default:
		return StateDegraded, resp.StatusCode, nil
	}
}

// VerifyDownload asks the service to confirm that the caller's
// download of the package is legitimate.
func (c *Client) VerifyDownload(ctx context.Context, packageID string) error {
	if err := requireParams(param{"package_id", packageID}); err != nil {
		return err
	}

	endpoint := c.endpoint("verify-download/")
	resp, err := c.postForm(ctx, endpoint, url.Values{"product_id": {packageID}})
	if err != nil {
		return &RequestError{Op: "verify", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	text := readBodyText(resp.Body)
	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return &ServerError{Op: "verify", StatusCode: resp.StatusCode, Message: fmt.Sprintf("Invalid server response: %s", text)}
	}

	switch payload.Status {
	case "success":
		return nil
	case "error":
		msg := payload.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return &ServerError{Op: "verify", StatusCode: resp.StatusCode, Message: msg}
	default:
		return &ServerError{Op: "verify", StatusCode: resp.StatusCode, Message: fmt.Sprintf("Unexpected response: %s", text)}
	}
}

// postForm issues a form-encoded POST.
func (c *Client) postForm(ctx context.Context, endpoint string, values url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.httpClient.Do(req)
}

type param struct {
	name  string
	value string
}

func requireParams(params ...param) error {
	for _, p := range params {
		if p.value == "" {
			return missingParam(p.name)
		}
	}
	return nil
}

func readBodyText(r io.Reader) string {
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return "No response message"
	}
	return string(data)
}

// jsonField extracts a top-level string or number field from a JSON
// document, returning "" when the document does not parse or the
// field is absent.
func jsonField(text, field string) string {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return ""
	}
	switch v := doc[field].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}
