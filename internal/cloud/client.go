package cloud

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Endpoint paths relative to the API base URL.
const (
	deviceListPath  = "/device"
	sendCommandPath = "/postMassage"
)

// maxResponseBytes caps how much of a response body is read. Device
// listings for large accounts stay well under this.
const maxResponseBytes = 1 << 20

// Credentials supplies the private key for API requests and serialises
// requests against token refreshes. Acquire blocks while a refresh is in
// progress; the returned release function must be called when the request
// completes so a pending refresh can proceed.
type Credentials interface {
	Acquire(ctx context.Context) (key string, release func(), err error)
}

// Logger is the minimal logging interface the client needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client talks to the BeHome cloud API.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	logger     Logger
}

// NewClient creates a cloud API client.
//
// Parameters:
//   - baseURL: API base URL without trailing slash
//   - creds: credential provider, must not be nil
//   - timeout: per-request timeout, defaults to 15s when non-positive
//   - logger: optional, may be nil
func NewClient(baseURL string, creds Credentials, timeout time.Duration, logger Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
		logger:     logger,
	}
}

// apiResponse is the envelope every endpoint returns.
type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type deviceListData struct {
	Array []DeviceRecord `json:"array"`
}

// ListDevices fetches the full device listing for the account.
//
// Returns:
//   - []DeviceRecord: every device the cloud reports, including types the
//     bridge does not recognise
//   - error: wrapping ErrAuth, ErrTransient, or ErrPermanent
func (c *Client) ListDevices(ctx context.Context) ([]DeviceRecord, error) {
	key, release, err := c.creds.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if key == "" {
		return nil, ErrEmptyKey
	}

	reqURL := c.baseURL + deviceListPath + "?openID=" + url.QueryEscape(encodeKey(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrPermanent, err)
	}

	env, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var data deviceListData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: decode device listing: %w", ErrPermanent, err)
		}
	}

	c.logger.Debug("device listing fetched", "count", len(data.Array))
	return data.Array, nil
}

// SendCommand publishes a command message to a device topic.
//
// Parameters:
//   - topic: the device's messaging topic
//   - typeCode: the numeric device type from the listing
//   - message: the command payload, for example {"on": true, "bri": 80}
//
// Returns:
//   - error: wrapping ErrAuth, ErrTransient, or ErrPermanent
func (c *Client) SendCommand(ctx context.Context, topic string, typeCode int, message map[string]any) error {
	if topic == "" {
		return fmt.Errorf("%w: topic is empty", ErrPermanent)
	}
	if len(message) == 0 {
		return fmt.Errorf("%w: message is empty", ErrPermanent)
	}

	key, release, err := c.creds.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if key == "" {
		return ErrEmptyKey
	}

	payload, err := json.Marshal(map[string]any{
		"openID":  encodeKey(key),
		"topicID": topic,
		"type":    typeCode,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("%w: encode command: %w", ErrPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendCommandPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("send command to %s: %w", topic, err)
	}

	c.logger.Debug("command sent", "topic", topic, "type", typeCode)
	return nil
}

// Verify confirms the credential is accepted by the cloud. It performs a
// device listing and discards the result, so the only failures it reports
// are credential or connectivity problems.
func (c *Client) Verify(ctx context.Context) error {
	if _, err := c.ListDevices(ctx); err != nil {
		return fmt.Errorf("verify credential: %w", err)
	}
	return nil
}

// do executes the request and returns the decoded envelope. All error paths
// classify into one of the three sentinels.
func (c *Client) do(req *http.Request) (*apiResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransient, err)
	}

	if err := classifyStatus(resp.StatusCode); err != nil {
		c.logger.Warn("cloud request failed", "status", resp.StatusCode, "url", req.URL.Path)
		return nil, err
	}

	var env apiResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrPermanent, err)
	}

	if env.Code != 0 {
		return nil, classifyCode(env.Code, env.Message)
	}

	return &env, nil
}

// classifyStatus maps an HTTP status to a sentinel error, or nil for 2xx.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: http status %d", ErrAuth, status)
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return fmt.Errorf("%w: http status %d", ErrTransient, status)
	default:
		return fmt.Errorf("%w: http status %d", ErrPermanent, status)
	}
}

// authFailureCodes are envelope codes the cloud uses for credential
// problems. Anything else non-zero is treated as permanent.
var authFailureCodes = map[int]bool{
	40001: true, // invalid openID
	40003: true, // token expired
	40009: true, // token revoked
}

func classifyCode(code int, message string) error {
	if authFailureCodes[code] {
		return fmt.Errorf("%w: api code %d: %s", ErrAuth, code, message)
	}
	return fmt.Errorf("%w: api code %d: %s", ErrPermanent, code, message)
}

// encodeKey produces the openID parameter from the private key.
func encodeKey(key string) string {
	return base64.StdEncoding.EncodeToString([]byte(key))
}
