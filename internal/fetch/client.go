// Package fetch talks to the chart data server: manifest retrieval with
// retry, and concurrent best-effort file batches.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chartdeck/chartdeck/internal/logging"
	"github.com/chartdeck/chartdeck/internal/protocol"
	"github.com/chartdeck/chartdeck/internal/retry"
)

// ErrFolderNotFound is returned when the server's manifest does not list the
// requested folder.
var ErrFolderNotFound = errors.New("folder not found")

// Client is the HTTP client for the chart data server.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config

	mu        sync.RWMutex
	authToken string
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig retry.Config
	AuthToken   string
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig: cfg.RetryConfig,
		authToken:   cfg.AuthToken,
	}
}

// SetAuthToken sets the bearer token for requests.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

func (c *Client) applyAuth(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

// Ping checks whether the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}

// FetchFolders fetches the full folder manifest. Transport failures and 5xx
// responses are retried; anything else fails fast.
func (c *Client) FetchFolders(ctx context.Context) ([]protocol.Folder, error) {
	var folders []protocol.Folder

	err := retry.Do(ctx, c.retryConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/folders", nil)
		if err != nil {
			return err
		}
		c.applyAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.Retryable(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			if resp.StatusCode >= 500 {
				return retry.Retryable(fmt.Errorf("server error: %d", resp.StatusCode))
			}
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		var manifest protocol.ManifestResponse
		if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
			return err
		}
		if !manifest.Success {
			return fmt.Errorf("manifest request failed: %s", manifest.Message)
		}
		if manifest.Data == nil {
			return errors.New("manifest response missing data")
		}

		folders = manifest.Data.Folders
		return nil
	})

	return folders, err
}

// FetchManifest returns the manifest for a single folder by name.
func (c *Client) FetchManifest(ctx context.Context, folderName string) (*protocol.Folder, error) {
	folders, err := c.FetchFolders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range folders {
		if folders[i].Name == folderName {
			return &folders[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, folderName)
}

// FetchFile fetches one file's payload. No retry here: a failed file is a
// soft loss the batch layer absorbs, and retrying every straggler would
// stall the batch it belongs to.
func (c *Client) FetchFile(ctx context.Context, fileName, folderName string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("file", fileName)
	q.Set("folder", folderName)

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/file?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp protocol.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Message != "" {
			return nil, fmt.Errorf("fetch %s: %s", fileName, errResp.Message)
		}
		return nil, fmt.Errorf("fetch %s: server returned %d", fileName, resp.StatusCode)
	}

	var fileResp protocol.FileResponse
	if err := json.NewDecoder(resp.Body).Decode(&fileResp); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", fileName, err)
	}
	if !fileResp.Success {
		return nil, fmt.Errorf("fetch %s: %s", fileName, fileResp.Message)
	}

	payload, err := fileResp.Payload()
	if err != nil {
		logging.Debug("file response carried no payload",
			zap.String("file", fileName),
			zap.String("folder", folderName))
		return nil, fmt.Errorf("fetch %s: %w", fileName, err)
	}
	return payload, nil
}
