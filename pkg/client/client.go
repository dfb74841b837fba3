package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Copycord/console/internal/status"
)

// Client provides HTTP client functionality to communicate with the Copycord
// admin API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Logger   *slog.Logger // Optional logger for client operations
	TLS      *TLSClientConfig
	Insecure bool // Skip TLS verification
}

// TLSClientConfig holds TLS configuration for client
type TLSClientConfig struct {
	Enabled    bool   // Enable TLS
	CACert     string // CA certificate file path
	ClientCert string // Client certificate file
	ClientKey  string // Client private key file
	ServerName string // Server name for verification
	SkipVerify bool   // Skip certificate verification
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080/api",
		Timeout: 10 * time.Second,
	}
}

// New creates a new admin API client with TLS support
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080/api"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	transport := &http.Transport{}
	if config.TLS != nil && config.TLS.Enabled || config.Insecure {
		tlsConfig, err := setupClientTLS(config)
		if err != nil {
			config.Logger.Error("TLS setup failed", "error", err)
		} else {
			transport.TLSClientConfig = tlsConfig
		}
	}

	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// Status requests the point-in-time snapshot of both roles.
func (c *Client) Status(ctx context.Context) (status.Snapshot, error) {
	var snap status.Snapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return snap, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return snap, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.handleErrorResponse(resp); err != nil {
		return snap, err
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode status: %w", err)
	}
	return snap, nil
}

// Start requests a user-initiated start of the given role.
// A rejection is surfaced once with the server-provided message; the caller
// does not retry.
func (c *Client) Start(ctx context.Context, role status.Role) error {
	c.logger.Debug("starting role", "role", role)
	return c.doRequest(ctx, http.MethodPost, fmt.Sprintf("%s/%s/start", c.baseURL, role))
}

// Stop requests a user-initiated stop of the given role.
func (c *Client) Stop(ctx context.Context, role status.Role) error {
	c.logger.Debug("stopping role", "role", role)
	return c.doRequest(ctx, http.MethodPost, fmt.Sprintf("%s/%s/stop", c.baseURL, role))
}

// setupClientTLS configures TLS settings for HTTP client
func setupClientTLS(config Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if config.Insecure {
		tlsConfig.InsecureSkipVerify = true
		return tlsConfig, nil
	}

	if config.TLS != nil {
		if config.TLS.SkipVerify {
			tlsConfig.InsecureSkipVerify = true
		}
		if config.TLS.ServerName != "" {
			tlsConfig.ServerName = config.TLS.ServerName
		}
		if config.TLS.CACert != "" {
			if err := loadCACert(tlsConfig, config.TLS.CACert); err != nil {
				return nil, fmt.Errorf("failed to load CA certificate: %w", err)
			}
		}
		if config.TLS.ClientCert != "" && config.TLS.ClientKey != "" {
			cert, err := tls.LoadX509KeyPair(config.TLS.ClientCert, config.TLS.ClientKey)
			if err != nil {
				return nil, fmt.Errorf("failed to load client certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
	}

	return tlsConfig, nil
}

// loadCACert loads CA certificate from file and adds it to TLS config
func loadCACert(tlsConfig *tls.Config, caCertPath string) error {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return fmt.Errorf("failed to parse CA certificate")
	}

	tlsConfig.RootCAs = caCertPool
	return nil
}

// doRequest performs an HTTP request with common error handling
func (c *Client) doRequest(ctx context.Context, method, url string) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "url", url)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return c.handleErrorResponse(resp)
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		c.logger.Error("Failed to decode error response", "status", resp.StatusCode)
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	c.logger.Error("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return fmt.Errorf("API error: %s", errorResp.Error)
}
