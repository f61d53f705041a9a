package transmitter

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/i2-open/goSsfTransmitter/internal/metrics"
	"go.uber.org/zap"
)

const (
	ContentTypeSet = "application/secevent+jwt"
	maxErrorBody   = 64 * 1024
)

// Result is the outcome of one POST. HTTPStatus is 0 when no response was received.
type Result struct {
	Success          bool
	HTTPStatus       int
	Body             string
	Error            string
	ErrorDescription string
	Hint             string

	transportErr error
	url          string
}

// Err converts an unsuccessful result into *RejectedError or *TransportError.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	if r.HTTPStatus == 0 {
		return &TransportError{URL: r.url, Err: r.transportErr}
	}
	return &RejectedError{
		Status:      r.HTTPStatus,
		Code:        r.Error,
		Description: r.ErrorDescription,
		Hint:        r.Hint,
	}
}

// Client POSTs signed SETs. It sets no timeout of its own; bound calls with the context.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{httpClient: httpClient, logger: logger.Named("client")}
}

// NewHTTPClient returns a client that trusts the system roots plus any certificates in the PEM caFile.
func NewHTTPClient(caFile string) (*http.Client, error) {
	if caFile == "" {
		return &http.Client{}, nil
	}
	pemBytes, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("reading CA file: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	return &http.Client{Transport: transport}, nil
}

func (c *Client) Send(ctx context.Context, signedToken string, destinationUrl string) Result {
	result := Result{url: destinationUrl}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destinationUrl, bytes.NewBufferString(signedToken))
	if err != nil {
		result.transportErr = err
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Content-Type", ContentTypeSet)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.SendSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Debug("transport failure", zap.String("url", destinationUrl), zap.Error(err))
		result.transportErr = err
		result.Error = err.Error()
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.HTTPStatus = resp.StatusCode
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	result.Body = string(body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Success = true
		return result
	}

	result.Error, result.ErrorDescription = parseErrorBody(resp.StatusCode, body)
	result.Hint = ClassifyHint(resp.StatusCode, result.Error, result.ErrorDescription)
	c.logger.Debug("receiver rejected SET",
		zap.Int("status", resp.StatusCode),
		zap.String("error", result.Error),
		zap.String("description", result.ErrorDescription))
	return result
}

/*
parseErrorBody accepts both the SSF push error form {"error","error_description"} and the Okta API error form
{"errorCode","errorSummary"}. Unstructured bodies are returned as the description so the hint rules see them.
*/
func parseErrorBody(status int, body []byte) (code string, description string) {
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err == nil {
		code = firstString(doc, "error", "errorCode", "err")
		description = firstString(doc, "error_description", "errorSummary", "description")
		if code != "" || description != "" {
			return code, description
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return "", text
	}
	return fmt.Sprintf("HTTP %d", status), ""
}

func firstString(doc map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := doc[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
