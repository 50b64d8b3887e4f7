package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/pkg/schema"
)

// HTTPConfig bounds the http_request handler.
type HTTPConfig struct {
	MaxResponseBody int64
	Timeout         time.Duration
}

const (
	defaultMaxResponseBody = 10 * 1024 * 1024 // 10MB
	defaultHTTPTimeout     = 30 * time.Second
	defaultHTTPOutput      = "response"
)

// HTTPRequestHandler issues an HTTP request with resolved url, headers,
// and body, and stores the response body in the output variable.
type HTTPRequestHandler struct {
	config HTTPConfig
	client *http.Client
}

// NewHTTPRequestHandler creates an http_request handler. A nil client uses
// a fresh one built from the default transport.
func NewHTTPRequestHandler(cfg HTTPConfig, client *http.Client) *HTTPRequestHandler {
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = defaultMaxResponseBody
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if client == nil {
		client = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	return &HTTPRequestHandler{config: cfg, client: client}
}

func (h *HTTPRequestHandler) Type() graph.NodeType { return graph.NodeHTTPRequest }

func (h *HTTPRequestHandler) Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error) {
	cfg := node.Config.(*graph.HTTPRequestConfig)

	rawURL := ec.Resolve(cfg.URL)
	u, err := url.ParseRequestURI(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Continue, schema.NewErrorf(schema.ErrCodeValidation, "invalid url %q", rawURL).WithNode(node.ID)
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if cfg.Body != "" {
		bodyReader = strings.NewReader(ec.Resolve(cfg.Body))
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, bodyReader)
	if err != nil {
		return Continue, schema.NewErrorf(schema.ErrCodeExecution, "build request: %s", err.Error()).WithNode(node.ID).WithCause(err)
	}

	if cfg.Headers != "" {
		var headers map[string]any
		if err := json.Unmarshal([]byte(ec.Resolve(cfg.Headers)), &headers); err != nil {
			return Continue, schema.NewErrorf(schema.ErrCodeValidation, "headers must be a JSON object: %s", err.Error()).WithNode(node.ID).WithCause(err)
		}
		for k, v := range headers {
			req.Header.Set(k, fmt.Sprintf("%v", v))
		}
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return Continue, schema.NewErrorf(schema.ErrCodeHandlerFailed, "request failed: %s", err.Error()).WithNode(node.ID).WithCause(err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, h.config.MaxResponseBody))
	if err != nil {
		return Continue, schema.NewErrorf(schema.ErrCodeHandlerFailed, "read response body: %s", err.Error()).WithNode(node.ID).WithCause(err)
	}

	outVar := cfg.Output
	if outVar == "" {
		outVar = defaultHTTPOutput
	}
	ec.SetVar(outVar, string(bodyBytes))
	ec.SetVar(outVar+"_status", float64(resp.StatusCode))

	status := schema.LogStatusSuccess
	if resp.StatusCode >= 400 {
		status = schema.LogStatusError
	}
	ec.Logf(node, status, "%s %s -> %d (%dms)", method, rawURL, resp.StatusCode, time.Since(start).Milliseconds())
	return Continue, nil
}
