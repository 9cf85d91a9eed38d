// Package svcclient implements the outbound service invocation pipeline:
// it turns a RequestDescriptor into a signed HTTP call, dispatches it,
// validates the status code and parses the body according to the action
// that produced the descriptor. Every loggable representation of a call
// passes through the redaction filter before it is written.
package svcclient

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/reentry/internal/observability/logger"
	"github.com/dropDatabas3/reentry/internal/redact"
)

// getCacheTTL caches idempotent GET responses. Non-GET requests are never
// cached: this is a correctness rule, not an optimization.
const getCacheTTL = 60 * time.Second

// ServiceResponse is the raw transport result for one call. Created per
// call, consumed once by the parser, then discarded.
type ServiceResponse struct {
	StatusCode    int
	StatusMessage string
	Body          []byte
}

// ParsedResult is the caller-facing outcome of a parsed call. Success is
// false whenever the status was non-2xx, the body failed to parse or the
// body was empty.
type ParsedResult struct {
	Success        bool
	ResponseObject any
}

// CallResult couples the raw response with the action-parsed view.
type CallResult struct {
	Response ServiceResponse
	Parsed   ParsedResult
}

// StatusError reports a response outside [200,300).
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("service errored with status code %d", e.Code)
}

// Doer dispatches one HTTP request. Transport concerns (TLS, retries,
// connection pooling) live behind this interface.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Deps contains dependencies for the Client.
type Deps struct {
	Registry *Registry
	HTTP     Doer          // optional; defaults to a 10s-timeout client
	Filter   *redact.Filter // optional; defaults to redact.New()
}

// Client is the service invocation pipeline.
type Client struct {
	registry *Registry
	http     Doer
	filter   *redact.Filter
	getCache *gocache.Cache
	sf       singleflight.Group
}

// New creates a Client.
func New(d Deps) *Client {
	httpc := d.HTTP
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	filter := d.Filter
	if filter == nil {
		filter = redact.New()
	}
	initMetrics()
	return &Client{
		registry: d.Registry,
		http:     httpc,
		filter:   filter,
		getCache: gocache.New(getCacheTTL, time.Minute),
	}
}

// Call resolves the service entry, composes and dispatches the request and
// parses the response for the descriptor's action.
//
// A status outside [200,300) returns a *StatusError before any parsing;
// transport and build failures return their underlying error. Callers that
// must not propagate errors (the user-info model) catch here and convert
// to ParsedResult{Success:false}.
func (c *Client) Call(ctx context.Context, serviceID string, desc RequestDescriptor) (*CallResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("svcclient"),
		logger.ServiceID(serviceID),
		logger.Action(string(desc.Action)),
	)

	entry, err := c.registry.Lookup(serviceID)
	if err != nil {
		callsTotal.WithLabelValues(string(desc.Action), "config_error").Inc()
		return nil, err
	}

	filter := c.filter
	if len(entry.FilterKeys) > 0 {
		filter = redact.New(entry.FilterKeys...)
	}

	finalURL := composeURL(entry.URL, desc)
	body, err := encodeBody(desc)
	if err != nil {
		callsTotal.WithLabelValues(string(desc.Action), "encode_error").Inc()
		log.Error("request body encoding failed", logger.Err(err))
		return nil, err
	}

	log.Debug("outbound request",
		logger.Method(desc.Method),
		logger.String("url", redactURL(filter, finalURL)),
		logger.String("body", filter.String(string(body))),
	)

	resp, err := c.obtainResponse(ctx, entry, desc, finalURL, body)
	if err != nil {
		callsTotal.WithLabelValues(string(desc.Action), "transport_error").Inc()
		log.Error("transport failure", logger.Err(err))
		return nil, err
	}

	log.Debug("service response",
		logger.Status(resp.StatusCode),
		logger.String("body", filter.String(string(resp.Body))),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		callsTotal.WithLabelValues(string(desc.Action), "http_error").Inc()
		return nil, &StatusError{Code: resp.StatusCode}
	}

	result := &CallResult{Response: *resp}
	switch desc.Action {
	case ActionUserInfo:
		result.Parsed = parseJSONResponse(ctx, resp)
	default:
		// pass-through actions surface the raw response unparsed
		result.Parsed = ParsedResult{Success: true}
	}

	callsTotal.WithLabelValues(string(desc.Action), "ok").Inc()
	return result, nil
}

// obtainResponse serves the call from the mock catalog, the GET cache, or
// the wire, in that order.
func (c *Client) obtainResponse(ctx context.Context, entry Entry, desc RequestDescriptor, finalURL string, body []byte) (*ServiceResponse, error) {
	if entry.Mock {
		return mockResponse(desc.Action, finalURL), nil
	}

	if desc.Method != http.MethodGet {
		return c.dispatch(ctx, entry, desc, finalURL, body)
	}

	// concurrent identical GETs collapse into a single wire call
	cacheKey := cacheKeyFor(desc.Method, finalURL, desc.Headers)
	v, err, _ := c.sf.Do(cacheKey, func() (any, error) {
		if v, ok := c.getCache.Get(cacheKey); ok {
			if resp, ok := v.(*ServiceResponse); ok {
				return resp, nil
			}
		}
		resp, err := c.dispatch(ctx, entry, desc, finalURL, body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.getCache.Set(cacheKey, resp, getCacheTTL)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ServiceResponse), nil
}

func (c *Client) dispatch(ctx context.Context, entry Entry, desc RequestDescriptor, finalURL string, body []byte) (*ServiceResponse, error) {
	if entry.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, entry.Timeout)
		defer cancel()
	}

	var rd io.Reader
	if len(body) > 0 {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, desc.Method, finalURL, rd)
	if err != nil {
		return nil, err
	}
	for k, v := range desc.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &ServiceResponse{
		StatusCode:    resp.StatusCode,
		StatusMessage: resp.Status,
		Body:          b,
	}, nil
}

// composeURL applies the descriptor's request shape to the configured base
// URL: full override, path append (stripping a duplicate trailing slash),
// or percent-encoded query parameters.
func composeURL(base string, desc RequestDescriptor) string {
	if desc.ServiceURL != "" {
		return desc.ServiceURL
	}
	u := base
	if desc.Path != "" {
		return strings.TrimSuffix(u, "/") + "/" + strings.TrimPrefix(desc.Path, "/")
	}
	if len(desc.Params) > 0 {
		keys := make([]string, 0, len(desc.Params))
		for k := range desc.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		qs := make([]string, 0, len(keys))
		for _, k := range keys {
			if desc.Params[k] == "" {
				continue
			}
			v := encodeComponent(desc.Params[k])
			if v == "null" {
				continue
			}
			qs = append(qs, k+"="+v)
		}
		if len(qs) > 0 {
			sep := "?"
			if strings.Contains(u, "?") {
				sep = "&"
			}
			u += sep + strings.Join(qs, "&")
		}
	}
	return u
}

// encodeBody serializes the descriptor body according to the Content-Type
// header: JSON, form-encoded, or passed through unmodified.
func encodeBody(desc RequestDescriptor) ([]byte, error) {
	if desc.Body == nil {
		return nil, nil
	}
	switch desc.Headers["Content-Type"] {
	case "application/json":
		return json.Marshal(desc.Body)
	case "application/x-www-form-urlencoded":
		m, ok := desc.Body.(map[string]string)
		if !ok {
			return nil, fmt.Errorf("form-encoded body must be map[string]string, got %T", desc.Body)
		}
		return []byte(encodeForm(m)), nil
	default:
		switch t := desc.Body.(type) {
		case []byte:
			return t, nil
		case string:
			return []byte(t), nil
		default:
			return nil, fmt.Errorf("passthrough body must be string or []byte, got %T", desc.Body)
		}
	}
}

// encodeForm percent-encodes each pair and joins with "&", omitting any
// pair whose encoded value is the literal string "null".
func encodeForm(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v := encodeComponent(m[k])
		if v == "null" {
			continue
		}
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, "&")
}

func encodeComponent(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// cacheKeyFor derives an opaque cache key so bearer tokens in headers or
// query strings never appear as raw cache keys.
func cacheKeyFor(method, finalURL string, headers map[string]string) string {
	h, _ := blake2b.New256(nil)
	io.WriteString(h, method)
	io.WriteString(h, "|")
	io.WriteString(h, finalURL)
	io.WriteString(h, "|")
	io.WriteString(h, headers["Authorization"])
	return hex.EncodeToString(h.Sum(nil))
}

// redactURL masks sensitive query parameter values for logging.
func redactURL(f *redact.Filter, raw string) string {
	base, q, ok := strings.Cut(raw, "?")
	if !ok {
		return raw
	}
	parts := strings.Split(q, "&")
	for i, p := range parts {
		if k, _, has := strings.Cut(p, "="); has && f.Sensitive(k) {
			parts[i] = k + "=" + redact.Mask
		}
	}
	return base + "?" + strings.Join(parts, "&")
}

// parseJSONResponse decodes a JSON body into ResponseObject. An empty or
// unparseable body yields Success=false with the parse error logged,
// including the byte offset for syntax errors.
func parseJSONResponse(ctx context.Context, resp *ServiceResponse) ParsedResult {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("svcclient"))

	var result ParsedResult
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		log.Error("empty response body", logger.Status(resp.StatusCode))
		return result
	}

	var obj any
	if err := json.Unmarshal(resp.Body, &obj); err != nil {
		offset := -1
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			offset = int(syn.Offset)
		}
		log.Error("response parse failed", logger.Err(err), logger.Int("offset", offset))
		return result
	}
	if obj == nil {
		log.Error("null response body")
		return result
	}

	result.Success = true
	result.ResponseObject = obj
	return result
}

var (
	metricsOnce sync.Once
	callsTotal  *prometheus.CounterVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		callsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "svc_outbound_requests_total",
			Help: "Llamadas salientes del pipeline por acción y resultado",
		}, []string{"action", "result"})
		prometheus.MustRegister(callsTotal)
	})
}
