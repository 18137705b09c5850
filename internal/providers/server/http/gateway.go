package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tim-schneider/nexsync/config"
	"github.com/tim-schneider/nexsync/internal/providers/shared/tlsconfig"
	"github.com/tim-schneider/nexsync/resource"
	"github.com/tim-schneider/nexsync/schema"
	"github.com/tim-schneider/nexsync/server"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultMediaType   = "application/json"
	maxResponseBytes   = 8 << 20

	statusPath = "/service/rest/v1/status"
)

var _ server.CollectionClient = (*Gateway)(nil)

// Gateway talks to the repository manager's REST API, one collection
// endpoint per resource type.
type Gateway struct {
	baseURL        *url.URL
	defaultHeaders map[string]string
	auth           authConfig
	client         *http.Client
	limiter        *rate.Limiter
}

func NewGateway(cfg config.Server) (*Gateway, error) {
	baseURL, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	auth, err := buildAuthConfig(cfg.Auth)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := tlsconfig.Build(cfg.TLS, "server")
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	if cfg.RequestsPerSecond < 0 {
		return nil, validationError("server.requests-per-second must not be negative", nil)
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Gateway{
		baseURL:        baseURL,
		defaultHeaders: cloneStringMap(cfg.DefaultHeaders),
		auth:           auth,
		limiter:        limiter,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

func (g *Gateway) List(ctx context.Context, rt schema.ResourceType) ([]resource.Doc, error) {
	body, _, err := g.execute(ctx, http.MethodGet, listPath(rt), nil)
	if err != nil {
		return nil, err
	}
	return g.decodeListResponse(ctx, rt, body)
}

func (g *Gateway) Create(ctx context.Context, rt schema.ResourceType, doc resource.Doc) error {
	_, _, err := g.execute(ctx, http.MethodPost, rt.EndpointPath, doc)
	return err
}

func (g *Gateway) Update(ctx context.Context, rt schema.ResourceType, naturalKey string, doc resource.Doc) error {
	_, _, err := g.execute(ctx, http.MethodPut, itemPath(rt, naturalKey), doc)
	return err
}

func (g *Gateway) Delete(ctx context.Context, rt schema.ResourceType, naturalKey string) error {
	_, _, err := g.execute(ctx, http.MethodDelete, itemPath(rt, naturalKey), nil)
	return err
}

// GetSingleton fetches the one document a singleton endpoint holds. An
// endpoint that exchanges a bare JSON array (active realms) is wrapped
// under the type's list attribute so the engine always sees an object.
func (g *Gateway) GetSingleton(ctx context.Context, rt schema.ResourceType) (resource.Doc, error) {
	body, _, err := g.execute(ctx, http.MethodGet, rt.EndpointPath, nil)
	if err != nil {
		return nil, err
	}

	if rt.SingletonListAttribute == "" {
		return decodeDocResponse(body)
	}

	value, err := decodeJSONResponse(body)
	if err != nil {
		return nil, err
	}
	items, isArray := value.([]any)
	if !isArray {
		return nil, validationError("singleton response is not a JSON array", nil)
	}
	return resource.Doc{rt.SingletonListAttribute: items}, nil
}

func (g *Gateway) PutSingleton(ctx context.Context, rt schema.ResourceType, doc resource.Doc) error {
	var body resource.Value = doc
	if rt.SingletonListAttribute != "" {
		attr, found := doc[rt.SingletonListAttribute]
		if !found {
			return validationError("singleton document lacks its list attribute "+rt.SingletonListAttribute, nil)
		}
		body = attr
	}

	_, _, err := g.execute(ctx, http.MethodPut, rt.EndpointPath, body)
	return err
}

func (g *Gateway) execute(ctx context.Context, method string, endpointPath string, body resource.Value) ([]byte, http.Header, error) {
	request, err := g.newRequest(ctx, method, endpointPath, body)
	if err != nil {
		return nil, nil, err
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, nil, transportError("request cancelled while rate limited", err)
		}
	}

	response, err := g.client.Do(request)
	if err != nil {
		return nil, nil, transportError("remote request failed", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, transportError("failed to read remote response body", err)
	}

	if response.StatusCode >= http.StatusBadRequest {
		return nil, nil, classifyStatusError(response.StatusCode, responseBody)
	}

	return responseBody, response.Header.Clone(), nil
}

func (g *Gateway) newRequest(ctx context.Context, method string, endpointPath string, body resource.Value) (*http.Request, error) {
	targetURL, err := g.resolveRequestURL(endpointPath)
	if err != nil {
		return nil, err
	}

	requestBody, err := encodeRequestBody(body)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if len(requestBody) > 0 {
		bodyReader = bytes.NewReader(requestBody)
	}

	request, err := http.NewRequestWithContext(ctx, method, targetURL, bodyReader)
	if err != nil {
		return nil, internalError("failed to create remote request", err)
	}

	request.Header.Set("Accept", defaultMediaType)
	request.Header.Set("X-Request-Id", uuid.NewString())
	if len(requestBody) > 0 {
		request.Header.Set("Content-Type", defaultMediaType)
	}

	if len(g.defaultHeaders) > 0 {
		keys := make([]string, 0, len(g.defaultHeaders))
		for key := range g.defaultHeaders {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			request.Header.Set(key, g.defaultHeaders[key])
		}
	}

	if err := g.applyAuth(request); err != nil {
		return nil, err
	}

	return request, nil
}

func (g *Gateway) resolveRequestURL(requestPath string) (string, error) {
	if parsed, err := url.Parse(requestPath); err == nil && parsed.Scheme != "" {
		return "", validationError("endpoint path must be relative to server.base-url", nil)
	}

	target := *g.baseURL
	target.Path = joinBaseAndRequestPath(g.baseURL.Path, requestPath)
	return target.String(), nil
}

func listPath(rt schema.ResourceType) string {
	if rt.ListPath != "" {
		return rt.ListPath
	}
	return rt.EndpointPath
}

func itemPath(rt schema.ResourceType, naturalKey string) string {
	return rt.EndpointPath + "/" + url.PathEscape(naturalKey)
}

func joinBaseAndRequestPath(basePath string, requestPath string) string {
	trimmedBase := strings.TrimSuffix(basePath, "/")
	if !strings.HasPrefix(requestPath, "/") {
		requestPath = "/" + requestPath
	}
	return trimmedBase + requestPath
}

func parseBaseURL(raw string) (*url.URL, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, validationError("server.base-url is required", nil)
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return nil, validationError("server.base-url is invalid", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, validationError("server.base-url must use http or https", nil)
	}
	if parsed.Host == "" {
		return nil, validationError("server.base-url host is required", nil)
	}

	if parsed.Path == "" {
		parsed.Path = "/"
	}

	return parsed, nil
}

func cloneStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}

	cloned := make(map[string]string, len(values))
	for key, value := range values {
		cloned[key] = value
	}
	return cloned
}
