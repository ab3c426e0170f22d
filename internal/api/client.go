// Package api is the client of the Gradle Enterprise Builds API, exposing the
// endpoints consumed by the report: list of builds and the gradle specific
// attributes and build cache performance of a single Build Scan.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = time.Minute

	defaultMaxIdleConns        = 100
	defaultMaxConnsPerHost     = 100
	defaultMaxIdleConnsPerHost = 100
	defaultUserAgent           = "gebr"

	apiPathBuilds                      = "/api/builds"
	apiPathGradleAttributes            = "/api/builds/%s/gradle-attributes"
	apiPathGradleBuildCachePerformance = "/api/builds/%s/gradle-build-cache-performance"
)

// BuildsAPI is the subset of the Builds API used to build the report.
type BuildsAPI interface {
	GetBuilds(ctx context.Context, query *BuildsQuery) ([]Build, error)
	GetGradleAttributes(ctx context.Context, id string) (*GradleAttributes, error)
	GetGradleBuildCachePerformance(ctx context.Context, id string) (*GradleBuildCachePerformance, error)
}

var _ BuildsAPI = (*HTTPClient)(nil)

// HTTPClient provides the Builds API over HTTP, authenticating every
// request with the access key as bearer token.
type HTTPClient struct {
	Client    *http.Client
	Endpoint  string // Example: https://ge.example.com
	Token     string
	UserAgent string
}

// NewHTTPClient creates a new client setting the http attributes to improve
// the connection reuse. timeout bounds the connect, TLS handshake, response
// headers and the whole exchange of a single request.
func NewHTTPClient(endpoint, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = defaultMaxIdleConns
	t.MaxConnsPerHost = defaultMaxConnsPerHost
	t.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	t.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	t.TLSHandshakeTimeout = timeout
	t.ResponseHeaderTimeout = timeout

	return &HTTPClient{
		Endpoint:  strings.TrimSuffix(endpoint, "/"),
		Token:     token,
		UserAgent: defaultUserAgent,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: t,
		},
	}
}

// GetBuilds returns one page of builds matching the query.
func (c *HTTPClient) GetBuilds(ctx context.Context, query *BuildsQuery) ([]Build, error) {
	params := url.Values{}
	if query != nil {
		if query.SinceBuild != nil {
			params.Set("sinceBuild", *query.SinceBuild)
		} else if query.Since != nil {
			params.Set("since", strconv.FormatInt(*query.Since, 10))
		}
		if query.MaxBuilds > 0 {
			params.Set("maxBuilds", strconv.Itoa(query.MaxBuilds))
		}
	}
	builds := []Build{}
	if err := c.do(ctx, apiPathBuilds, params, &builds); err != nil {
		return nil, err
	}
	return builds, nil
}

// GetGradleAttributes returns the attributes of a Gradle Build Scan.
func (c *HTTPClient) GetGradleAttributes(ctx context.Context, id string) (*GradleAttributes, error) {
	out := &GradleAttributes{}
	if err := c.do(ctx, fmt.Sprintf(apiPathGradleAttributes, url.PathEscape(id)), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetGradleBuildCachePerformance returns the build cache performance of a
// Gradle Build Scan.
func (c *HTTPClient) GetGradleBuildCachePerformance(ctx context.Context, id string) (*GradleBuildCachePerformance, error) {
	out := &GradleBuildCachePerformance{}
	if err := c.do(ctx, fmt.Sprintf(apiPathGradleBuildCachePerformance, url.PathEscape(id)), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// do sends an authenticated GET request and decodes the json response
// body into out.
func (c *HTTPClient) do(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := c.Endpoint + path
	if len(params) > 0 {
		reqURL = reqURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "couldn't create the request")
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	res, err := c.client().Do(req)
	if err != nil {
		return errors.Wrapf(err, "couldn't call %s", path)
	}
	defer func() {
		// drain the response body so we can reuse this connection.
		if _, cerr := io.Copy(io.Discard, io.LimitReader(res.Body, 4096)); cerr != nil {
			log.WithError(cerr).Debug("failed to drain response body")
		}
		res.Body.Close()
	}()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrapf(err, "couldn't read response body of %s", path)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return newError(res.StatusCode, path, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "couldn't unmarshal response body of %s", path)
	}
	return nil
}

// client returns the default client if a custom client is not defined.
func (c *HTTPClient) client() *http.Client {
	if c.Client == nil {
		return http.DefaultClient
	}
	return c.Client
}
