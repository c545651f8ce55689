// Package greendizer provides the authenticated session against the
// Greendizer API that every resource proxy borrows its transport from.
package greendizer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/greendizer/client-go/pkg/greendizer/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultAPIRoot is where the hosted API lives.
const DefaultAPIRoot string = "https://api.greendizer.com/"

// Client is the shared session handle. Send issues a single request for a
// URI relative to the API root and returns the response with its drained
// body. Redirects are never followed; callers that expect one read the
// location header themselves.
type Client interface {
	Send(ctx context.Context, method, uri string, body io.Reader, headers map[string][]string) (*http.Response, []byte, error)
}

func Debug(enabled string) func(*gdClient) {
	return func(c *gdClient) {
		c.debug = (enabled == "true")
	}
}

// AccessToken authenticates the session with an OAuth bearer token.
func AccessToken(token string) func(*gdClient) {
	return func(c *gdClient) {
		c.authorization = "Bearer " + token
	}
}

// EmailPassword authenticates the session with basic credentials.
func EmailPassword(email, password string) func(*gdClient) {
	return func(c *gdClient) {
		c.email = email
		c.password = password
		c.authorization = ""
	}
}

func UserAgent(ua string) func(*gdClient) {
	return func(c *gdClient) {
		c.userAgent = ua
	}
}

func New(apiRoot string, options ...func(*gdClient)) Client {
	c := &gdClient{
		apiRoot:   strings.TrimSuffix(apiRoot, "/") + "/",
		userAgent: "greendizer-client-go",
		debug:     false,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

type gdClient struct {
	apiRoot       string
	authorization string
	email         string
	password      string
	userAgent     string
	debug         bool
}

func (c gdClient) Send(ctx context.Context, method, uri string, body io.Reader, headers map[string][]string) (*http.Response, []byte, error) {
	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiRoot+strings.TrimPrefix(uri, "/"), body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrTransport)
	}

	req.Header.Set("User-Agent", c.userAgent)

	if c.authorization != "" {
		req.Header.Set("Authorization", c.authorization)
	} else if c.email != "" {
		req.SetBasicAuth(c.email, c.password)
	}

	if _, ok := headers["Accept"]; !ok {
		req.Header.Set("Accept", "application/json")
	}

	for header, headerValue := range headers {
		for _, val := range headerValue {
			req.Header.Add(header, val)
		}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %s (%w)", err.Error(), errors.ErrTransport)
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %s (%w)", err.Error(), errors.ErrTransport)
	}

	if c.debug {
		if resp.StatusCode >= http.StatusBadRequest {
			if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusNotFound {
				reqbytes, _ := httputil.DumpRequest(req, false)
				respbytes, _ := httputil.DumpResponse(resp, false)

				log := logging.GetFromContext(ctx)
				log.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
			}
		}
	}

	return resp, respBody, nil
}
