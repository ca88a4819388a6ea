/*
Client for a showterm compatible server
- Upload : POST /scripts, retried once on any failure
- Delete : DELETE <session path>, never retried
Both send url encoded forms and answer with the server's plain text body.
*/
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/termshow/internal/cfg"
	"github.com/qnkhuat/termshow/pkg/message"
)

var encoder = schema.NewEncoder()

type Config struct {
	BaseURL string

	// Skip certificate verification on https. The public server has always
	// been used this way, so it stays on unless turned off explicitly.
	InsecureSkipVerify bool

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	UploadAttempts int
	DeleteAttempts int
}

func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:            baseURL,
		InsecureSkipVerify: true,
		ConnectTimeout:     cfg.CLIENT_CONNECT_TIMEOUT,
		ReadTimeout:        cfg.CLIENT_READ_TIMEOUT,
		UploadAttempts:     cfg.CLIENT_UPLOAD_ATTEMPTS,
		DeleteAttempts:     cfg.CLIENT_DELETE_ATTEMPTS,
	}
}

type Client struct {
	cfg  Config
	base *url.URL
	http *resty.Client
}

type Option func(*Client)

// WithTransport replaces the tuned transport, mostly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.SetTransport(rt)
	}
}

func New(conf Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(conf.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", conf.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", conf.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: missing host", conf.BaseURL)
	}

	r := resty.New().
		SetBaseURL(base.String()).
		SetTransport(NewTransport(conf, base)).
		SetTimeout(conf.ConnectTimeout+conf.ReadTimeout).
		SetHeader("User-Agent", "termshow/"+cfg.CLIENT_VERSION).
		SetLogger(log.StandardLogger())

	c := &Client{cfg: conf, base: base, http: r}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewTransport applies the connect and read timeouts, and on https the
// certificate policy from conf. The read timeout here only covers the wait
// for headers; New bounds the whole request, body included.
func NewTransport(conf Config, base *url.URL) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   conf.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   conf.ConnectTimeout,
		ResponseHeaderTimeout: conf.ReadTimeout,
	}
	if base.Scheme == "https" {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: conf.InsecureSkipVerify}
	}
	return t
}

func (c *Client) BaseURL() string {
	return c.base.String()
}

// Upload publishes s and returns the URL the server assigned to it.
func (c *Client) Upload(ctx context.Context, s *message.TermSession, secret string) (string, error) {
	form := url.Values{}
	if err := encoder.Encode(message.NewUploadRequest(s, secret), form); err != nil {
		return "", fmt.Errorf("encoding upload: %w", err)
	}
	log.Printf("Uploading %d script bytes, %dx%d to %s", len(s.Script), s.Cols, s.Rows, c.BaseURL())

	return retry(ctx, "upload", c.cfg.UploadAttempts, func() (string, error) {
		return c.send(ctx, http.MethodPost, "/scripts", form)
	})
}

// Delete removes the session at sessionURL. Only the path of sessionURL is
// used, the request always goes to the configured server.
func (c *Client) Delete(ctx context.Context, sessionURL, secret string) (string, error) {
	path, err := SessionPath(sessionURL)
	if err != nil {
		return "", err
	}
	form := url.Values{}
	if err := encoder.Encode(message.DeleteRequest{Secret: secret}, form); err != nil {
		return "", fmt.Errorf("encoding delete: %w", err)
	}
	log.Printf("Deleting %s at %s", path, c.BaseURL())

	return retry(ctx, "delete", c.cfg.DeleteAttempts, func() (string, error) {
		return c.send(ctx, http.MethodDelete, path, form)
	})
}

// SessionPath extracts the path component of a session URL.
func SessionPath(sessionURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(sessionURL))
	if err != nil {
		return "", fmt.Errorf("invalid session url %q: %w", sessionURL, err)
	}
	path := u.EscapedPath()
	if path == "" || path == "/" {
		return "", fmt.Errorf("invalid session url %q: no path", sessionURL)
	}
	return path, nil
}

func (c *Client) send(ctx context.Context, method, path string, form url.Values) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Execute(method, path)
	if err != nil {
		return "", c.transportError(err)
	}
	if !resp.IsSuccess() {
		return "", &RemoteError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return strings.TrimSpace(string(resp.Body())), nil
}

func (c *Client) transportError(err error) error {
	var netErr net.Error
	timeout := errors.As(err, &netErr) && netErr.Timeout()
	return &TransportError{BaseURL: c.BaseURL(), Timeout: timeout, Err: err}
}

// retry calls fn up to attempts times and returns the last error.
func retry(ctx context.Context, op string, attempts int, fn func() (string, error)) (string, error) {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var out string
		if out, err = fn(); err == nil {
			return out, nil
		}
		log.Printf("%s attempt %d/%d failed: %s", op, attempt, attempts, err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", err
}
