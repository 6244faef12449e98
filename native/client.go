package native

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gitlab.com/xhrshim/xhrk"
)

// Client creates native requests sharing one transport and cookie jar
type Client struct {
	BaseURL         *url.URL
	UserAgent       string
	MaxResponseSize int64

	scheduler    xhrk.Scheduler
	http         *http.Client
	credentialed *http.Client
}

// NewClient from cfg. Async completions are posted through scheduler, nil
// runs them inline.
func NewClient(cfg *xhrk.Config, scheduler xhrk.Scheduler) (*Client, error) {
	if cfg == nil {
		cfg = &xhrk.Config{}
	}

	if scheduler == nil {
		scheduler = xhrk.InlineScheduler{}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cookie jar")
	}

	c := &Client{
		UserAgent:       cfg.UserAgent,
		MaxResponseSize: cfg.MaxResponseSize,
		scheduler:       scheduler,
	}

	if c.MaxResponseSize <= 0 {
		c.MaxResponseSize = xhrk.DefaultMaxResponseSize
	}

	if cfg.BaseURL != "" {
		c.BaseURL, err = url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "invalid base url")
		}
	}

	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	c.http = &http.Client{Timeout: timeout}
	c.credentialed = &http.Client{Timeout: timeout, Jar: jar}
	return c, nil
}

// NewRequest in the UNSENT state
func (c *Client) NewRequest() *Request {
	return newRequest(c)
}

// Factory of native requests, suitable for intercept.Install
func (c *Client) Factory() xhrk.Factory {
	return func() xhrk.Request {
		return c.NewRequest()
	}
}

// resolve rawurl against the base url, the result must be absolute
func (c *Client) resolve(rawurl string) (*url.URL, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, domError(SyntaxError, "invalid url %s", rawurl)
	}

	if c.BaseURL != nil {
		u = c.BaseURL.ResolveReference(u)
	}

	if !u.IsAbs() || u.Host == "" {
		return nil, domError(SyntaxError, "invalid url %s", rawurl)
	}
	return u, nil
}

type result struct {
	status     int
	statusText string
	header     http.Header
	body       []byte
	url        string
	err        error
	timedOut   bool
}

func (c *Client) roundTrip(req *http.Request, withCredentials bool) *result {
	client := c.http
	if withCredentials {
		client = c.credentialed
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return c.failed(req, err)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(io.LimitReader(resp.Body, c.MaxResponseSize))
	if err != nil {
		return c.failed(req, err)
	}

	if int64(len(body)) == c.MaxResponseSize {
		log.Warn().Str("url", req.URL.String()).Int64("max", c.MaxResponseSize).Msg("response body truncated")
	}

	log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("round trip")

	responseURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		responseURL = resp.Request.URL
	}
	stripped := *responseURL
	stripped.Fragment = ""

	return &result{
		status:     resp.StatusCode,
		statusText: strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "),
		header:     resp.Header,
		body:       body,
		url:        stripped.String(),
	}
}

func (c *Client) failed(req *http.Request, err error) *result {
	res := &result{err: err}
	if req.Context().Err() == context.DeadlineExceeded {
		res.timedOut = true
	}
	if t, ok := errors.Cause(err).(interface{ Timeout() bool }); ok && t.Timeout() {
		res.timedOut = true
	}
	log.Debug().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Bool("timeout", res.timedOut).Msg("round trip failed")
	return res
}
