package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnkhuat/termshow/pkg/message"
)

type stubTransport struct {
	calls   int
	respond func(n int, r *http.Request) (*http.Response, error)
}

func (s *stubTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	s.calls += 1
	return s.respond(s.calls, r)
}

func textResponse(r *http.Request, code int, body string) *http.Response {
	return &http.Response{
		StatusCode:    code,
		Status:        fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Header:        http.Header{"Content-Type": {"text/plain"}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}
}

func newStubClient(t *testing.T, stub *stubTransport) *Client {
	t.Helper()
	c, err := New(DefaultConfig("https://showterm.example"), WithTransport(stub))
	require.NoError(t, err)
	return c
}

var session = &message.TermSession{
	Script: []byte(message.ConvertedHeader + "hi\x1b[0m\x00\xff"),
	Timing: "0.000000 7\n",
	Cols:   80,
	Rows:   24,
}

func TestUploadRetriesOnceThenSucceeds(t *testing.T) {
	stub := &stubTransport{respond: func(n int, r *http.Request) (*http.Response, error) {
		if n == 1 {
			return nil, errors.New("connection reset by peer")
		}
		return textResponse(r, http.StatusOK, "https://showterm.example/s/abc\n"), nil
	}}

	got, err := newStubClient(t, stub).Upload(context.Background(), session, "secret")
	require.NoError(t, err)
	assert.Equal(t, "https://showterm.example/s/abc", got)
	assert.Equal(t, 2, stub.calls)
}

func TestUploadGivesUpAfterTwoAttempts(t *testing.T) {
	second := errors.New("second failure")
	stub := &stubTransport{respond: func(n int, r *http.Request) (*http.Response, error) {
		if n == 1 {
			return nil, errors.New("first failure")
		}
		return nil, second
	}}

	_, err := newStubClient(t, stub).Upload(context.Background(), session, "secret")
	require.Error(t, err)
	assert.Equal(t, 2, stub.calls)
	assert.ErrorIs(t, err, second)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.False(t, te.Timeout)
	assert.Contains(t, err.Error(), "could not connect to https://showterm.example")
}

func TestUploadRetriesRemoteErrors(t *testing.T) {
	stub := &stubTransport{respond: func(n int, r *http.Request) (*http.Response, error) {
		return textResponse(r, http.StatusInternalServerError, fmt.Sprintf("failure %d", n)), nil
	}}

	_, err := newStubClient(t, stub).Upload(context.Background(), session, "secret")
	require.Error(t, err)
	assert.Equal(t, 2, stub.calls)
	assert.Equal(t, "failure 2", err.Error())

	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
}

func TestDeleteNeverRetries(t *testing.T) {
	stub := &stubTransport{respond: func(n int, r *http.Request) (*http.Response, error) {
		return nil, errors.New("no route to host")
	}}

	_, err := newStubClient(t, stub).Delete(context.Background(), "https://showterm.example/s/abc", "secret")
	require.Error(t, err)
	assert.Equal(t, 1, stub.calls)
}

func TestDeleteRemoteErrorIsBody(t *testing.T) {
	stub := &stubTransport{respond: func(n int, r *http.Request) (*http.Response, error) {
		return textResponse(r, http.StatusUnauthorized, "That secret does not own this session\n"), nil
	}}

	_, err := newStubClient(t, stub).Delete(context.Background(), "https://showterm.example/s/abc", "nope")
	require.Error(t, err)
	assert.Equal(t, "That secret does not own this session\n", err.Error())
	assert.Equal(t, 1, stub.calls)
}

func TestUploadSendsForm(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scripts", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		fmt.Fprintf(w, "http://%s/s/1", r.Host)
	}))
	defer srv.Close()

	c, err := New(DefaultConfig(srv.URL))
	require.NoError(t, err)
	link, err := c.Upload(context.Background(), session, "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/s/1", link)

	assert.Equal(t, string(session.Script), got.Get("scriptfile"))
	assert.Equal(t, session.Timing, got.Get("timingfile"))
	assert.Equal(t, "80", got.Get("cols"))
	assert.Equal(t, "24", got.Get("lines"))
	assert.Equal(t, "0123456789abcdef0123456789abcdef", got.Get("secret"))
}

func TestDeleteUsesOnlyThePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/s/abc", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		form, err := url.ParseQuery(string(body))
		require.NoError(t, err)
		assert.Equal(t, "s3cret", form.Get("secret"))
		fmt.Fprint(w, "Deleted")
	}))
	defer srv.Close()

	c, err := New(DefaultConfig(srv.URL))
	require.NoError(t, err)
	got, err := c.Delete(context.Background(), "https://elsewhere.example/s/abc?from=mail", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Deleted", got)
}

func TestReadTimeoutBecomesConnectError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	conf := DefaultConfig(srv.URL)
	conf.ReadTimeout = 50 * time.Millisecond
	c, err := New(conf)
	require.NoError(t, err)

	_, err = c.Delete(context.Background(), srv.URL+"/s/slow", "secret")
	require.Error(t, err)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Timeout)
	assert.Equal(t, "could not connect to "+srv.URL, err.Error())
}

func TestStalledBodyBecomesConnectError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "partial")
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	conf := DefaultConfig(srv.URL)
	conf.ConnectTimeout = 50 * time.Millisecond
	conf.ReadTimeout = 50 * time.Millisecond
	c, err := New(conf)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Upload(context.Background(), session, "secret")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Timeout)
	assert.Equal(t, "could not connect to "+srv.URL, err.Error())
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, base := range []string{"ftp://showterm.example", "showterm.example", "http://"} {
		_, err := New(DefaultConfig(base))
		assert.Error(t, err, base)
	}
}

func TestNewTransportCertificatePolicy(t *testing.T) {
	secure, _ := url.Parse("https://showterm.example")
	plain, _ := url.Parse("http://localhost:3000")

	conf := DefaultConfig(secure.String())
	tr := NewTransport(conf, secure)
	require.NotNil(t, tr.TLSClientConfig)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
	assert.Equal(t, conf.ConnectTimeout, tr.TLSHandshakeTimeout)
	assert.Equal(t, conf.ReadTimeout, tr.ResponseHeaderTimeout)

	conf.InsecureSkipVerify = false
	assert.False(t, NewTransport(conf, secure).TLSClientConfig.InsecureSkipVerify)

	assert.Nil(t, NewTransport(conf, plain).TLSClientConfig)
}

func TestSessionPath(t *testing.T) {
	path, err := SessionPath("https://showterm.io/7b5f8d42ba021511e627e")
	require.NoError(t, err)
	assert.Equal(t, "/7b5f8d42ba021511e627e", path)

	_, err = SessionPath("https://showterm.io/")
	assert.Error(t, err)
	_, err = SessionPath("")
	assert.Error(t, err)
}
