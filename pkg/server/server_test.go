package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/qnkhuat/termshow/pkg/client"
	"github.com/qnkhuat/termshow/pkg/message"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New("localhost:0", filepath.Join(t.TempDir(), "db"), "")
	require.NoError(t, err)
	s.cost = bcrypt.MinCost

	ts := httptest.NewServer(s.Handler())
	s.publicURL = ts.URL
	t.Cleanup(func() {
		ts.Close()
		s.db.Close()
	})
	return s, ts
}

func postForm(t *testing.T, ts *httptest.Server, form url.Values) (int, string) {
	t.Helper()
	resp, err := http.PostForm(ts.URL+"/scripts", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func deleteForm(t *testing.T, target, secret string) (int, string) {
	t.Helper()
	body := url.Values{"secret": {secret}}.Encode()
	req, err := http.NewRequest(http.MethodDelete, target, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(out)
}

func get(t *testing.T, target string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	code, body := get(t, ts.URL+"/health")
	assert.Equal(t, 200, code)
	assert.Contains(t, string(body), "I'm fine")
}

func TestUploadStoresSession(t *testing.T) {
	s, ts := newTestServer(t)
	script := "Script started\nhi\x1b[0m\x00\xff"

	code, link := postForm(t, ts, url.Values{
		"scriptfile": {script},
		"timingfile": {"0.100000 7\n"},
		"cols":       {"132"},
		"lines":      {"43"},
		"secret":     {"s3cret"},
		"extra":      {"ignored"},
	})
	require.Equal(t, 200, code, link)
	require.True(t, strings.HasPrefix(link, ts.URL+"/s/"))

	n, err := s.db.CountSessions()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	code, raw := get(t, link+"/script")
	assert.Equal(t, 200, code)
	assert.Equal(t, script, string(raw))

	code, timing := get(t, link+"/timing")
	assert.Equal(t, 200, code)
	assert.Equal(t, "0.100000 7\n", string(timing))

	code, body := get(t, link)
	require.Equal(t, 200, code)
	var info SessionInfo
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, link, info.URL)
	assert.Equal(t, uint(132), info.Cols)
	assert.Equal(t, uint(43), info.Lines)
	assert.Equal(t, script, string(info.Script))
}

func TestUploadStoresCompressedScriptAndHashedSecret(t *testing.T) {
	s, ts := newTestServer(t)
	script := "header\n" + strings.Repeat("hello world ", 500)
	code, link := postForm(t, ts, url.Values{
		"scriptfile": {script},
		"timingfile": {"0 6000\n"},
		"secret":     {"s3cret"},
	})
	require.Equal(t, 200, code)

	rec, ok, err := s.db.GetSession(link[strings.LastIndex(link, "/")+1:])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Less(t, len(rec.Script), len(script))
	assert.NotContains(t, string(rec.SecretHash), "s3cret")
	assert.Equal(t, uint(80), rec.Cols)
	assert.Equal(t, uint(25), rec.Lines)
}

func TestUploadRejectsBadForms(t *testing.T) {
	_, ts := newTestServer(t)
	good := func() url.Values {
		return url.Values{
			"scriptfile": {"h\nabc"},
			"timingfile": {"0 3\n"},
			"secret":     {"s3cret"},
		}
	}

	for name, mutate := range map[string]func(url.Values){
		"no script": func(v url.Values) { v.Del("scriptfile") },
		"no timing": func(v url.Values) { v.Del("timingfile") },
		"no secret": func(v url.Values) { v.Del("secret") },
		"bad timing": func(v url.Values) {
			v.Set("timingfile", "soon 3\n")
		},
		"bad cols": func(v url.Values) {
			v.Set("cols", "wide")
		},
		"long secret": func(v url.Values) {
			v.Set("secret", strings.Repeat("x", MAX_SECRET_LENGTH+1))
		},
	} {
		form := good()
		mutate(form)
		code, _ := postForm(t, ts, form)
		assert.Equal(t, 400, code, name)
	}
}

func TestDeleteSession(t *testing.T) {
	s, ts := newTestServer(t)
	code, link := postForm(t, ts, url.Values{
		"scriptfile": {"h\nabc"},
		"timingfile": {"0 3\n"},
		"secret":     {"s3cret"},
	})
	require.Equal(t, 200, code)

	code, body := deleteForm(t, link, "wrong")
	assert.Equal(t, 401, code)
	assert.Contains(t, body, "does not own")

	code, body = deleteForm(t, link, "s3cret")
	assert.Equal(t, 200, code)
	assert.Equal(t, "Deleted "+link, body)

	n, err := s.db.CountSessions()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	code, _ = deleteForm(t, link, "s3cret")
	assert.Equal(t, 404, code)
	code, _ = get(t, link)
	assert.Equal(t, 404, code)
}

func TestClientRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)
	c, err := client.New(client.DefaultConfig(ts.URL))
	require.NoError(t, err)

	session := &message.TermSession{
		Script: []byte(message.ConvertedHeader + "$ ls\r\n\x1b[1mREADME\x1b[0m\r\n"),
		Timing: "0.000000 6\n0.250000 19\n",
		Cols:   100,
		Rows:   30,
	}
	ctx := context.Background()
	link, err := c.Upload(ctx, session, "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, ts.URL+"/s/"))

	_, raw := get(t, link+"/script")
	assert.Equal(t, session.Script, raw)

	_, err = c.Delete(ctx, link, "not the secret")
	var re *client.RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 401, re.StatusCode)

	out, err := c.Delete(ctx, link, "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, "Deleted "+link, out)
}

func TestCompressRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("\x1b[0m\x00\xff", 100))
	z, err := compress(data)
	require.NoError(t, err)
	back, err := decompress(z)
	require.NoError(t, err)
	assert.Equal(t, data, back)

	_, err = decompress([]byte("not gzip"))
	assert.Error(t, err)
}
