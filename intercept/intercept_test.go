package intercept

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/tubeshim/contentcoding"
	"github.com/use-agent/tubeshim/metrics"
	"github.com/use-agent/tubeshim/route"
	"github.com/use-agent/tubeshim/settings"
)

const playerDoc = `{"playabilityStatus":{"status":"OK"},"videoDetails":{"videoId":"dQw4w9WgXcQ","lengthSeconds":"212"},"adPlacements":[{"adPlacementRenderer":{}}],"playerAds":[{}],"adSlots":[{}]}`

const searchDoc = `{"contents":{"sectionListRenderer":{"contents":[{"itemSectionRenderer":{"contents":[{"videoRenderer":{"videoId":"v1"}},{"reelShelfRenderer":{}},{"videoRenderer":{"videoId":"v2"}}]}}]}}}`

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// upstream answers every request with status, header and body.
func upstream(status int, header http.Header, body []byte) roundTripFunc {
	return func(r *http.Request) (*http.Response, error) {
		h := header.Clone()
		if h == nil {
			h = make(http.Header)
		}
		return &http.Response{
			StatusCode:    status,
			Status:        strconv.Itoa(status) + " " + http.StatusText(status),
			Proto:         "HTTP/1.1",
			ProtoMajor:    1,
			ProtoMinor:    1,
			Header:        h,
			Body:          io.NopCloser(bytes.NewReader(body)),
			ContentLength: int64(len(body)),
			Request:       r,
		}, nil
	}
}

func jsonHeader(n int) http.Header {
	return http.Header{
		"Content-Type":   {"application/json; charset=UTF-8"},
		"Content-Length": {strconv.Itoa(n)},
		"X-Request-Id":   {"abc"},
	}
}

func get(t *testing.T, rt http.RoundTripper, rawURL string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, rawURL, strings.NewReader(`{}`))
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	return resp
}

func readAll(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return b
}

func keys(t *testing.T, b []byte) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, sonic.Unmarshal(b, &m))
	return m
}

func TestMatch(t *testing.T) {
	on := New(settings.NewStore(true))
	off := New(settings.NewStore(false))

	tests := []struct {
		name   string
		ic     *Interceptor
		status int
		url    string
		want   route.Route
	}{
		{"player ok", off, 200, "https://www.youtube.com/youtubei/v1/player?key=x", route.Player},
		{"player not found", on, 404, "https://www.youtube.com/youtubei/v1/player", route.None},
		{"player partial content", on, 206, "https://www.youtube.com/youtubei/v1/player", route.None},
		{"player redirect", on, 302, "https://www.youtube.com/youtubei/v1/player", route.None},
		{"search eligible", on, 200, "https://www.youtube.com/youtubei/v1/search", route.Search},
		{"search ineligible", off, 200, "https://www.youtube.com/youtubei/v1/search", route.None},
		{"other endpoint", on, 200, "https://www.youtube.com/youtubei/v1/next", route.None},
		{"nil flags", New(nil), 200, "https://www.youtube.com/youtubei/v1/search", route.None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tt.ic.Match(tt.status, u))
		})
	}
}

func TestTransport_RewritesPlayer(t *testing.T) {
	ic := New(settings.NewStore(false))
	rt := ic.Transport(upstream(200, jsonHeader(len(playerDoc)), []byte(playerDoc)))

	resp := get(t, rt, "https://www.youtube.com/youtubei/v1/player?prettyPrint=false")
	body := readAll(t, resp)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "abc", resp.Header.Get("X-Request-Id"))
	assert.Equal(t, "application/json; charset=UTF-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, strconv.Itoa(len(body)), resp.Header.Get("Content-Length"))
	assert.Equal(t, int64(len(body)), resp.ContentLength)

	doc := keys(t, body)
	assert.NotContains(t, doc, "adPlacements")
	assert.NotContains(t, doc, "playerAds")
	assert.NotContains(t, doc, "adSlots")
	assert.Contains(t, doc, "videoDetails")
	assert.Contains(t, doc, "playabilityStatus")
}

func TestTransport_Passthrough(t *testing.T) {
	tests := []struct {
		name   string
		flag   bool
		status int
		url    string
		body   string
	}{
		{"unmatched route", true, 200, "https://www.youtube.com/youtubei/v1/next", playerDoc},
		{"non-200 player", true, 500, "https://www.youtube.com/youtubei/v1/player", playerDoc},
		{"search with flag off", false, 200, "https://www.youtube.com/youtubei/v1/search", searchDoc},
		{"static asset", true, 200, "https://www.youtube.com/s/player/base.js", "var a=1;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var original *http.Response
			base := upstream(tt.status, jsonHeader(len(tt.body)), []byte(tt.body))
			capture := roundTripFunc(func(r *http.Request) (*http.Response, error) {
				resp, err := base(r)
				original = resp
				return resp, err
			})

			resp := get(t, New(settings.NewStore(tt.flag)).Transport(capture), tt.url)

			assert.Same(t, original, resp)
			assert.Equal(t, tt.body, string(readAll(t, resp)))
		})
	}
}

func TestTransport_SearchEligible(t *testing.T) {
	flags := settings.NewStore(true)
	rt := New(flags).Transport(upstream(200, jsonHeader(len(searchDoc)), []byte(searchDoc)))

	body := readAll(t, get(t, rt, "https://www.youtube.com/youtubei/v1/search"))
	assert.NotContains(t, string(body), "reelShelfRenderer")
	assert.Contains(t, string(body), `"v1"`)
	assert.Contains(t, string(body), `"v2"`)

	flags.SetHideShorts(false)
	body = readAll(t, get(t, rt, "https://www.youtube.com/youtubei/v1/search"))
	assert.Equal(t, searchDoc, string(body))
}

func TestTransport_FallbackKeepsOriginal(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"playabilityStatus":`},
		{"missing container", `{"videoDetails":{}}`},
		{"not an object", `[1,2,3]`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			ic := New(settings.NewStore(true), WithRecorder(m))
			header := jsonHeader(len(tt.body))
			rt := ic.Transport(upstream(200, header, []byte(tt.body)))

			resp := get(t, rt, "https://www.youtube.com/youtubei/v1/player")

			assert.Equal(t, 200, resp.StatusCode)
			assert.Equal(t, header, resp.Header)
			assert.Equal(t, tt.body, string(readAll(t, resp)))
			assert.Equal(t, 1.0, m.Snapshot().Fallback)
		})
	}
}

func TestTransport_FallbackKeepsDeclaredLength(t *testing.T) {
	header := jsonHeader(5000)
	rt := New(settings.NewStore(true)).Transport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		resp, err := upstream(200, header, nil)(r)
		resp.ContentLength = 5000
		return resp, err
	}))

	resp := get(t, rt, "https://www.youtube.com/youtubei/v1/player")

	assert.Equal(t, "5000", resp.Header.Get("Content-Length"))
	assert.Equal(t, int64(5000), resp.ContentLength)
	assert.Empty(t, readAll(t, resp))
}

func TestTransport_HeadIsPassedThrough(t *testing.T) {
	m := metrics.New()
	var orig *http.Response
	rt := New(settings.NewStore(true), WithRecorder(m)).Transport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		resp, err := upstream(200, jsonHeader(5000), nil)(r)
		resp.ContentLength = 5000
		orig = resp
		return resp, err
	}))

	req, err := http.NewRequest(http.MethodHead, "https://www.youtube.com/youtubei/v1/player", nil)
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)

	assert.Same(t, orig, resp)
	assert.Equal(t, "5000", resp.Header.Get("Content-Length"))
	assert.Equal(t, 1.0, m.Snapshot().Passthrough)
	assert.Equal(t, 0.0, m.Snapshot().Fallback)
}

func TestTransport_NetworkErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset by peer")
	rt := New(settings.NewStore(true)).Transport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, boom
	}))

	req, err := http.NewRequest(http.MethodPost, "https://www.youtube.com/youtubei/v1/player", nil)
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, boom)
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
func (failingBody) Close() error             { return nil }

func TestTransport_BodyReadErrorIsNetworkError(t *testing.T) {
	rt := New(settings.NewStore(true)).Transport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Header: http.Header{}, Body: failingBody{}, Request: r}, nil
	}))

	req, err := http.NewRequest(http.MethodPost, "https://www.youtube.com/youtubei/v1/player", nil)
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestTransport_PreservesContentCoding(t *testing.T) {
	for _, coding := range []string{"gzip", "br", "zstd", "deflate"} {
		t.Run(coding, func(t *testing.T) {
			enc, err := contentcoding.Encode(coding, []byte(playerDoc))
			require.NoError(t, err)

			header := jsonHeader(len(enc))
			header.Set("Content-Encoding", coding)
			rt := New(nil).Transport(upstream(200, header, enc))

			resp := get(t, rt, "https://www.youtube.com/youtubei/v1/player")
			raw := readAll(t, resp)
			assert.Equal(t, coding, resp.Header.Get("Content-Encoding"))
			assert.Equal(t, strconv.Itoa(len(raw)), resp.Header.Get("Content-Length"))

			plain, err := contentcoding.Decode(coding, raw)
			require.NoError(t, err)
			assert.NotContains(t, keys(t, plain), "adPlacements")
		})
	}
}

func TestTransport_UnknownCodingFallsBack(t *testing.T) {
	body := []byte("\x1f\x8bnot-really-compressed")
	header := jsonHeader(len(body))
	header.Set("Content-Encoding", "compress")

	resp := get(t, New(nil).Transport(upstream(200, header, body)), "https://www.youtube.com/youtubei/v1/player")
	assert.Equal(t, body, readAll(t, resp))
	assert.Equal(t, "compress", resp.Header.Get("Content-Encoding"))
}

func TestTransport_RecordsOutcomes(t *testing.T) {
	m := metrics.New()
	ic := New(settings.NewStore(true), WithRecorder(m))

	get(t, ic.Transport(upstream(200, nil, []byte(searchDoc))), "https://www.youtube.com/youtubei/v1/search")
	get(t, ic.Transport(upstream(200, nil, []byte(playerDoc))), "https://www.youtube.com/youtubei/v1/player")
	get(t, ic.Transport(upstream(200, nil, []byte(`{}`))), "https://www.youtube.com/youtubei/v1/browse")

	s := m.Snapshot()
	assert.Equal(t, 2.0, s.Transformed)
	assert.Equal(t, 1.0, s.Passthrough)
	assert.Equal(t, 0.0, s.Fallback)
}
