package api

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/AVHub/internal/provider"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newUpstream(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	thumb := pngBytes(t, 100, 50)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/thumb.png":
			// 显式声明为 octet-stream，迫使 relay 嗅探。
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(thumb)
		case "/big.bin":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(make([]byte, 64))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRelay(srv *httptest.Server, maxBytes int64) *Relay {
	return NewRelay(RelayOptions{
		Client:    srv.Client(),
		Providers: []provider.Info{{ID: "alpha", BaseURL: srv.URL}},
		MaxBytes:  maxBytes,
	})
}

func relayGet(h http.Handler, target string, extra string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/relay?url="+url.QueryEscape(target)+extra, nil))
	return rec
}

func TestRelay_SniffsContentType(t *testing.T) {
	var hits atomic.Int32
	srv := newUpstream(t, &hits)
	rl := newTestRelay(srv, 0)

	rec := relayGet(rl, srv.URL+"/thumb.png", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=21600", rec.Header().Get("Cache-Control"))

	cfg, _, err := image.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
}

func TestRelay_ResizesImages(t *testing.T) {
	var hits atomic.Int32
	srv := newUpstream(t, &hits)
	rl := newTestRelay(srv, 0)

	rec := relayGet(rl, srv.URL+"/thumb.png", "&w=40")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	cfg, _, err := image.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 20, cfg.Height)
}

func TestRelay_RejectsBeforeFetching(t *testing.T) {
	var hits atomic.Int32
	srv := newUpstream(t, &hits)
	rl := newTestRelay(srv, 0)

	cases := map[string]struct {
		target string
		extra  string
		status int
	}{
		"missing url":    {target: "", status: http.StatusBadRequest},
		"relative url":   {target: "/thumb.png", status: http.StatusBadRequest},
		"ftp url":        {target: "ftp://cdn.example/x.png", status: http.StatusBadRequest},
		"foreign host":   {target: "https://evil.example/x.png", status: http.StatusForbidden},
		"bad width":      {target: srv.URL + "/thumb.png", extra: "&w=abc", status: http.StatusBadRequest},
		"width too wide": {target: srv.URL + "/thumb.png", extra: "&w=99999", status: http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := relayGet(rl, tc.target, tc.extra)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	assert.EqualValues(t, 0, hits.Load())
}

func TestRelay_UpstreamFailures(t *testing.T) {
	var hits atomic.Int32
	srv := newUpstream(t, &hits)
	rl := newTestRelay(srv, 16)

	rec := relayGet(rl, srv.URL+"/missing.png", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"errorKind":"fetch"`)

	rec = relayGet(rl, srv.URL+"/big.bin", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "exceeds 16 bytes")
}

func TestRelay_Allowed(t *testing.T) {
	rl := NewRelay(RelayOptions{
		Providers:  []provider.Info{{BaseURL: "https://www.tubewp.example"}},
		AllowHosts: []string{" CDN.Images.example "},
	})
	assert.True(t, rl.Allowed("tubewp.example"))
	assert.True(t, rl.Allowed("thumbs.tubewp.example"))
	assert.True(t, rl.Allowed("cdn.images.example"))
	assert.False(t, rl.Allowed("nottubewp.example"))
	assert.False(t, rl.Allowed("images.example"))
	assert.False(t, rl.Allowed(""))
}

func TestRouter_MountsRelay(t *testing.T) {
	var hits atomic.Int32
	srv := newUpstream(t, &hits)
	reg, err := provider.NewRegistry(&stubScraper{id: "alpha"})
	require.NoError(t, err)
	h := NewRouter(Options{Registry: reg, Relay: newTestRelay(srv, 0)})

	rec := relayGet(h, srv.URL+"/thumb.png", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, hits.Load())
}
