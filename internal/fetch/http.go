package fetch

import (
	"context"
	"net/http"

	"github.com/John-Robertt/AVHub/internal/infra/httpx"
	"github.com/John-Robertt/AVHub/internal/provider"
)

// HTTP 是基于 net/http 的默认抓取后端（UA 池 / 代理 / 限速来自 httpx）。
type HTTP struct {
	route   Route
	client  *http.Client
	maxBody int64
}

// NewHTTP 为一个 provider 构造抓取器。
func NewHTTP(opts Options) (*HTTP, error) {
	c, err := httpx.NewPageClient(opts.HTTP)
	if err != nil {
		return nil, err
	}
	return &HTTP{route: opts.Route, client: c, maxBody: opts.MaxBodyBytes}, nil
}

// NewHTTPWithClient 使用调用方提供的 client（测试或共享连接池时使用）。
func NewHTTPWithClient(route Route, c *http.Client) *HTTP {
	if c == nil {
		c = http.DefaultClient
	}
	return &HTTP{route: route, client: c}
}

func (h *HTTP) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	target, err := h.route.Target(rawURL)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &provider.FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", &provider.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := readBody(resp, h.maxBody)
	if err != nil {
		return "", &provider.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}
	if err := checkResponse(rawURL, resp.StatusCode, resp.Header.Get("Location"), resp.Request.URL.String(), body); err != nil {
		return "", err
	}
	return body, nil
}
