// Package fetch 实现 provider.Fetcher：直连 / 经 relay 拉取原始 HTML。
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"

	"github.com/John-Robertt/AVHub/internal/extract"
	"github.com/John-Robertt/AVHub/internal/infra/httpx"
	"github.com/John-Robertt/AVHub/internal/infra/snapshot"
	"github.com/John-Robertt/AVHub/internal/provider"
)

// 抓取后端（配置项 fetch.backend）。
const (
	BackendHTTP    = "http"
	BackendColly   = "colly"
	BackendBrowser = "browser"
)

const defaultMaxBody = 8 << 20

// Route 决定一个 provider 的请求是直连还是经 relay。
type Route struct {
	Provider      string
	WorkerURL     string
	RequiresRelay bool
}

// Target 返回实际请求的 URL。
//
// 约束：RequiresRelay 且没有 WorkerURL 时返回 *provider.ConfigurationError，调用方不得发起任何网络请求。
func (r Route) Target(rawURL string) (string, error) {
	u := strings.TrimSpace(rawURL)
	if !extract.IsAbsolute(u) {
		return "", &provider.FetchError{URL: rawURL, Err: fmt.Errorf("not an absolute http(s) url")}
	}
	w := strings.TrimSpace(r.WorkerURL)
	if w == "" {
		if r.RequiresRelay {
			return "", &provider.ConfigurationError{
				Provider: r.Provider,
				Setting:  "providers." + r.Provider + ".worker_url",
				Reason:   "this provider blocks direct requests and needs a relay",
			}
		}
		return u, nil
	}
	return extract.ProxyAsset(u, w), nil
}

// Options 是 New 的输入。
type Options struct {
	Route   Route
	Backend string
	HTTP    httpx.Options
	// MaxBodyBytes <=0 使用默认值（8 MiB）。
	MaxBodyBytes int64

	SnapshotMode  snapshot.Mode
	SnapshotStore snapshot.Store

	// Browser 在 Backend=browser 时必填；多个 provider 共享同一个浏览器进程。
	Browser *Browser
	Log     *logrus.Entry
}

// New 按配置构造 Fetcher，并在需要时套上快照装饰。
func New(opts Options) (provider.Fetcher, error) {
	var (
		f   provider.Fetcher
		err error
	)
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendHTTP:
		f, err = NewHTTP(opts)
	case BackendColly:
		f, err = NewColly(opts)
	case BackendBrowser:
		if opts.Browser == nil {
			return nil, fmt.Errorf("fetch.backend=browser 但未提供浏览器实例")
		}
		f = NewBrowserFetcher(opts.Browser, opts.Route)
	default:
		return nil, fmt.Errorf("未知 fetch.backend：%q（可选 http/colly/browser）", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	switch opts.SnapshotMode {
	case "", snapshot.ModeOff:
		return f, nil
	case snapshot.ModeReplay:
		return NewSnapshot(nil, opts.SnapshotStore, snapshot.ModeReplay, opts.Route.Provider, opts.Log), nil
	default:
		return NewSnapshot(f, opts.SnapshotStore, opts.SnapshotMode, opts.Route.Provider, opts.Log), nil
	}
}

// checkResponse 把 HTTP 结果转换为统一错误。
func checkResponse(rawURL string, status int, location, finalURL, body string) error {
	if status < 200 || status > 299 {
		fe := &provider.FetchError{URL: rawURL, StatusCode: status, Location: location}
		if reason := blockedReason(finalURL, body); reason != "" {
			fe.Err = &provider.BlockedError{URL: rawURL, Reason: reason}
		}
		return fe
	}
	if reason := blockedReason(finalURL, body); reason != "" {
		return &provider.FetchError{URL: rawURL, Err: &provider.BlockedError{URL: rawURL, Reason: reason}}
	}
	return nil
}

// blockedReason 识别“验证 / 拦截”页面；不尝试绕过，只让错误可解释。
func blockedReason(finalURL, body string) string {
	if u, err := url.Parse(finalURL); err == nil {
		p := strings.ToLower(u.Path)
		switch {
		case strings.Contains(p, "age-verif"), strings.Contains(p, "driver-verify"):
			return "age-verify"
		case strings.Contains(p, "/cdn-cgi/challenge"):
			return "cloudflare"
		}
	}
	head := body
	if len(head) > 4096 {
		head = head[:4096]
	}
	switch {
	case strings.Contains(head, "cf-browser-verification"), strings.Contains(head, "challenge-platform"):
		return "cloudflare"
	case strings.Contains(head, "<title>Just a moment...</title>"):
		return "cloudflare"
	}
	return ""
}

// readBody 按 Content-Type 声明的编码解码为 UTF-8，并限制最大长度。
func readBody(resp *http.Response, max int64) (string, error) {
	if max <= 0 {
		max = defaultMaxBody
	}
	r, err := charset.NewReader(io.LimitReader(resp.Body, max), resp.Header.Get("Content-Type"))
	if err != nil {
		r = io.LimitReader(resp.Body, max)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
