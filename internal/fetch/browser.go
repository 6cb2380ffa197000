package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/John-Robertt/AVHub/internal/infra/httpx"
	"github.com/John-Robertt/AVHub/internal/provider"
)

// Browser 是共享的 headless Chromium（第一次使用时才启动）。
// 用于必须执行 JS 才能拿到列表的 provider；不用于绕过验证页。
type Browser struct {
	Timeout     time.Duration
	StableAfter time.Duration
	ProxyURL    string

	once    sync.Once
	browser *rod.Browser
	err     error
}

func (b *Browser) connect() (*rod.Browser, error) {
	b.once.Do(func() {
		l := launcher.New().
			Headless(true).
			Set("no-sandbox").
			Set("disable-gpu").
			Set("disable-dev-shm-usage")
		if b.ProxyURL != "" {
			l = l.Proxy(b.ProxyURL)
		}
		u, err := l.Launch()
		if err != nil {
			b.err = fmt.Errorf("启动浏览器失败：%w", err)
			return
		}
		br := rod.New().ControlURL(u)
		if err := br.Connect(); err != nil {
			b.err = fmt.Errorf("连接浏览器失败：%w", err)
			return
		}
		b.browser = br
	})
	return b.browser, b.err
}

// Close 关闭浏览器进程（从未启动时为 no-op）。
func (b *Browser) Close() error {
	if b == nil || b.browser == nil {
		return nil
	}
	return b.browser.Close()
}

// BrowserFetcher 是某个 provider 使用共享 Browser 的 Fetcher。
type BrowserFetcher struct {
	b     *Browser
	route Route
}

func NewBrowserFetcher(b *Browser, route Route) *BrowserFetcher {
	return &BrowserFetcher{b: b, route: route}
}

func (f *BrowserFetcher) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	target, err := f.route.Target(rawURL)
	if err != nil {
		return "", err
	}
	br, err := f.b.connect()
	if err != nil {
		return "", &provider.FetchError{URL: rawURL, Err: err}
	}

	timeout := f.b.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	page, err := br.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return "", &provider.FetchError{URL: rawURL, Err: err}
	}
	defer page.Close()
	page = page.Context(ctx).Timeout(timeout)

	_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: httpx.RandomUA()})

	if err := page.Navigate(target); err != nil {
		return "", &provider.FetchError{URL: rawURL, Err: err}
	}
	stable := f.b.StableAfter
	if stable <= 0 {
		stable = time.Second
	}
	// 页面没有完全稳定仍然可以取 HTML。
	_ = page.WaitStable(stable)

	html, err := page.HTML()
	if err != nil {
		return "", &provider.FetchError{URL: rawURL, Err: err}
	}
	finalURL := target
	if info, err := page.Info(); err == nil {
		finalURL = info.URL
	}
	if err := checkResponse(rawURL, 200, "", finalURL, html); err != nil {
		return "", err
	}
	return html, nil
}
