package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewPageClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewPageClient(Options{ProxyURL: "http://127.0.0.1:8080"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("期望代理模式禁用 keep-alive")
	}
}

func TestNewPageClient_NoProxyKeepsDefault(t *testing.T) {
	c, err := NewPageClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if tr.Base.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive")
	}
	if tr.Limiter() != nil {
		t.Fatalf("未配置 rate 时不应启用限速")
	}
	if c.Timeout != defaultTimeout {
		t.Fatalf("期望默认超时 %v，实际 %v", defaultTimeout, c.Timeout)
	}
}

func TestNewPageClient_RejectsRelativeProxy(t *testing.T) {
	if _, err := NewPageClient(Options{ProxyURL: "127.0.0.1:8080/x"}); err == nil {
		t.Fatalf("期望非绝对 proxy url 报错")
	}
}

func TestNewAssetClient_ProxySwitch(t *testing.T) {
	c1, err := NewAssetClient(Options{ProxyURL: "http://127.0.0.1:8080"}, false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c1.Transport.(*Transport).Base.Proxy != nil {
		t.Fatalf("asset_proxy=false 时不应走代理")
	}

	c2, err := NewAssetClient(Options{ProxyURL: "http://127.0.0.1:8080"}, true)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c2.Transport.(*Transport).Base.Proxy == nil {
		t.Fatalf("asset_proxy=true 时应走代理")
	}

	if _, err := NewAssetClient(Options{}, true); err == nil {
		t.Fatalf("期望 asset_proxy=true 且无代理时报错")
	}
}

func TestTransport_SetsUserAgentAndNoRetry(t *testing.T) {
	calls := 0
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		ua = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewPageClient(Options{UserAgents: []string{"test-agent/1.0"}})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp.Body.Close()
	if calls != 1 {
		t.Fatalf("期望只请求 1 次（不重试），实际 %d", calls)
	}
	if ua != "test-agent/1.0" {
		t.Fatalf("期望 UA=test-agent/1.0，实际 %q", ua)
	}
}

func TestTransport_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c, err := NewPageClient(Options{RatePerSecond: 0.001, Burst: 1})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("首个请求应消耗 burst 直接通过：%v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if _, err := c.Do(req); err == nil {
		t.Fatalf("期望第二个请求因限速等待超出 ctx 而失败")
	}
}
