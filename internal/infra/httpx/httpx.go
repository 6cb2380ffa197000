package httpx

import (
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultTimeout = 20 * time.Second

// Options 描述一个 provider 的出站 HTTP 策略。
type Options struct {
	// ProxyURL 非空时所有请求走该正向代理，并禁用 keep-alive（代理池轮换依赖每请求新连接）。
	ProxyURL string
	// Timeout 为单请求总超时；<=0 使用默认值。
	Timeout time.Duration
	// RatePerSecond >0 时启用令牌桶限速；Burst<1 按 1 处理。
	RatePerSecond float64
	Burst         int
	// UserAgents 非空时替换内置 UA 池。
	UserAgents []string
}

// Transport 把“UA 池 + 代理 + keep-alive 策略 + 限速”固化为统一策略。
//
// 约束：
// - 不做重试（Fetcher 层不重试，重试策略属于调用方）
// - 限速等待受 request context 控制，取消时直接返回 ctx 错误
type Transport struct {
	Base *http.Transport

	ua      *uaPool
	limiter *rate.Limiter

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" && t.ua != nil {
		r.Header.Set("User-Agent", t.ua.random())
	}
	if r.Header.Get("Accept-Language") == "" {
		r.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}
	if t.DisableKeepAlives {
		r.Close = true
	}
	return t.Base.RoundTrip(r)
}

// Limiter 返回当前限速器（未启用时为 nil）。
func (t *Transport) Limiter() *rate.Limiter { return t.limiter }

// NewPageClient 构造用于抓取 provider HTML 页面的 client。
func NewPageClient(opts Options) (*http.Client, error) {
	return newClient(opts)
}

// NewAssetClient 构造 relay 端点拉取图片 / embed 的 client。
//
// 规则：
// - assetProxy=false：直连（忽略 ProxyURL）
// - assetProxy=true：走 ProxyURL，ProxyURL 为空视为配置错误
func NewAssetClient(opts Options, assetProxy bool) (*http.Client, error) {
	if !assetProxy {
		opts.ProxyURL = ""
		return newClient(opts)
	}
	if strings.TrimSpace(opts.ProxyURL) == "" {
		return nil, errors.New("relay.asset_proxy=true 但 fetch.proxy_url 为空")
	}
	return newClient(opts)
}

func newClient(opts Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		MaxIdleConnsPerHost:   4,
	}
	disableKeepAlives := false

	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy url 必须是绝对 URL")
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	ua := globalUA
	if len(opts.UserAgents) > 0 {
		ua = newUAPool(opts.UserAgents)
	}
	tr := &Transport{
		Base:              base,
		ua:                ua,
		DisableKeepAlives: disableKeepAlives,
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		tr.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool([]string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:129.0) Gecko/20100101 Firefox/129.0",
})

// RandomUA 返回内置池中的一个 UA（供非 net/http 的抓取后端使用）。
func RandomUA() string { return globalUA.random() }

func newUAPool(uas []string) *uaPool {
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: append([]string(nil), uas...),
	}
}
