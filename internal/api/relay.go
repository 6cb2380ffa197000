package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/AVHub/internal/domain"
	"github.com/John-Robertt/AVHub/internal/infra/imgx"
	"github.com/John-Robertt/AVHub/internal/logging"
	"github.com/John-Robertt/AVHub/internal/provider"
)

const (
	defaultRelayMaxBytes = 20 << 20
	defaultRelayMaxAge   = 6 * time.Hour
)

// Relay 是 /relay?url=<target>&w=<width> 资源中转端点（缩略图、图集、embed）。
//
// 约束：
// - 只中转白名单 host（provider 站点及其子域名 + relay.allow_hosts）
// - 上游未给出 Content-Type 时按内容嗅探
// - w>0 且是图片时等比缩小（不放大）
// - 上游失败统一返回 502 + 信封（errorKind=fetch）
type Relay struct {
	client   *http.Client
	allow    []string
	maxBytes int64
	maxAge   time.Duration
	log      *logrus.Entry
}

// RelayOptions 是 NewRelay 的输入。
type RelayOptions struct {
	Client *http.Client
	// Providers 提供站点 host（取自 BaseURL）。
	Providers  []provider.Info
	AllowHosts []string
	MaxBytes   int64
	MaxAge     time.Duration
	Log        *logrus.Entry
}

func NewRelay(opts RelayOptions) *Relay {
	allow := make([]string, 0, len(opts.Providers)+len(opts.AllowHosts))
	for _, info := range opts.Providers {
		if u, err := url.Parse(info.BaseURL); err == nil && u.Hostname() != "" {
			allow = append(allow, strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."))
		}
	}
	for _, h := range opts.AllowHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allow = append(allow, h)
		}
	}
	r := &Relay{
		client:   opts.Client,
		allow:    lo.Uniq(allow),
		maxBytes: opts.MaxBytes,
		maxAge:   opts.MaxAge,
		log:      opts.Log,
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	if r.maxBytes <= 0 {
		r.maxBytes = defaultRelayMaxBytes
	}
	if r.maxAge <= 0 {
		r.maxAge = defaultRelayMaxAge
	}
	if r.log == nil {
		r.log = logging.Discard()
	}
	return r
}

// Allowed 报告 host 是否在白名单内（精确匹配或子域名）。
func (rl *Relay) Allowed(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	for _, a := range rl.allow {
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := strings.TrimSpace(q.Get("url"))
	if target == "" {
		writeJSON(w, http.StatusBadRequest, domain.Fail[any]("", kindInput, errors.New("query parameter url is required")))
		return
	}
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeJSON(w, http.StatusBadRequest, domain.Fail[any]("", kindInput, fmt.Errorf("url must be an absolute http(s) URL, got %q", target)))
		return
	}
	if !rl.Allowed(u.Hostname()) {
		writeJSON(w, http.StatusForbidden, domain.Fail[any]("", kindInput, fmt.Errorf("host %q is not allowed", u.Hostname())))
		return
	}
	width := 0
	if raw := strings.TrimSpace(q.Get("w")); raw != "" {
		width, err = strconv.Atoi(raw)
		if err != nil || width < 1 || width > imgx.MaxWidth {
			writeJSON(w, http.StatusBadRequest, domain.Fail[any]("", kindInput, fmt.Errorf("w must be an integer in [1, %d], got %q", imgx.MaxWidth, raw)))
			return
		}
	}

	body, ct, err := rl.fetch(r, u)
	if err != nil {
		rl.log.WithError(err).WithField("url", target).Warn("relay fetch failed")
		writeJSON(w, http.StatusBadGateway, domain.Fail[any]("", provider.KindFetch, err))
		return
	}

	if width > 0 && strings.HasPrefix(ct, "image/") {
		if out, outCT, err := imgx.Resize(body, width); err == nil {
			body, ct = out, outCT
		} else {
			rl.log.WithError(err).WithField("url", target).Debug("relay resize skipped")
		}
	}

	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(rl.maxAge.Seconds())))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (rl *Relay) fetch(r *http.Request, u *url.URL) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", &provider.FetchError{URL: u.String(), Err: err}
	}
	// 多数图床按 Referer 防盗链：带上目标站点自身的 origin。
	req.Header.Set("Referer", u.Scheme+"://"+u.Host+"/")

	resp, err := rl.client.Do(req)
	if err != nil {
		return nil, "", &provider.FetchError{URL: u.String(), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &provider.FetchError{URL: u.String(), StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, rl.maxBytes+1))
	if err != nil {
		return nil, "", &provider.FetchError{URL: u.String(), Err: err}
	}
	if int64(len(body)) > rl.maxBytes {
		return nil, "", &provider.FetchError{URL: u.String(), Err: fmt.Errorf("body exceeds %d bytes", rl.maxBytes)}
	}

	ct := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		ct = mimetype.Detect(body).String()
	}
	return body, ct, nil
}
