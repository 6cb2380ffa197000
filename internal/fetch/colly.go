package fetch

import (
	"context"
	"sync"

	"github.com/gocolly/colly/v2"

	"github.com/John-Robertt/AVHub/internal/infra/httpx"
	"github.com/John-Robertt/AVHub/internal/provider"
)

// Colly 用 gocolly 的 collector 抓取页面；传输层同样使用 httpx（UA / 代理 / 限速一致）。
type Colly struct {
	route Route
	base  *colly.Collector
	mu    sync.Mutex
}

func NewColly(opts Options) (*Colly, error) {
	client, err := httpx.NewPageClient(opts.HTTP)
	if err != nil {
		return nil, err
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.WithTransport(client.Transport)
	c.SetRequestTimeout(client.Timeout)
	max := opts.MaxBodyBytes
	if max <= 0 {
		max = defaultMaxBody
	}
	c.MaxBodySize = int(max)
	c.UserAgent = httpx.RandomUA()
	return &Colly{route: opts.Route, base: c}, nil
}

func (f *Colly) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	target, err := f.route.Target(rawURL)
	if err != nil {
		return "", err
	}

	// 每次抓取 Clone 一份，回调互不干扰；HTTP backend 与 cookie jar 共享。
	f.mu.Lock()
	c := f.base.Clone()
	f.mu.Unlock()
	c.Context = ctx

	var (
		body     string
		status   int
		location string
		finalURL = target
		cbErr    error
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = string(r.Body)
		finalURL = r.Request.URL.String()
		location = r.Headers.Get("Location")
	})
	c.OnError(func(r *colly.Response, err error) {
		cbErr = err
		if r != nil {
			status = r.StatusCode
			body = string(r.Body)
			if r.Request != nil {
				finalURL = r.Request.URL.String()
			}
		}
	})

	visitErr := c.Visit(target)
	c.Wait()

	if status == 0 {
		if visitErr == nil {
			visitErr = cbErr
		}
		return "", &provider.FetchError{URL: rawURL, Err: visitErr}
	}
	if err := checkResponse(rawURL, status, location, finalURL, body); err != nil {
		return "", err
	}
	return body, nil
}
