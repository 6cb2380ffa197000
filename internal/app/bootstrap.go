// Package app 把配置、抓取后端、缓存与各 provider 装配成可用的 Registry，并提供跨 provider 的聚合操作。
package app

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/John-Robertt/AVHub/internal/cache"
	"github.com/John-Robertt/AVHub/internal/config"
	"github.com/John-Robertt/AVHub/internal/fetch"
	"github.com/John-Robertt/AVHub/internal/infra/httpx"
	"github.com/John-Robertt/AVHub/internal/infra/kv"
	"github.com/John-Robertt/AVHub/internal/infra/snapshot"
	"github.com/John-Robertt/AVHub/internal/logging"
	"github.com/John-Robertt/AVHub/internal/provider"
	"github.com/John-Robertt/AVHub/internal/provider/cliprank"
	"github.com/John-Robertt/AVHub/internal/provider/embedhd"
	"github.com/John-Robertt/AVHub/internal/provider/picgallery"
	"github.com/John-Robertt/AVHub/internal/provider/storyhub"
	"github.com/John-Robertt/AVHub/internal/provider/tubewp"
)

// Factory 用注入的依赖构造一个 scraper。
type Factory func(provider.Deps) provider.Scraper

// Factories 是全部内置 provider（key 与 config.ProviderIDs 一致）。
var Factories = map[string]Factory{
	cliprank.ID:   func(d provider.Deps) provider.Scraper { return cliprank.New(d) },
	embedhd.ID:    func(d provider.Deps) provider.Scraper { return embedhd.New(d) },
	picgallery.ID: func(d provider.Deps) provider.Scraper { return picgallery.New(d) },
	storyhub.ID:   func(d provider.Deps) provider.Scraper { return storyhub.New(d) },
	tubewp.ID:     func(d provider.Deps) provider.Scraper { return tubewp.New(d) },
}

// Deps 是 Bootstrap 的输入。
type Deps struct {
	Config config.Effective
	Log    *logrus.Entry
	// Cache 为 nil 表示不缓存。
	Cache *cache.Cache
	// Browser 在 fetch.backend=browser 时共享给所有 provider；为 nil 时按配置创建。
	Browser *fetch.Browser
	// Fetchers 按 provider id 覆盖抓取器（测试注入假 Fetcher）。
	Fetchers map[string]provider.Fetcher
}

// Bootstrapper 保证 Registry 只构造一次。
//
// 约束：第二次及以后的 Bootstrap 调用忽略参数，返回第一次的结果（包括错误）。
type Bootstrapper struct {
	once    sync.Once
	reg     *provider.Registry
	browser *fetch.Browser
	err     error
}

func (b *Bootstrapper) Bootstrap(d Deps) (*provider.Registry, error) {
	b.once.Do(func() {
		b.reg, b.browser, b.err = build(d)
	})
	return b.reg, b.err
}

// Close 释放 Bootstrap 创建的浏览器进程。
func (b *Bootstrapper) Close() error {
	if b.browser == nil {
		return nil
	}
	return b.browser.Close()
}

func build(d Deps) (*provider.Registry, *fetch.Browser, error) {
	log := d.Log
	if log == nil {
		log = logging.Discard()
	}
	cfg := d.Config

	browser := d.Browser
	if browser == nil && cfg.Fetch.Backend == fetch.BackendBrowser {
		browser = &fetch.Browser{
			Timeout:     cfg.Fetch.Timeout,
			StableAfter: cfg.Fetch.BrowserStableAfter,
			ProxyURL:    cfg.Fetch.ProxyURL,
		}
	}
	store := snapshot.New(cfg.Fetch.SnapshotDir, cfg.Fetch.SnapshotMode == snapshot.ModeReplay)

	reg, _ := provider.NewRegistry()
	for _, id := range cfg.EnabledProviders() {
		factory, ok := Factories[id]
		if !ok {
			return nil, browser, &provider.NotRegisteredError{Provider: id}
		}
		pc := cfg.Providers[id]
		plog := log.WithField("provider", id)

		// 构造是纯的：先用空依赖读出能力（是否必须经 relay）。
		caps := factory(provider.Deps{}).Info().Capabilities

		f := d.Fetchers[id]
		if f == nil {
			var err error
			f, err = fetch.New(fetch.Options{
				Route:   fetch.Route{Provider: id, WorkerURL: pc.WorkerURL, RequiresRelay: caps.RequiresRelay},
				Backend: cfg.Fetch.Backend,
				HTTP: httpx.Options{
					ProxyURL:      cfg.Fetch.ProxyURL,
					Timeout:       cfg.Fetch.Timeout,
					RatePerSecond: cfg.Fetch.RatePerSecond,
					Burst:         cfg.Fetch.Burst,
					UserAgents:    cfg.Fetch.UserAgents,
				},
				MaxBodyBytes:  cfg.Fetch.MaxBodyBytes,
				SnapshotMode:  cfg.Fetch.SnapshotMode,
				SnapshotStore: store,
				Browser:       browser,
				Log:           plog,
			})
			if err != nil {
				return nil, browser, fmt.Errorf("构造 %s 的抓取器失败：%w", id, err)
			}
		}

		s := factory(provider.Deps{
			Fetcher:    f,
			Cache:      d.Cache,
			Log:        log,
			AssetRelay: cfg.Relay.AssetURL,
			BaseURL:    pc.BaseURL,
			PageSize:   pc.PageSize,
		})
		if err := reg.Register(id, s); err != nil {
			return nil, browser, err
		}
		if caps.RequiresRelay && pc.WorkerURL == "" {
			plog.Warn("provider requires a relay but providers." + id + ".worker_url is empty; its operations will fail with a configuration error")
		}
	}
	log.WithField("providers", strings.Join(reg.List(), ",")).Info("providers registered")
	return reg, browser, nil
}

// OpenCache 按 cache 配置打开 kv 存储并包装为 *cache.Cache；backend=off 时返回 nil（不缓存）。
func OpenCache(cfg config.CacheConfig, fs afero.Fs, log *logrus.Entry) (*cache.Cache, io.Closer, error) {
	if cfg.Backend == "off" {
		return nil, nopCloser{}, nil
	}
	store, closer, err := kv.Open(kv.Options{
		Backend:  cfg.Backend,
		Size:     cfg.Size,
		Path:     cfg.Path,
		RedisURL: cfg.RedisURL,
		Fs:       fs,
	})
	if err != nil {
		return nil, nil, err
	}
	return cache.New(store, cfg.TTL, log), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
