package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/John-Robertt/AVHub/internal/infra/snapshot"
)

func TestLoad_ExplicitFileNotFound(t *testing.T) {
	_, err := LoadFS(afero.NewMemMapFs(), "/etc/avhub/missing.json")
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	eff, err := Load("")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.File != "" {
		t.Fatalf("期望未读取任何文件，实际=%q", eff.File)
	}
	if eff.Server.Addr != ":8080" {
		t.Fatalf("期望默认 addr=:8080，实际=%q", eff.Server.Addr)
	}
	if eff.Cache.Backend != "memory" || eff.Fetch.Backend != "http" {
		t.Fatalf("默认后端不符合预期：cache=%q fetch=%q", eff.Cache.Backend, eff.Fetch.Backend)
	}
	if eff.Fetch.SnapshotMode != snapshot.ModeOff {
		t.Fatalf("期望 snapshot_mode=off，实际=%q", eff.Fetch.SnapshotMode)
	}
	if eff.Warm.Concurrency != DefaultConcurrency {
		t.Fatalf("期望 warm.concurrency=%d，实际=%d", DefaultConcurrency, eff.Warm.Concurrency)
	}
	if got := eff.EnabledProviders(); len(got) != len(ProviderIDs) {
		t.Fatalf("期望默认启用全部 provider，实际=%v", got)
	}
}

func TestLoad_DiscoversFileInCwd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, DefaultFile), []byte(`{"server":{"addr":"127.0.0.1:9000"}}`))

	eff, err := Load("")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.File != DefaultFile {
		t.Fatalf("期望读取 %q，实际=%q", DefaultFile, eff.File)
	}
	if eff.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("期望 addr 来自配置文件，实际=%q", eff.Server.Addr)
	}
}

func TestLoad_FileValues(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMem(t, fs, "/cfg/avhub.json", `{
		"log": {"level": "debug", "format": "json"},
		"cache": {"backend": "redis", "redis_url": "redis://redis:6379/1", "ttl": {"videos": "5m"}},
		"fetch": {"proxy_url": "socks5://127.0.0.1:1080", "timeout": "10s", "snapshot_mode": "record"},
		"relay": {"asset_url": "https://avhub.example/relay", "allow_hosts": ["CDN.Example.com"]},
		"warm": {"pages": 3, "concurrency": 99},
		"providers": {
			"cliprank": {"worker_url": "https://worker.example/fetch"},
			"storyhub": {"enabled": false, "base_url": "https://mirror.storyhub.example/"}
		}
	}`)

	eff, err := LoadFS(fs, "/cfg/avhub.json")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Log.Level != "debug" || eff.Log.Format != "json" {
		t.Fatalf("log 配置不符合预期：%+v", eff.Log)
	}
	if eff.Cache.Backend != "redis" || eff.Cache.TTL["videos"] != 5*time.Minute {
		t.Fatalf("cache 配置不符合预期：%+v", eff.Cache)
	}
	if eff.Fetch.Timeout != 10*time.Second || eff.Fetch.SnapshotMode != snapshot.ModeRecord {
		t.Fatalf("fetch 配置不符合预期：%+v", eff.Fetch)
	}
	if len(eff.Relay.AllowHosts) != 1 || eff.Relay.AllowHosts[0] != "cdn.example.com" {
		t.Fatalf("期望 allow_hosts 小写化，实际=%v", eff.Relay.AllowHosts)
	}
	// 文档约定：并发范围 [1, 32]；超出截断。
	if eff.Warm.Concurrency != 32 || eff.Warm.Pages != 3 {
		t.Fatalf("warm 配置不符合预期：%+v", eff.Warm)
	}
	if eff.Providers["cliprank"].WorkerURL != "https://worker.example/fetch" {
		t.Fatalf("期望 cliprank.worker_url 来自配置文件，实际=%q", eff.Providers["cliprank"].WorkerURL)
	}
	sh := eff.Providers["storyhub"]
	if sh.Enabled || sh.BaseURL != "https://mirror.storyhub.example" {
		t.Fatalf("storyhub 配置不符合预期：%+v", sh)
	}
	for _, id := range eff.EnabledProviders() {
		if id == "storyhub" {
			t.Fatalf("storyhub 已禁用，不应出现在 EnabledProviders 中")
		}
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMem(t, fs, "/avhub.json", `{"providers":{"cliprank":{"worker_url":"https://from-file.example/"}}}`)
	t.Setenv("AVHUB_PROVIDERS_CLIPRANK_WORKER_URL", "https://from-env.example/")
	t.Setenv("AVHUB_LOG_LEVEL", "warn")

	eff, err := LoadFS(fs, "/avhub.json")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := eff.Providers["cliprank"].WorkerURL; got != "https://from-env.example/" {
		t.Fatalf("期望环境变量覆盖配置文件，实际=%q", got)
	}
	if eff.Log.Level != "warn" {
		t.Fatalf("期望 log.level=warn，实际=%q", eff.Log.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"malformed json":   `{`,
		"unknown provider": `{"providers":{"javbus":{"enabled":true}}}`,
		"bad cache":        `{"cache":{"backend":"memcached"}}`,
		"bad fetch":        `{"fetch":{"backend":"curl"}}`,
		"bad proxy":        `{"fetch":{"proxy_url":"http://[::1"}}`,
		"bad duration":     `{"fetch":{"timeout":"soon"}}`,
		"bad snapshot":     `{"fetch":{"snapshot_mode":"rewind"}}`,
		"bad worker":       `{"providers":{"cliprank":{"worker_url":"ftp://worker.example"}}}`,
		"bad ttl":          `{"cache":{"ttl":{"videos":"-1m"}}}`,
		"bad log format":   `{"log":{"format":"xml"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeMem(t, fs, "/avhub.json", body)
			_, err := LoadFS(fs, "/avhub.json")
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}

func writeMem(t *testing.T, fs afero.Fs, path, body string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(body), 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
