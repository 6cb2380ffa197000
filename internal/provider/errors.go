package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// 错误类别（写入信封的 errorKind，API 层据此映射 HTTP 状态码）。
const (
	KindFetch         = "fetch"
	KindParse         = "parse"
	KindNotFound      = "not_found"
	KindNotRegistered = "not_registered"
	KindConfiguration = "configuration"
	KindInternal      = "internal"
)

// FetchError 表示访问源站或 relay 时的网络 / HTTP 失败。
// 调用方总是可以稍后重试；永远不会导致进程崩溃。
type FetchError struct {
	URL        string
	StatusCode int    // 0 表示网络层失败（没有拿到响应）
	Location   string // 3xx 时的跳转目标（便于判断是否被引导到验证页）
	Err        error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "fetch error"
	}
	switch {
	case e.StatusCode != 0 && strings.TrimSpace(e.Location) != "":
		return fmt.Sprintf("fetch %s: HTTP %d location=%s", e.URL, e.StatusCode, strings.TrimSpace(e.Location))
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s failed", e.URL)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// BlockedError 表示请求被站点引导到了“验证 / 拦截”页面（通常需要浏览器执行 JS 或人工验证）。
// 不尝试绕过：它总是作为 FetchError 的 cause 出现，由配置 relay 或 browser 后端解决。
type BlockedError struct {
	URL    string
	Reason string // 例如 "age-verify"、"cloudflare"
}

func (e *BlockedError) Error() string {
	if e == nil || strings.TrimSpace(e.Reason) == "" {
		return "blocked"
	}
	return "blocked: " + strings.TrimSpace(e.Reason)
}

// ParseError 表示页面抓取成功但必填字段无法提取。
// 列表中的单条 ParseError 只会导致该条目被丢弃；整页无法解析时才作为操作失败返回。
type ParseError struct {
	Provider string
	Field    string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider=%s parse %s: %v", e.Provider, e.Field, e.Err)
	}
	return fmt.Sprintf("provider=%s parse %s: missing", e.Provider, e.Field)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NotFoundError 表示请求的 slug / 分类 / 位置无法解析到任何内容。
type NotFoundError struct {
	Provider string
	Resource string // "video" / "category" / "index"
	Key      string
	Reason   string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("provider=%s %s %q not found", e.Provider, e.Resource, e.Key)
	if strings.TrimSpace(e.Reason) != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// NotRegisteredError 表示请求了未注册的 provider id。
type NotRegisteredError struct {
	Provider string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("provider %q is not registered", e.Provider)
}

// ConfigurationError 表示某操作依赖的配置缺失（例如必须经过 worker 的 provider 没有配置 worker_url）。
// 只让本次调用失败，不影响进程。
type ConfigurationError struct {
	Provider string
	Setting  string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("provider=%s: missing configuration %s", e.Provider, e.Setting)
	}
	return fmt.Sprintf("provider=%s: configuration %s: %s", e.Provider, e.Setting, e.Reason)
}

// Kind 把错误归类为信封里的 errorKind。
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var (
		fe  *FetchError
		be  *BlockedError
		pe  *ParseError
		nfe *NotFoundError
		nre *NotRegisteredError
		ce  *ConfigurationError
	)
	switch {
	case errors.As(err, &ce):
		return KindConfiguration
	case errors.As(err, &nre):
		return KindNotRegistered
	case errors.As(err, &nfe):
		return KindNotFound
	case errors.As(err, &fe), errors.As(err, &be):
		return KindFetch
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// 调用方施加的超时 / 取消按 FetchError 对待。
		return KindFetch
	case errors.As(err, &pe):
		return KindParse
	default:
		return KindInternal
	}
}

// IsRetryable 报告错误是否值得稍后重试（只有 fetch 类失败）。
func IsRetryable(err error) bool {
	return Kind(err) == KindFetch
}
