package domain

import "encoding/json"

// Pagination 描述列表类响应的分页信息。
// 没有真实分页的 provider 固定返回 totalPages=1 且 hasNextPage=false。
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
}

// SinglePage 是“无分页”的固定分页信息。
func SinglePage() *Pagination {
	return &Pagination{CurrentPage: 1, TotalPages: 1, HasNextPage: false}
}

// Response 是每个 Scraper 操作的统一信封（ProviderResponse）。
//
// 约束：
// - Success=false 时 Data 不序列化，Error 必须非空
// - ErrorKind 取值见 provider.Kind（fetch/parse/not_found/...），供 API 层映射状态码
// - err 保留原始错误供 errors.As 使用，不参与序列化
type Response[T any] struct {
	Success    bool
	Data       T
	Error      string
	ErrorKind  string
	Provider   string
	Pagination *Pagination

	err error
}

// OK 构造成功响应。
func OK[T any](provider string, data T, p *Pagination) Response[T] {
	return Response[T]{
		Success:    true,
		Data:       data,
		Provider:   provider,
		Pagination: p,
	}
}

// Fail 构造失败响应；kind 为空时按 "internal" 处理。
func Fail[T any](provider, kind string, err error) Response[T] {
	if kind == "" {
		kind = "internal"
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Response[T]{
		Success:   false,
		Error:     msg,
		ErrorKind: kind,
		Provider:  provider,
		err:       err,
	}
}

// Err 返回失败响应携带的原始错误（成功时为 nil）。
func (r Response[T]) Err() error { return r.err }

type responseJSON struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	ErrorKind  string      `json:"errorKind,omitempty"`
	Provider   string      `json:"provider,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

func (r Response[T]) MarshalJSON() ([]byte, error) {
	out := responseJSON{
		Success:    r.Success,
		Error:      r.Error,
		ErrorKind:  r.ErrorKind,
		Provider:   r.Provider,
		Pagination: r.Pagination,
	}
	if r.Success {
		out.Data = r.Data
	}
	return json.Marshal(out)
}

func (r *Response[T]) UnmarshalJSON(b []byte) error {
	var raw struct {
		Success    bool            `json:"success"`
		Data       json.RawMessage `json:"data"`
		Error      string          `json:"error"`
		ErrorKind  string          `json:"errorKind"`
		Provider   string          `json:"provider"`
		Pagination *Pagination     `json:"pagination"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var data T
	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return err
		}
	}
	*r = Response[T]{
		Success:    raw.Success,
		Data:       data,
		Error:      raw.Error,
		ErrorKind:  raw.ErrorKind,
		Provider:   raw.Provider,
		Pagination: raw.Pagination,
	}
	return nil
}
