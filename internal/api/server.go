// Package api 把 provider 注册表暴露为 JSON HTTP 接口（gorilla/mux 路由）。
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/AVHub/internal/app"
	"github.com/John-Robertt/AVHub/internal/domain"
	"github.com/John-Robertt/AVHub/internal/logging"
	"github.com/John-Robertt/AVHub/internal/provider"
)

// Options 是 NewRouter 的输入。
type Options struct {
	Registry    *provider.Registry
	Log         *logrus.Entry
	CORSOrigins []string
	// Relay 为 nil 时不注册 /relay。
	Relay *Relay
}

type server struct {
	reg *provider.Registry
	log *logrus.Entry
}

// NewRouter 构造完整的 HTTP handler（含 CORS 与访问日志中间件）。
//
// 约束：
// - 所有 JSON 响应都使用统一信封
// - scrape 失败（success=false）仍是 200；只有输入错误（400）与 not_found（404）改变状态码
func NewRouter(opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	s := &server{reg: opts.Registry, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.HandleFunc("/providers", s.providers).Methods(http.MethodGet)
	r.HandleFunc("/categories", s.aggregateCategories).Methods(http.MethodGet)
	r.HandleFunc("/search", s.aggregateSearch).Methods(http.MethodGet)

	p := r.PathPrefix("/providers/{id}").Subrouter()
	p.HandleFunc("/videos", s.videos).Methods(http.MethodGet)
	p.HandleFunc("/categories", s.categories).Methods(http.MethodGet)
	p.HandleFunc("/category/{slug}", s.categoryVideos).Methods(http.MethodGet)
	p.HandleFunc("/video/{slug}", s.videoDetails).Methods(http.MethodGet)
	p.HandleFunc("/search", s.search).Methods(http.MethodGet)

	if opts.Relay != nil {
		r.Handle("/relay", opts.Relay).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, domain.Fail[any]("", provider.KindNotFound, errors.New("no route for "+r.URL.Path)))
	})

	// CORS 与访问日志包在路由之外：预检请求与 404 也要经过它们。
	withCORS := cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(opts.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{headerRequestID},
		MaxAge:         300,
	})
	return requestLogger(log)(withCORS(r))
}

func corsOrigins(in []string) []string {
	if len(in) == 0 {
		return []string{"*"}
	}
	return in
}

func (s *server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.OK("", map[string]any{"providers": len(s.reg.List())}, nil))
}

func (s *server) providers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.OK("", s.reg.Infos(), nil))
}

func (s *server) videos(w http.ResponseWriter, r *http.Request) {
	sc, page, ok := s.scraperAndPage(w, r)
	if !ok {
		return
	}
	writeEnvelope(w, sc.FetchVideos(r.Context(), page))
}

func (s *server) categories(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.scraper(w, r)
	if !ok {
		return
	}
	writeEnvelope(w, sc.GetCategories(r.Context()))
}

func (s *server) categoryVideos(w http.ResponseWriter, r *http.Request) {
	sc, page, ok := s.scraperAndPage(w, r)
	if !ok {
		return
	}
	writeEnvelope(w, sc.FetchCategoryVideos(r.Context(), mux.Vars(r)["slug"], page))
}

func (s *server) videoDetails(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.scraper(w, r)
	if !ok {
		return
	}
	cat := strings.TrimSpace(r.URL.Query().Get("categorySlug"))
	writeEnvelope(w, sc.GetVideoDetails(r.Context(), mux.Vars(r)["slug"], cat))
}

func (s *server) search(w http.ResponseWriter, r *http.Request) {
	sc, page, ok := s.scraperAndPage(w, r)
	if !ok {
		return
	}
	q, ok := requireQuery(w, r, sc.Info().ID)
	if !ok {
		return
	}
	writeEnvelope(w, sc.SearchVideos(r.Context(), q, page))
}

func (s *server) aggregateCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.OK("", app.AggregateCategories(r.Context(), s.reg, providerList(r)), nil))
}

func (s *server) aggregateSearch(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, domain.Fail[any]("", kindInput, err))
		return
	}
	q, ok := requireQuery(w, r, "")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, domain.OK("", app.AggregateSearch(r.Context(), s.reg, providerList(r), q, page), nil))
}

// kindInput 是请求参数非法时信封里的 errorKind。
const kindInput = "invalid_input"

func (s *server) scraper(w http.ResponseWriter, r *http.Request) (provider.Scraper, bool) {
	id := mux.Vars(r)["id"]
	sc, err := s.reg.Lookup(id)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, domain.Fail[any](strings.ToLower(id), provider.Kind(err), err))
		return nil, false
	}
	return sc, true
}

func (s *server) scraperAndPage(w http.ResponseWriter, r *http.Request) (provider.Scraper, int, bool) {
	sc, ok := s.scraper(w, r)
	if !ok {
		return nil, 0, false
	}
	page, err := parsePage(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, domain.Fail[any](sc.Info().ID, kindInput, err))
		return nil, 0, false
	}
	return sc, page, true
}

func requireQuery(w http.ResponseWriter, r *http.Request, providerID string) (string, bool) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, domain.Fail[any](providerID, kindInput, errors.New("query parameter q is required")))
		return "", false
	}
	return q, true
}

// parsePage：缺省为 1；非整数或 <1 视为输入错误。
func parsePage(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("page"))
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("page must be a positive integer, got " + strconv.Quote(raw))
	}
	return n, nil
}

func providerList(r *http.Request) []string {
	raw := strings.TrimSpace(r.URL.Query().Get("providers"))
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// statusFor 把信封映射为 HTTP 状态码。
func statusFor(success bool, kind string) int {
	if success {
		return http.StatusOK
	}
	switch kind {
	case provider.KindNotFound:
		return http.StatusNotFound
	case provider.KindNotRegistered, kindInput:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}

func writeEnvelope[T any](w http.ResponseWriter, resp domain.Response[T]) {
	writeJSON(w, statusFor(resp.Success, resp.ErrorKind), resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
