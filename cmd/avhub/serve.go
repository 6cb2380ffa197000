package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/AVHub/internal/api"
	"github.com/John-Robertt/AVHub/internal/infra/httpx"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(g *globals) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			if addr != "" {
				rt.eff.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, rt)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "覆盖 server.addr")
	return cmd
}

func newHandler(rt *runtime) (http.Handler, error) {
	eff := rt.eff
	client, err := httpx.NewAssetClient(httpx.Options{
		ProxyURL:   eff.Fetch.ProxyURL,
		Timeout:    eff.Fetch.Timeout,
		UserAgents: eff.Fetch.UserAgents,
	}, eff.Relay.UseProxy)
	if err != nil {
		return nil, err
	}
	relay := api.NewRelay(api.RelayOptions{
		Client:     client,
		Providers:  rt.reg.Infos(),
		AllowHosts: eff.Relay.AllowHosts,
		MaxBytes:   eff.Relay.MaxBytes,
		MaxAge:     eff.Relay.MaxAge,
		Log:        rt.log.WithField("component", "relay"),
	})
	return api.NewRouter(api.Options{
		Registry:    rt.reg,
		Log:         rt.log.WithField("component", "api"),
		CORSOrigins: eff.Server.CORSOrigins,
		Relay:       relay,
	}), nil
}

func serve(ctx context.Context, rt *runtime) error {
	h, err := newHandler(rt)
	if err != nil {
		return fail(err)
	}
	srv := &http.Server{
		Addr:              rt.eff.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       rt.eff.Server.ReadTimeout,
		WriteTimeout:      rt.eff.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.log.WithFields(logrus.Fields{
			"addr":      srv.Addr,
			"providers": rt.reg.List(),
			"proxy":     formatProxy(rt.eff.Fetch.ProxyURL),
		}).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fail(fmt.Errorf("HTTP 服务异常退出：%w", err))
	case <-ctx.Done():
	}

	rt.log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fail(fmt.Errorf("关闭 HTTP 服务失败：%w", err))
	}
	return nil
}
