package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/AVHub/internal/app/warm"
	"github.com/John-Robertt/AVHub/internal/domain"
)

func newWarmCmd(g *globals) *cobra.Command {
	var (
		pages  int
		report string
	)
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "预热缓存：访问每个 provider 的分类、列表页与分类首页",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			cfg := rt.eff.Warm
			if cmd.Flags().Changed("pages") {
				if pages < 1 {
					return fmt.Errorf("--pages 必须 >= 1，实际是 %d", pages)
				}
				cfg.Pages = pages
			}
			if report != "" {
				cfg.ReportPath = report
			}
			if rt.cache == nil {
				rt.log.Warn("cache.backend=off: warming only exercises the providers")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var obs warm.Observer
			if w, ok := pickProgressWriter(cmd.ErrOrStderr(), cmd.OutOrStdout()); ok {
				obs = newProgressUI(w)
			}
			rep := warm.Run(ctx, rt.reg, cfg, obs, rt.log)

			if cfg.ReportPath != "" {
				if err := warm.WriteReport(cfg.ReportPath, rep); err != nil {
					return fail(fmt.Errorf("写入预热报告失败：%w", err))
				}
			}
			if err := emitReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), rep); err != nil {
				return err
			}
			if rep.Summary.Failed > 0 {
				return &exitError{code: 1, err: fmt.Errorf("%d 个预热条目失败", rep.Summary.Failed)}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 0, "覆盖 warm.pages")
	cmd.Flags().StringVar(&report, "report", "", "覆盖 warm.report_path（JSON 报告落盘位置）")
	return cmd
}

// emitReport：stdout 是 TTY 时打印摘要，否则 stdout 只输出一个 WarmReport JSON（摘要走 stderr）。
func emitReport(stdout, stderr io.Writer, rep domain.WarmReport) error {
	summary := fmt.Sprintf("完成：ok=%d failed=%d skipped=%d\n", rep.Summary.OK, rep.Summary.Failed, rep.Summary.Skipped)
	if isTTY(stdout) {
		fmt.Fprint(stdout, summary)
		for _, it := range rep.Items {
			if it.Status == domain.WarmStatusFailed {
				fmt.Fprintf(stderr, "%s %s %s %s: %s\n", it.Provider, it.Resource, it.Key, it.ErrorKind, it.ErrorMsg)
			}
		}
		return nil
	}
	if err := writeJSON(stdout, rep); err != nil {
		return err
	}
	fmt.Fprint(stderr, summary)
	return nil
}

// pickProgressWriter：进度输出只在交互终端启用；优先 stderr，不污染 stdout JSON。
func pickProgressWriter(stderr, stdout io.Writer) (io.Writer, bool) {
	if isTTY(stderr) {
		return stderr, true
	}
	if isTTY(stdout) {
		return stdout, true
	}
	return nil, false
}
