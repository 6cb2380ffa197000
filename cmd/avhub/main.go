package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/AVHub/internal/app"
	"github.com/John-Robertt/AVHub/internal/cache"
	"github.com/John-Robertt/AVHub/internal/config"
	"github.com/John-Robertt/AVHub/internal/logging"
	"github.com/John-Robertt/AVHub/internal/provider"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError 让子命令决定进程退出码（参数错误之外的失败）。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func fail(err error) error { return &exitError{code: 1, err: err} }

// globals 是所有子命令共享的参数。
type globals struct {
	configPath string
	logLevel   string
}

// execute 运行 CLI 并返回退出码：0 成功；1 运行失败；2 参数错误。
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "错误：%v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 2
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "avhub",
		Short:         "统一多个视频 / 图集 / 故事站点的抓取服务",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "配置文件路径（默认读取当前目录的 "+config.DefaultFile+"）")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "覆盖 log.level（debug|info|warn|error）")

	root.AddCommand(
		newServeCmd(g),
		newProvidersCmd(g),
		newScrapeCmd(g),
		newWarmCmd(g),
	)
	return root
}

// runtime 是子命令共享的已装配依赖。
type runtime struct {
	eff     config.Effective
	log     *logrus.Entry
	cache   *cache.Cache
	reg     *provider.Registry
	boot    *app.Bootstrapper
	closers []io.Closer
}

func setup(g *globals, stderr io.Writer) (*runtime, error) {
	eff, err := config.Load(g.configPath)
	if err != nil {
		return nil, fail(fmt.Errorf("加载配置失败（%s）：%w", config.Code(err), err))
	}
	if g.logLevel != "" {
		eff.Log.Level = g.logLevel
	}

	logger, logCloser, err := logging.Setup(eff.Log, stderr)
	if err != nil {
		return nil, fail(err)
	}
	rt := &runtime{eff: eff, log: logrus.NewEntry(logger), boot: &app.Bootstrapper{}}
	rt.closers = append(rt.closers, logCloser)
	if eff.File != "" {
		rt.log.WithField("file", eff.File).Debug("config loaded")
	}

	c, cacheCloser, err := app.OpenCache(eff.Cache, afero.NewOsFs(), rt.log)
	if err != nil {
		rt.Close()
		return nil, fail(fmt.Errorf("打开缓存失败（cache.backend=%s）：%w", eff.Cache.Backend, err))
	}
	rt.cache = c
	rt.closers = append(rt.closers, cacheCloser)

	reg, err := rt.boot.Bootstrap(app.Deps{Config: eff, Log: rt.log, Cache: c})
	if err != nil {
		rt.Close()
		return nil, fail(err)
	}
	rt.reg = reg
	return rt, nil
}

// Close 按打开顺序的逆序释放资源。
func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	_ = rt.boot.Close()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if rt.closers[i] != nil {
			_ = rt.closers[i].Close()
		}
	}
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
