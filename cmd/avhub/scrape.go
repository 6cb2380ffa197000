package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const (
	opVideos     = "videos"
	opCategories = "categories"
	opCategory   = "category"
	opVideo      = "video"
	opSearch     = "search"
)

// needsArg 标记哪些操作需要第三个位置参数。
var needsArg = map[string]bool{
	opVideos:     false,
	opCategories: false,
	opCategory:   true,
	opVideo:      true,
	opSearch:     true,
}

func newScrapeCmd(g *globals) *cobra.Command {
	var (
		page     int
		category string
	)
	cmd := &cobra.Command{
		Use:   "scrape <provider> <videos|categories|category|video|search> [slug|query]",
		Short: "执行一次 provider 操作并输出 JSON 信封（调试 / 录制快照）",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 2 || len(args) > 3 {
				return errors.New("需要 <provider> <operation> [arg]")
			}
			want, ok := needsArg[args[1]]
			if !ok {
				return fmt.Errorf("未知操作 %q（可选 videos/categories/category/video/search）", args[1])
			}
			if want != (len(args) == 3) {
				if want {
					return fmt.Errorf("操作 %s 需要一个参数", args[1])
				}
				return fmt.Errorf("操作 %s 不接受参数", args[1])
			}
			if page < 1 {
				return fmt.Errorf("--page 必须 >= 1，实际是 %d", page)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			s, err := rt.reg.Lookup(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			arg := ""
			if len(args) == 3 {
				arg = strings.TrimSpace(args[2])
			}

			var (
				resp    any
				success bool
				msg     string
			)
			switch args[1] {
			case opVideos:
				r := s.FetchVideos(ctx, page)
				resp, success, msg = r, r.Success, r.Error
			case opCategories:
				r := s.GetCategories(ctx)
				resp, success, msg = r, r.Success, r.Error
			case opCategory:
				r := s.FetchCategoryVideos(ctx, arg, page)
				resp, success, msg = r, r.Success, r.Error
			case opVideo:
				r := s.GetVideoDetails(ctx, arg, category)
				resp, success, msg = r, r.Success, r.Error
			case opSearch:
				r := s.SearchVideos(ctx, arg, page)
				resp, success, msg = r, r.Success, r.Error
			}
			if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !success {
				return fail(errors.New(msg))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "页码（从 1 开始）")
	cmd.Flags().StringVar(&category, "category", "", "video 操作的 categorySlug（按位置编号的 provider 需要）")
	return cmd
}
