package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/AVHub/internal/provider"
)

func newProvidersCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "列出已启用的 provider 及其能力",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			infos := rt.reg.Infos()
			out := cmd.OutOrStdout()
			// stdout 非 TTY：只输出 JSON。
			if !isTTY(out) {
				return writeJSON(out, infos)
			}
			printProviderTable(out, infos)
			return nil
		},
	}
}

func printProviderTable(w io.Writer, infos []provider.Info) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBASE URL\tPAGE SIZE\tCAPABILITIES")
	for _, in := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", in.ID, in.BaseURL, in.PageSize, capabilityList(in.Capabilities))
	}
	_ = tw.Flush()
}

func capabilityList(c provider.Capabilities) string {
	var out []string
	flag := func(on bool, name string) {
		if on {
			out = append(out, name)
		}
	}
	flag(c.HasSearch, "search")
	flag(c.HasGalleries, "galleries")
	flag(c.HasStories, "stories")
	flag(c.PaginatesListing, "paged-listing")
	flag(c.PaginatesCategories, "paged-categories")
	flag(c.DynamicCategories, "scraped-categories")
	flag(c.RequiresRelay, "relay")
	flag(c.StableIDs, "stable-ids")
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fail(err)
	}
	return nil
}
