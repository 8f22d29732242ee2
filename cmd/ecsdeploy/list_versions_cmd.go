package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"

	"github.com/fluxcd/ecsdeploy/pkg/image"
)

const (
	sortPushed = "pushed"
	sortSemver = "semver"

	outputTab  = "tab"
	outputJSON = "json"
)

type listVersionsOpts struct {
	*rootOpts
	limit        int
	match        string
	sort         string
	outputFormat string
}

func newListVersions(parent *rootOpts) *listVersionsOpts {
	return &listVersionsOpts{rootOpts: parent}
}

func (opts *listVersionsOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-versions",
		Short: "List the image tags pushed to the repository, oldest first.",
		Example: makeExample(
			"ecsdeploy list-versions",
			"ecsdeploy list-versions --limit 10",
			"ecsdeploy list-versions --match 'v1.*'",
			"ecsdeploy list-versions --sort semver -o json",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "l", 0, "number of most recent tags to show (0 for all)")
	cmd.Flags().StringVarP(&opts.match, "match", "m", "", "only show tags matching a glob, or semver:<constraint> or regexp:<expression>")
	cmd.Flags().StringVar(&opts.sort, "sort", sortPushed, "order tags by push time (pushed) or by version (semver)")
	cmd.Flags().StringVarP(&opts.outputFormat, "output-format", "o", outputTab, "output format (tab or json)")
	return cmd
}

func (opts *listVersionsOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if opts.limit < 0 {
		return newUsageError("--limit must not be negative")
	}
	if opts.sort != sortPushed && opts.sort != sortSemver {
		return newUsageError("--sort must be one of pushed, semver")
	}
	if opts.outputFormat != outputTab && opts.outputFormat != outputJSON {
		return errorInvalidOutputFormat
	}
	pattern, err := image.ParsePattern(opts.match)
	if err != nil {
		return usageError{err}
	}

	infos, err := opts.backend.releaser.ListVersions(opts.ctx, opts.Config.Repository)
	if err != nil {
		return err
	}
	infos = image.Filter(infos, pattern)
	if opts.sort == sortSemver {
		image.Sort(infos, image.OlderBySemver)
	}
	if opts.limit > 0 && len(infos) > opts.limit {
		infos = infos[len(infos)-opts.limit:]
	}

	switch opts.outputFormat {
	case outputJSON:
		return outputVersionsJson(infos, opts.stdout)
	default:
		outputVersionsTab(infos, opts.stdout)
		return nil
	}
}

func outputVersionsJson(infos []image.Info, out io.Writer) error {
	if infos == nil {
		infos = []image.Info{}
	}
	e := json.NewEncoder(out)
	e.SetIndent("", "  ")
	return e.Encode(infos)
}

func outputVersionsTab(infos []image.Info, out io.Writer) {
	w := newTabwriter(out)
	fmt.Fprintln(w, "TAG\tDIGEST\tPUSHED")
	for _, info := range infos {
		pushed := ""
		if !info.PushedAt.IsZero() {
			pushed = info.PushedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.ID.Tag, shortDigest(info.Digest), pushed)
	}
	w.Flush()
}

// shortDigest trims a digest to the 12 hex digits docker shows.
// Anything that doesn't parse as a digest is shown as it is.
func shortDigest(s string) string {
	const n = 12
	d, err := digest.Parse(s)
	if err != nil || len(d.Hex()) <= n {
		return s
	}
	return d.Algorithm().String() + ":" + d.Hex()[:n]
}
