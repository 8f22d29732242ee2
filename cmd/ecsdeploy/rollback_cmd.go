package main

import (
	"github.com/spf13/cobra"

	"github.com/fluxcd/ecsdeploy/pkg/release"
)

type rollbackOpts struct {
	*rootOpts
	tag string
}

func newRollback(parent *rootOpts) *rollbackOpts {
	return &rollbackOpts{rootOpts: parent}
}

func (opts *rollbackOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Put an earlier image back into service.",
		Long: `Put an earlier image back into service. This registers a new revision
of the task definition family with the image, rather than reusing an
old revision, so the latest revision is always what is running. Use
list-versions to see which tags there are.`,
		Example: makeExample(
			"ecsdeploy rollback --tag 1d2e3f4",
			"ecsdeploy rollback --tag 1d2e3f4 --force=false",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.tag, "tag", "t", "", "image tag to roll back to (required)")
	return cmd
}

func (opts *rollbackOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if opts.tag == "" {
		return newUsageError("--tag is required; use list-versions to see the tags available")
	}

	result, err := opts.backend.releaser.Rollback(opts.ctx, release.Spec{
		Family:     opts.Config.Family,
		Service:    opts.service(),
		Repository: opts.Config.Repository,
		Tag:        opts.tag,
		Force:      opts.Config.Force,
	})
	return reportResult(opts.stdout, result, err)
}
