package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fluxcd/ecsdeploy/pkg/git"
	"github.com/fluxcd/ecsdeploy/pkg/release"
	"github.com/fluxcd/ecsdeploy/pkg/rollout"
)

type releaseOpts struct {
	*rootOpts
	tag string
}

func newRelease(parent *rootOpts) *releaseOpts {
	return &releaseOpts{rootOpts: parent}
}

func (opts *releaseOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Release an image to the service.",
		Long: `Release an image to the service. A new revision of the task definition
family is registered with the image, the service is updated to it with
its running tasks replaced, and the command waits for the service to
settle. Without --tag, the tag is the short hash of the git commit
checked out in the current directory.`,
		Example: makeExample(
			"ecsdeploy release",
			"ecsdeploy release --tag 3f2a9c1",
			"ecsdeploy release --cluster prod --service web --family web --container app --tag v1.4.2",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.tag, "tag", "t", "", "image tag to release (default: short git revision)")
	return cmd
}

func (opts *releaseOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}

	tag := opts.tag
	if tag == "" {
		rev, err := opts.backend.revision(opts.ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(opts.stdout, "Using the git revision %s as the tag\n", rev)
		tag = rev
	}

	result, err := opts.backend.releaser.Release(opts.ctx, release.Spec{
		Family:     opts.Config.Family,
		Service:    opts.service(),
		Repository: opts.Config.Repository,
		Tag:        tag,
	})
	return reportResult(opts.stdout, result, err)
}

func shortRevision(ctx context.Context) (string, error) {
	return git.ShortRevision(ctx, "")
}

// reportResult prints as much of the result as there is. A release
// that timed out waiting is reported as such, with the last snapshot.
func reportResult(out io.Writer, result release.Result, err error) error {
	if result.Revision.Revision > 0 {
		fmt.Fprintf(out, "Registered %s with image %s\n", result.Revision, result.Image)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Updated %s to %s (attempts: %d, forced replacement: %t)\n",
		result.Snapshot.Service, result.Revision, result.Attempts, result.Forced)

	switch result.Outcome {
	case rollout.Stable:
		fmt.Fprintf(out, "Service is stable: %s\n", result.Snapshot)
		return nil
	default:
		fmt.Fprintf(out, "Service has not stabilised: %s\n", result.Snapshot)
		for _, ev := range result.Snapshot.Events {
			fmt.Fprintf(out, "  %s\n", ev)
		}
		return &timedOutError{snapshot: result.Snapshot}
	}
}
