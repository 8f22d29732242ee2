package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type statusOpts struct {
	*rootOpts
}

func newStatus(parent *rootOpts) *statusOpts {
	return &statusOpts{rootOpts: parent}
}

func (opts *statusOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what the service is running.",
		Example: makeExample(
			"ecsdeploy status",
			"ecsdeploy status --cluster prod --service web --family web",
		),
		RunE: opts.RunE,
	}
}

func (opts *statusOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	status, err := opts.backend.releaser.Status(opts.ctx, opts.Config.Family, opts.service())
	if err != nil {
		return err
	}

	snap := status.Snapshot
	w := newTabwriter(opts.stdout)
	fmt.Fprintln(w, "SERVICE\tREVISION\tLATEST\tSTATUS\tRUNNING\tPENDING\tDESIRED\tDEPLOYMENTS")
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n", snap.Service, snap.TaskDefinition, status.Latest,
		snap.Status(), snap.RunningCount, snap.PendingCount, snap.DesiredCount, snap.Deployments)
	w.Flush()

	if !status.Current() {
		fmt.Fprintf(opts.stdout, "\nThe service is not running the latest revision of %s.\n", opts.Config.Family)
	}
	if len(snap.Events) > 0 {
		fmt.Fprintln(opts.stdout, "\nRecent events:")
		for _, ev := range snap.Events {
			fmt.Fprintf(opts.stdout, "  %s\n", ev)
		}
	}
	return nil
}
