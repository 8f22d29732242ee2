package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fluxcd/ecsdeploy/pkg/registry"
)

type loginOpts struct {
	*rootOpts
	registryIDs []string
	password    bool
}

func newLogin(parent *rootOpts) *loginOpts {
	return &loginOpts{rootOpts: parent}
}

func (opts *loginOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Print registry credentials for pushing images.",
		Long: `Print credentials for the ECR registry, as the "auths" part of a docker
config file, for the build step that pushes images. With --password,
print just the password, to pipe to 'docker login --password-stdin'.`,
		Example: makeExample(
			"ecsdeploy login > ~/.docker/config.json",
			"ecsdeploy login --password | docker login --username AWS --password-stdin 123456789012.dkr.ecr.us-east-1.amazonaws.com",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringSliceVar(&opts.registryIDs, "registry-id", nil, "AWS account IDs of the registries (default: your own)")
	cmd.Flags().BoolVar(&opts.password, "password", false, "print only the password")
	return cmd
}

func (opts *loginOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	creds, err := registry.ECRCredentials(opts.ctx, opts.backend.ecr, opts.registryIDs)
	if err != nil {
		return err
	}
	if !opts.password {
		fmt.Fprintln(opts.stdout, creds.String())
		return nil
	}

	if len(creds.Auths) != 1 {
		return newUsageError(fmt.Sprintf("--password needs exactly one registry, got %d; use --registry-id", len(creds.Auths)))
	}
	var hosts []string
	for host := range creds.Auths {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	_, password, err := creds.Auths[hosts[0]].UserPass()
	if err != nil {
		return err
	}
	fmt.Fprintln(opts.stdout, password)
	return nil
}
