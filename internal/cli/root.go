package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tim-schneider/nexsync/faults"
	"github.com/tim-schneider/nexsync/normalize"
	"github.com/tim-schneider/nexsync/reconcile"
	"github.com/tim-schneider/nexsync/schema"
)

func NewRootCommand(deps Dependencies) *cobra.Command {
	var configSource string

	root := &cobra.Command{
		Use:   "nexsync",
		Short: "Converge a Nexus Repository server onto its declared configuration",
		Long: `nexsync reads a declarative configuration document, compares it with the
state a Nexus Repository server reports over its REST API, and applies the
minimal set of create, update and delete calls to converge the server.`,
		Example: `  # Show what a run would change without touching the server
  nexsync plan --config nexsync.yaml

  # Converge the server, asking before deletes
  nexsync apply --config nexsync.yaml

  # Reconcile only the repository types, from a Git-hosted document
  nexsync apply --config git+https://git.example.com/infra/nexus.git#main --types maven-hosted-repository,maven-proxy-repository`,
		RunE: func(command *cobra.Command, _ []string) error {
			return command.Help()
		},
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configSource, "config", "c", "nexsync.yaml", "Configuration document: a file path or git+URL[#ref][//path]")

	root.AddCommand(newPlanCommand(deps, &configSource))
	root.AddCommand(newApplyCommand(deps, &configSource))
	root.AddCommand(newValidateCommand(deps, &configSource))
	root.AddCommand(newVersionCommand(deps))

	return root
}

func newPlanCommand(deps Dependencies, configSource *string) *cobra.Command {
	var types []string
	var details bool

	command := &cobra.Command{
		Use:   "plan",
		Short: "Compute the changes a run would apply, without applying them",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			driver, err := buildDriver(deps, *configSource)
			if err != nil {
				return err
			}
			report, err := driver.Run(command.Context(), reconcile.Request{Types: types, DryRun: true})
			if err != nil {
				return err
			}
			renderReport(command.OutOrStdout(), report)
			if details {
				if err := renderDesiredDocuments(command.OutOrStdout(), report); err != nil {
					return err
				}
			}
			if report.Failed() {
				return ErrReconciliationFailed
			}
			return nil
		},
	}
	command.Flags().StringSliceVarP(&types, "types", "t", nil, "Restrict the run to these resource types")
	command.Flags().BoolVarP(&details, "details", "d", false, "Print the full desired document for every pending create and update")
	return command
}

func newApplyCommand(deps Dependencies, configSource *string) *cobra.Command {
	var types []string
	var dryRun bool
	var assumeYes bool

	command := &cobra.Command{
		Use:   "apply",
		Short: "Converge the server onto the declared configuration",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			driver, err := buildDriver(deps, *configSource)
			if err != nil {
				return err
			}

			plan, err := driver.Run(command.Context(), reconcile.Request{Types: types, DryRun: true})
			if err != nil {
				return err
			}
			if dryRun {
				renderReport(command.OutOrStdout(), plan)
				if plan.Failed() {
					return ErrReconciliationFailed
				}
				return nil
			}

			if pending := plan.PendingDeletes(); pending > 0 && !assumeYes {
				if deps.Confirm == nil {
					return faults.NewTypedError(
						faults.ValidationError,
						fmt.Sprintf("run would delete %d remote item(s); re-run with --yes to proceed", pending),
						nil,
					)
				}
				confirmed, err := deps.Confirm(fmt.Sprintf("Delete %d remote item(s)?", pending))
				if err != nil {
					return err
				}
				if !confirmed {
					return ErrAborted
				}
			}

			report, err := driver.Run(command.Context(), reconcile.Request{Types: types})
			if err != nil {
				return err
			}
			renderReport(command.OutOrStdout(), report)
			if report.Failed() {
				return ErrReconciliationFailed
			}
			return nil
		},
	}
	command.Flags().StringSliceVarP(&types, "types", "t", nil, "Restrict the run to these resource types")
	command.Flags().BoolVar(&dryRun, "dry-run", false, "Compute and print the changes without applying them")
	command.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask before deleting remote items")
	return command
}

func newValidateCommand(deps Dependencies, configSource *string) *cobra.Command {
	command := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration document without contacting the server",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			cfg, err := deps.LoadConfig(*configSource)
			if err != nil {
				return err
			}

			typeCount := 0
			itemCount := 0
			for _, name := range cfg.ResourceTypeNames() {
				rt, err := deps.Registry.Type(name)
				if err != nil {
					return err
				}
				sch, err := schemaForValidate(deps, name)
				if err != nil {
					return err
				}

				items, err := cfg.DesiredList(rt)
				if err != nil {
					return err
				}
				layers := cfg.LayersFor(rt)
				for _, item := range items {
					merged := normalize.MergeLayers(append(append([]any{}, layers...), item)...)
					if _, err := normalize.Item(merged, sch, rt); err != nil {
						return err
					}
					itemCount++
				}
				typeCount++
			}

			fmt.Fprintf(command.OutOrStdout(), "configuration valid: %d resource type(s), %d item(s)\n", typeCount, itemCount)
			return nil
		},
	}
	return command
}

func newVersionCommand(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the nexsync version",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			version := deps.Version
			if version == "" {
				version = "dev"
			}
			fmt.Fprintf(command.OutOrStdout(), "nexsync %s\n", version)
			return nil
		},
	}
}

func buildDriver(deps Dependencies, configSource string) (*reconcile.Driver, error) {
	cfg, err := deps.LoadConfig(configSource)
	if err != nil {
		return nil, err
	}
	client, err := deps.NewClient(cfg.Server)
	if err != nil {
		return nil, err
	}
	return reconcile.NewDriver(deps.Registry, client, cfg), nil
}

func schemaForValidate(deps Dependencies, name string) (schema.Schema, error) {
	legacy, err := deps.Registry.Get(name, schema.DialectLegacy)
	if err == nil {
		return legacy, nil
	}
	return deps.Registry.Get(name, schema.DialectCanonical)
}
