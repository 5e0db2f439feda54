package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"inspecta-backend/internal/models"
)

// paramsFile is the YAML layout accepted by `sync --file`.
type paramsFile struct {
	Parameters []models.LocalParameter `yaml:"parameters"`
}

func readParams(path string) ([]models.LocalParameter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f paramsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Parameters) == 0 {
		return nil, fmt.Errorf("%s lists no parameters", path)
	}
	return f.Parameters, nil
}

func syncCmd() *cobra.Command {
	var file string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync <check-id>",
		Short: "Reconcile local parameter readings with the check's non-compliance cases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checkID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid check id %q", args[0])
			}
			params, err := readParams(file)
			if err != nil {
				return err
			}

			plan, err := api.SyncNonCompliances(cmd.Context(), checkID, models.SyncRequest{Parameters: params, DryRun: dryRun})
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a `parameters` list")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the plan without applying it")
	cmd.MarkFlagRequired("file")
	return cmd
}

func printPlan(out io.Writer, plan *models.SyncPlan) {
	for _, a := range plan.Create {
		fmt.Fprintf(out, "create    %s = %s\n", a.Parameter.Name, a.Parameter.Value)
	}
	for _, a := range plan.Resolve {
		fmt.Fprintf(out, "resolve   %s (case %s, matched by %s)\n", a.Parameter.Name, a.Case.ID, a.MatchedBy)
	}
	for _, a := range plan.Unchanged {
		fmt.Fprintf(out, "unchanged %s\n", a.Parameter.Name)
	}
	for _, c := range plan.Orphans {
		fmt.Fprintf(out, "orphan    %s [%s] %s\n", c.ParameterName, c.Status, c.ID)
	}
	if plan.Applied {
		fmt.Fprintln(out, "applied")
	} else {
		fmt.Fprintln(out, "dry run, nothing changed")
	}
}
