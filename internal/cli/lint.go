package cli

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newLintCmd(ctx *context) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Validate a compose manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadProject()
			if err != nil {
				return err
			}

			warnings := doc.Project.Warnings()
			for _, warning := range warnings {
				logrus.Warn(warning)
			}
			if strict && len(warnings) > 0 {
				return fmt.Errorf("lint failed: %d warning(s) in strict mode", len(warnings))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d service(s), %d volume(s), %d network(s) OK\n",
				strings.Join(doc.Sources, ", "),
				len(doc.Project.Services),
				len(doc.Project.Volumes),
				len(doc.Project.Networks))
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")
	return cmd
}
