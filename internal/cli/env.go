package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/berth/internal/cliutil"
)

func newEnvCmd(ctx *context) *cobra.Command {
	var (
		quote  bool
		reveal bool
	)

	cmd := &cobra.Command{
		Use:   "env <service>",
		Short: "Print the resolved environment for a service",
		Long: "env merges a service's env_file contents with its inline environment\n" +
			"entries (inline wins) and prints the result. Values of credential-like\n" +
			"variables are redacted unless --reveal is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadProject()
			if err != nil {
				return err
			}
			name := args[0]
			svc, ok := doc.Project.Services[name]
			if !ok {
				return fmt.Errorf("service %q is not defined in the manifest", name)
			}

			env := svc.EffectiveEnvironment(os.LookupEnv)
			keys := make([]string, 0, len(env))
			for key := range env {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			out := cmd.OutOrStdout()
			for _, key := range keys {
				value := env[key]
				if !reveal {
					value = cliutil.RedactValue(key, value)
				}
				if quote {
					value = strconv.Quote(value)
				}
				fmt.Fprintf(out, "%s=%s\n", key, value)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&quote, "quote", false, "Quote values for shell consumption")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print credential-like values instead of redacting them")
	return cmd
}
