package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/berth/internal/compose"
)

func newConfigCmd(ctx *context) *cobra.Command {
	var (
		listServices  bool
		listVolumes   bool
		listNetworks  bool
		noInterpolate bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Render the manifest in canonical form",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := ctx.loadOptions()
			opts.NoInterpolate = noInterpolate
			project, err := compose.Load(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case listServices:
				for _, name := range project.ServicesSorted() {
					fmt.Fprintln(out, name)
				}
			case listVolumes:
				for _, name := range project.VolumesSorted() {
					fmt.Fprintln(out, name)
				}
			case listNetworks:
				for _, name := range project.NetworksSorted() {
					fmt.Fprintln(out, name)
				}
			default:
				rendered, err := compose.Marshal(project)
				if err != nil {
					return err
				}
				if _, err := out.Write(rendered); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&listServices, "services", false, "Print service names, one per line")
	cmd.Flags().BoolVar(&listVolumes, "volumes", false, "Print volume names, one per line")
	cmd.Flags().BoolVar(&listNetworks, "networks", false, "Print network names, one per line")
	cmd.Flags().BoolVar(&noInterpolate, "no-interpolate", false, "Skip environment variable interpolation")
	cmd.MarkFlagsMutuallyExclusive("services", "volumes", "networks")
	return cmd
}
