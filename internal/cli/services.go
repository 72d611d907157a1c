package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/berth/internal/compose"
)

func newServicesCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "services",
		Short: "Display a summary of services defined in the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadProject()
			if err != nil {
				return err
			}
			project := doc.Project

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVICE\tIMAGE\tPORTS\tDEPENDS ON\tHEALTH\tMEM")
			for _, name := range project.ServicesSorted() {
				svc := project.Services[name]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					name,
					formatImage(svc),
					formatList(svc.Ports),
					formatDependencies(svc),
					formatHealth(svc.Healthcheck),
					formatMemory(svc.MemLimit))
			}
			w.Flush()

			fmt.Fprintf(out, "\nStartup order: %s\n", strings.Join(doc.Graph.StartupOrder(), ", "))
			return nil
		},
	}
	return cmd
}

func formatImage(svc *compose.Service) string {
	if svc.Image != "" {
		return svc.Image
	}
	if svc.Build != nil {
		return fmt.Sprintf("build:%s", svc.Build.Context)
	}
	return "-"
}

func formatList(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ",")
}

func formatDependencies(svc *compose.Service) string {
	targets := svc.DependsOn.Services()
	if len(targets) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		dep, _ := svc.DependsOn.Get(target)
		parts = append(parts, fmt.Sprintf("%s (%s)", target, dep.EffectiveCondition()))
	}
	return strings.Join(parts, ", ")
}

func formatHealth(h *compose.Healthcheck) string {
	if h == nil {
		return "-"
	}
	if h.Disabled() {
		return "disabled"
	}
	return fmt.Sprintf("%s (timeout %s, retries %d)",
		h.Test.Kind(), h.EffectiveTimeout(), h.EffectiveRetries())
}

func formatMemory(limit *compose.ByteSize) string {
	if limit == nil {
		return "-"
	}
	return limit.String()
}
