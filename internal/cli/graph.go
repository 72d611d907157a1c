package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/berth/internal/cliutil"
)

func newGraphCmd(ctx *context) *cobra.Command {
	var dot bool
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the service dependency graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadProject()
			if err != nil {
				return err
			}
			if dot {
				fmt.Fprint(cmd.OutOrStdout(), doc.Graph.DOT())
				return nil
			}

			var b strings.Builder
			for i, svc := range doc.Graph.Roots() {
				if i > 0 {
					b.WriteByte('\n')
				}
				renderServiceTree(&b, doc, svc, "", "", true, make(map[string]bool))
			}
			fmt.Fprint(cmd.OutOrStdout(), b.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&dot, "dot", false, "Render in Graphviz DOT format")
	return cmd
}

func renderServiceTree(b *strings.Builder, doc *cliutil.ProjectDocument, svc string, prefix string, condition string, isLast bool, visited map[string]bool) {
	linePrefix := prefix
	if condition != "" {
		if isLast {
			linePrefix += "└─ "
		} else {
			linePrefix += "├─ "
		}
	}

	annotation := ""
	if condition != "" {
		annotation = fmt.Sprintf(" (condition=%s)", condition)
	}
	fmt.Fprintf(b, "%s%s%s\n", linePrefix, svc, annotation)

	if visited[svc] {
		return
	}
	visited[svc] = true
	defer delete(visited, svc)

	deps := doc.Graph.Dependencies(svc)
	if len(deps) == 0 {
		return
	}

	nextPrefix := prefix
	if condition != "" {
		if isLast {
			nextPrefix += "   "
		} else {
			nextPrefix += "│  "
		}
	}

	for i, child := range deps {
		renderServiceTree(b, doc, child, nextPrefix, doc.Graph.Condition(svc, child), i == len(deps)-1, visited)
	}
}
