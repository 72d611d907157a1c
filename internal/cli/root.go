package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Paintersrp/berth/internal/cliutil"
	"github.com/Paintersrp/berth/internal/compose"
)

// NewRootCmd constructs the berth command tree.
func NewRootCmd() *cobra.Command {
	var (
		files      []string
		projectDir string
		verbose    bool
	)

	root := &cobra.Command{
		Use:   "berth",
		Short: "Inspect and validate compose service topologies",
		Long: "berth loads declarative service topologies (compose manifests), checks the\n" +
			"static properties an orchestrator relies on, and renders them in canonical,\n" +
			"graph and tabular forms. It never talks to a container runtime.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logrus.SetOutput(cmd.ErrOrStderr())
			logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.WarnLevel)
			}
			return nil
		},
	}

	root.PersistentFlags().
		StringArrayVarP(&files, "file", "f", nil, "Path to a compose manifest (repeat to merge override files)")
	root.PersistentFlags().
		StringVar(&projectDir, "project-dir", "", "Directory anchoring discovery and relative paths (defaults to the manifest directory)")
	root.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	ctx := &context{files: &files, projectDir: &projectDir}
	root.AddCommand(newLintCmd(ctx))
	root.AddCommand(newConfigCmd(ctx))
	root.AddCommand(newGraphCmd(ctx))
	root.AddCommand(newServicesCmd(ctx))
	root.AddCommand(newEnvCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type context struct {
	files      *[]string
	projectDir *string
}

func (c *context) loadOptions() compose.LoadOptions {
	return compose.LoadOptions{
		Files:      append([]string(nil), *c.files...),
		ProjectDir: *c.projectDir,
	}
}

func (c *context) loadProject() (*cliutil.ProjectDocument, error) {
	opts := c.loadOptions()
	logrus.WithField("files", opts.Files).Debug("loading manifest")
	return cliutil.LoadProject(opts)
}
