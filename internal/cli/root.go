package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "slimforge",
	Short: "Fine-tune an image classifier with channel-sparsity regularisation",
	Long: `slimforge trains a classifier on WebDataset shards, penalising the
batch-norm channel scales so that unimportant channels can later be pruned.
Every run gets its own timestamped directory holding the config snapshot,
log.log and the latest checkpoint.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("slimforge version {{.Version}}\n")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
