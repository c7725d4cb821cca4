// Package cmd holds the descent command tree.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a config file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		solveCmd,
		configCmd,
	)
}

var rootCmd = &cobra.Command{
	Use:   "descent",
	Short: "Recursive task solving over language models",
	Long: `descent solves a task by working it through a draft-verify-decide loop,
splitting it into subtasks when it is too large to solve in one pass and
folding the subtask results back into the parent.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// API keys commonly live in a local .env; absence is fine.
		_ = godotenv.Load()
	},
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

// maybePrependStdin prepends piped input to the task so code or documents
// can be fed through a pipe.
func maybePrependStdin(task string) (string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return task, err
	}
	if stat.Mode()&os.ModeCharDevice != 0 || stat.Size() == 0 {
		return task, nil
	}
	piped, err := io.ReadAll(os.Stdin)
	if err != nil {
		return task, err
	}
	if len(piped) == 0 {
		return task, nil
	}
	if task == "" {
		return string(piped), nil
	}
	return fmt.Sprintf("%s\n\n%s", strings.TrimSpace(string(piped)), task), nil
}
