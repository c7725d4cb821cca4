package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rand/descent/internal/app"
	"github.com/rand/descent/internal/config"
)

func init() {
	solveCmd.Flags().StringArrayP("image", "i", nil, "Image to attach: local path or URL (repeatable)")
	solveCmd.Flags().String("trace", "", "Write a JSONL run trace to this file")
	solveCmd.Flags().BoolP("quiet", "q", false, "Print only the final answer")
	solveCmd.Flags().Duration("timeout", 0, "Abort the run after this duration")
}

var solveCmd = &cobra.Command{
	Use:   "solve [task...]",
	Short: "Solve a task through the recursive loop",
	Example: `
# Solve a task given as arguments
descent solve "Plan a migration from library X to library Y"

# Pipe material in and ask about it
cat main.go | descent solve "What does this code do?"

# Attach an image
descent solve -i diagram.png "Explain this architecture"

# Keep a trace of every call
descent solve --trace run.jsonl "A task worth auditing"
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetBool("quiet")
		images, _ := cmd.Flags().GetStringArray("image")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		a, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer a.Shutdown()

		task := strings.Join(args, " ")
		task, err = maybePrependStdin(task)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		if task == "" {
			return fmt.Errorf("no task provided")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		if !quiet {
			fmt.Fprintln(os.Stderr, "Solving...")
		}
		start := time.Now()
		answer, err := a.Engine.Solve(ctx, task, images...)
		if err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(os.Stderr, "Done in %s.\n\n", time.Since(start).Round(time.Millisecond))
		}
		fmt.Println(answer)
		return nil
	},
}

// setupApp loads the configuration with command-line overrides applied and
// assembles the app.
func setupApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if trace, _ := cmd.Flags().GetString("trace"); trace != "" {
		cfg.TracePath = trace
	}
	return app.New(cfg)
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cwd, err := os.Getwd()
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path, cwd)
	if err != nil {
		return config.Config{}, err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}
	return cfg, nil
}
