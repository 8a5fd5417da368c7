package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/closerlab/thirtysix/internal/answers"
	"github.com/closerlab/thirtysix/internal/catalog"
	"github.com/closerlab/thirtysix/internal/config"
	"github.com/closerlab/thirtysix/internal/mcptools"
	"github.com/closerlab/thirtysix/internal/progress"
	"github.com/closerlab/thirtysix/internal/prompts"
	"github.com/closerlab/thirtysix/internal/storage"
)

// --- questions ---

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Inspect the question catalog",
}

var questionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all questions in catalog order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		cat, err := catalog.Load(cfg.Storage.CatalogPath)
		if err != nil {
			return err
		}

		for _, q := range cat.Questions() {
			fmt.Printf("  %s %s\n", colorize(colorBold, fmt.Sprintf("%2d.", q.ID)), q.Prompt)
			if q.Guidance != "" {
				fmt.Printf("      %s\n", q.Guidance)
			}
		}
		return nil
	},
}

var questionsValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a catalog file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			path = cfg.Storage.CatalogPath
		}

		cat, err := catalog.Load(path)
		if err != nil {
			printError("catalog invalid: %v", err)
			return err
		}

		printSuccess("%s: %d questions, ids sorted and unique", path, cat.Len())
		return nil
	},
}

func init() {
	questionsCmd.AddCommand(questionsListCmd)
	questionsCmd.AddCommand(questionsValidateCmd)
}

// --- answers ---

var answersCmd = &cobra.Command{
	Use:   "answers",
	Short: "Inspect stored answers",
}

var answersShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a user's answers as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := answers.Open(filepath.Join(cfg.Storage.DataDir, "answers"))
		if err != nil {
			return err
		}

		set, err := store.Load(args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(set)
	},
}

var answersExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all users' answers as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := answers.Open(filepath.Join(cfg.Storage.DataDir, "answers"))
		if err != nil {
			return err
		}

		users, err := store.Users()
		if err != nil {
			return err
		}

		writer := os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}

		printStep("Exporting answers for %d users...", len(users))

		// Each load serializes on its own user lock, so a bounded fan-out
		// is safe here.
		sets := make([]answers.UserAnswerSet, len(users))
		var g errgroup.Group
		g.SetLimit(8)
		for i, u := range users {
			g.Go(func() error {
				set, err := store.Load(u)
				if err != nil {
					return fmt.Errorf("loading answers for %s: %w", u, err)
				}
				sets[i] = set
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		enc := json.NewEncoder(writer)
		for _, set := range sets {
			if err := enc.Encode(set); err != nil {
				return err
			}
		}

		if output != "" {
			printSuccess("Answers exported to %s", output)
		}
		return nil
	},
}

func init() {
	answersExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	answersCmd.AddCommand(answersShowCmd)
	answersCmd.AddCommand(answersExportCmd)
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "Inspect the interaction log",
}

var interactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded interactions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.ListInteractions(user, limit, 0)
		if err != nil {
			return err
		}

		if len(list) == 0 {
			fmt.Println("  no interactions recorded")
			return nil
		}
		for _, ix := range list {
			model := ix.Model
			if model == "" {
				model = "template"
			}
			fmt.Printf("  %s  %-6s q%-3d %-12s %s\n",
				ix.CreatedAt.Format(time.RFC3339), ix.Kind, ix.QuestionID, model, ix.UserID)
		}
		return nil
	},
}

func init() {
	interactionsListCmd.Flags().String("user", "", "filter by user id")
	interactionsListCmd.Flags().Int("limit", 20, "maximum number of interactions")
	interactionsCmd.AddCommand(interactionsListCmd)
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio (without the HTTP server)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		cat, err := catalog.Load(cfg.Storage.CatalogPath)
		if err != nil {
			return fmt.Errorf("loading question catalog: %w", err)
		}

		lib, err := prompts.Load(cfg.Storage.PromptsPath)
		if err != nil {
			printWarning("prompts unavailable: %v", err)
			lib = nil
		}

		store, err := answers.Open(filepath.Join(cfg.Storage.DataDir, "answers"))
		if err != nil {
			return fmt.Errorf("opening answer store: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mcpSrv := mcptools.NewServer(mcptools.Deps{
			Catalog: cat,
			Store:   store,
			Tracker: progress.New(cat, store),
			Prompts: lib,
		})
		return server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout)
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
