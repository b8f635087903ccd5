package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/cngjsskaisme/folio/internal/api"
	"github.com/cngjsskaisme/folio/internal/config"
	"github.com/cngjsskaisme/folio/internal/crawl"
	"github.com/cngjsskaisme/folio/internal/ingest"
	"github.com/cngjsskaisme/folio/internal/storage"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		ans, err := client.ask(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		fmt.Fprintln(stdout, ans.Answer)
		if verbose {
			printAnswerMeta(ans)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().BoolP("verbose", "v", false, "print attempt count and fallback use")
}

func printAnswerMeta(ans askResponse) {
	printStatus("Attempts", "%d", ans.Attempts)
	if ans.Fallback {
		printWarning("answered from the fallback query")
	}
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return chatLoop(cmd.Context(), client, os.Stdin)
	},
}

// chatLoop asks every non-empty input line. A failed question is reported
// and the loop keeps reading; only EOF or "exit" ends it.
func chatLoop(ctx context.Context, client *apiClient, in io.Reader) error {
	printStep("Ask a question (exit or Ctrl-D to quit)")
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(stderr, colorize(colorBold, "> "))
		if !sc.Scan() {
			fmt.Fprintln(stderr)
			return sc.Err()
		}

		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		ans, err := client.ask(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			printError("%v", err)
			continue
		}
		fmt.Fprintln(stdout, ans.Answer)
		fmt.Fprintln(stdout)
	}
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Index a folder or a piece of text",
	Long: `Index portfolio material.

With a directory argument, every text, HTML and PDF file below it is crawled
and queued; files already indexed with the same content are skipped. The
running server embeds queued documents in the background.

Examples:
  folio ingest ./portfolio
  folio ingest --text "Led the payments migration in 2023" --path notes/payments`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		path, _ := cmd.Flags().GetString("path")

		switch {
		case len(args) == 1 && text != "":
			return errors.New("pass either a directory or --text, not both")
		case len(args) == 1:
			return ingestDir(cmd.Context(), args[0])
		case text != "":
			return ingestText(cmd.Context(), text, path)
		default:
			return errors.New("a directory or --text is required")
		}
	},
}

func init() {
	ingestCmd.Flags().String("text", "", "text content to index")
	ingestCmd.Flags().String("path", "", "identifier for --text content")
}

func ingestDir(ctx context.Context, dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	printStep("Crawling %s", dir)
	files, err := crawl.Walk(dir)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	sum, err := ingest.Files(ctx, store, files)
	if err != nil {
		return err
	}
	printSuccess("Queued %d files (%d unchanged)", sum.Queued, sum.Unchanged)
	return nil
}

func ingestText(ctx context.Context, text, path string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	resp, err := client.post(ctx, api.ManagePrefix+"/ingest", api.IngestRequest{Path: path, Content: text})
	if err != nil {
		return err
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}
	printSuccess("Queued document %s", result["id"])
	return nil
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "Inspect answered questions",
}

var interactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("%s/interactions?limit=%d", api.ManagePrefix, limit))
		if err != nil {
			return err
		}

		var interactions []storage.Interaction
		if err := decodeJSON(resp, &interactions); err != nil {
			return err
		}

		if len(interactions) == 0 {
			fmt.Fprintln(stdout, "No interactions found.")
			return nil
		}

		for _, ix := range interactions {
			status := colorize(colorGreen, ix.Status)
			if ix.Status == storage.StatusFailed {
				status = colorize(colorRed, ix.Status)
			}
			fmt.Fprintf(stdout, "%s  %s  %s  %s\n",
				colorize(colorCyan, shortID(ix.ID)),
				ix.CreatedAt.Local().Format("2006-01-02 15:04"),
				status,
				truncate(ix.Question, 80),
			)
		}
		return nil
	},
}

var interactionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), api.ManagePrefix+"/interactions/"+args[0])
		if err != nil {
			return err
		}

		var interaction any
		if err := decodeJSON(resp, &interaction); err != nil {
			return err
		}

		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(interaction)
	},
}

var interactionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), api.ManagePrefix+"/interactions/"+args[0])
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted interaction %s", args[0])
		return nil
	},
}

func init() {
	interactionsListCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	interactionsCmd.AddCommand(interactionsListCmd)
	interactionsCmd.AddCommand(interactionsShowCmd)
	interactionsCmd.AddCommand(interactionsDeleteCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
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

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(stdout, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
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

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a stored value and fall back to the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store an API key in the platform secret store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}
