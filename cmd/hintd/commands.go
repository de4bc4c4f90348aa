package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kalambet/hintd/internal/config"
	"github.com/kalambet/hintd/internal/notes"
	"github.com/kalambet/hintd/internal/storage"
)

// --- predict ---

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the next reminder for one or more requests, locally",
	Long: `Run the prediction engine on request files without a server.

Each file holds one request: {"context": [...notes], "current_time": "YYYY-MM-DD HH:MM"}.
Use "-" to read a request from stdin.

Examples:
  hintd predict --file history.json
  hintd predict --file monday.json --file tuesday.json
  cat history.json | hintd predict --file -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, _ := cmd.Flags().GetStringArray("file")
		if len(files) == 0 {
			return fmt.Errorf("--file is required")
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return runPredict(cmd.Context(), cfg, files, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	predictCmd.Flags().StringArray("file", nil, "request file (repeatable, - for stdin)")
}

type predictResult struct {
	File     string              `json:"file"`
	Response *notes.HintResponse `json:"response,omitempty"`
	Error    string              `json:"error,omitempty"`
}

func readRequest(path string, stdin io.Reader) (notes.HintRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return notes.HintRequest{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var req notes.HintRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return notes.HintRequest{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return req, nil
}

// runPredict predicts every request offline. A single file prints its
// response; several files print one result per file, in order.
func runPredict(ctx context.Context, cfg config.Config, files []string, stdin io.Reader, w io.Writer) error {
	suggester, err := buildSuggester(cfg, nil, nil)
	if err != nil {
		return err
	}

	results := make([]predictResult, len(files))
	var (
		reqs  []notes.HintRequest
		slots []int
	)
	for i, f := range files {
		results[i].File = f
		req, err := readRequest(f, stdin)
		if err != nil {
			results[i].Error = err.Error()
			continue
		}
		reqs = append(reqs, req)
		slots = append(slots, i)
	}

	for j, br := range suggester.SuggestBatch(ctx, reqs, 0) {
		i := slots[j]
		if br.Err != nil {
			results[i].Error = br.Err.Error()
			continue
		}
		results[i].Response = br.Response
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if len(results) == 1 {
		if results[0].Error != "" {
			return fmt.Errorf("%s", results[0].Error)
		}
		return enc.Encode(results[0].Response)
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if err := enc.Encode(results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(results))
	}
	return nil
}

// --- suggestions ---

var suggestionsCmd = &cobra.Command{
	Use:   "suggestions",
	Short: "Browse served suggestions and record answers",
}

var suggestionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent suggestions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listSuggestions(cmd.Context(), client, cmd.OutOrStdout(), limit, offset, time.Now())
	},
}

func listSuggestions(ctx context.Context, client *apiClient, w io.Writer, limit, offset int, now time.Time) error {
	var suggestions []storage.Suggestion
	path := fmt.Sprintf("/v1/suggestions?limit=%d&offset=%d", limit, offset)
	if err := client.call(ctx, http.MethodGet, path, nil, &suggestions); err != nil {
		return err
	}

	if len(suggestions) == 0 {
		fmt.Fprintln(w, "No suggestions found.")
		return nil
	}

	for _, sg := range suggestions {
		text := sg.HintText
		if r := []rune(text); len(r) > 80 {
			text = string(r[:80]) + "..."
		}
		fmt.Fprintf(w, "%s  %-14s  %-8s  %s\n",
			colorize(colorCyan, shortID(sg.ID)),
			humanize.RelTime(sg.CreatedAt, now, "ago", "from now"),
			statusColor(sg.Status),
			text,
		)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var suggestionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single suggestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var sg any
		if err := client.call(cmd.Context(), http.MethodGet, "/v1/suggestions/"+args[0], nil, &sg); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(sg)
	},
}

var suggestionsFeedbackCmd = &cobra.Command{
	Use:   "feedback <id> <yes|no>",
	Short: "Record whether the user accepted a suggestion",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		accepted, err := parseAnswer(args[1])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]bool{"accepted": accepted}
		if err := client.call(cmd.Context(), http.MethodPost, "/v1/suggestions/"+args[0]+"/feedback", body, nil); err != nil {
			return err
		}

		if accepted {
			printSuccess("Suggestion %s accepted", args[0])
		} else {
			printSuccess("Suggestion %s rejected", args[0])
		}
		return nil
	},
}

func parseAnswer(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "accept", "accepted", "да":
		return true, nil
	case "no", "n", "false", "reject", "rejected", "нет":
		return false, nil
	}
	return false, fmt.Errorf("answer must be yes or no, got %q", s)
}

var suggestionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a suggestion from the log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if err := client.call(cmd.Context(), http.MethodDelete, "/v1/suggestions/"+args[0], nil, nil); err != nil {
			return err
		}

		printSuccess("Deleted suggestion %s", args[0])
		return nil
	},
}

func init() {
	suggestionsListCmd.Flags().Int("limit", 20, "maximum number of suggestions to list")
	suggestionsListCmd.Flags().Int("offset", 0, "number of suggestions to skip")
	suggestionsCmd.AddCommand(suggestionsListCmd)
	suggestionsCmd.AddCommand(suggestionsShowCmd)
	suggestionsCmd.AddCommand(suggestionsFeedbackCmd)
	suggestionsCmd.AddCommand(suggestionsDeleteCmd)
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
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		if key == "server.api_token" {
			printSuccess("API token stored")
			return nil
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
