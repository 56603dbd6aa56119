// Package main provides the blesta command line interface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/blestadev/blesta-go/internal/blesta/client"
	"github.com/blestadev/blesta-go/internal/blesta/config"
	"github.com/blestadev/blesta-go/internal/blesta/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// errRequestFailed marks a run whose JSON error body was already
// printed; main exits 1 without a second message.
var errRequestFailed = errors.New("api request failed")

func buildRootCmd() *cobra.Command {
	var (
		logLevel string
		envFile  string

		model       string
		method      string
		action      string
		params      []string
		lastRequest bool
	)

	rootCmd := &cobra.Command{
		Use:   "blesta",
		Short: "Command line interface for the Blesta REST API",
		Long: `Send requests to a Blesta installation's REST API, fetch monthly
report series, and batch-extract paginated endpoints.

Credentials come from BLESTA_API_URL, BLESTA_API_USER, and
BLESTA_API_KEY, optionally loaded from a local .env file.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logging.Setup(logging.Config{Level: logLevel, Pretty: true, Output: os.Stderr})
			if err := config.LoadDotenv(envFile); err != nil {
				log.Warn().Err(err).Str("path", envFile).Msg("Failed to load .env file")
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCall(cmd.Context(), model, method, action, params, lastRequest)
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to .env file with API credentials")

	rootCmd.Flags().StringVar(&model, "model", "", "Blesta API model (e.g., clients)")
	rootCmd.Flags().StringVar(&method, "method", "", "Blesta API method (e.g., getList)")
	rootCmd.Flags().StringVar(&action, "action", "GET", "HTTP action (GET, POST, PUT, DELETE)")
	rootCmd.Flags().StringSliceVar(&params, "params", nil, "key=value request parameters")
	rootCmd.Flags().BoolVar(&lastRequest, "last-request", false, "Show the last API request made")
	if err := rootCmd.MarkFlagRequired("model"); err != nil {
		panic(err)
	}
	if err := rootCmd.MarkFlagRequired("method"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(buildReportCmd())
	rootCmd.AddCommand(buildExtractCmd())

	return rootCmd
}

func buildReportCmd() *cobra.Command {
	var (
		reportType  string
		fromMonth   string
		toMonth     string
		extraVars   []string
		concurrency int
	)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Fetch a monthly report series as flat annotated rows",
		Long: `Fetch one report per month over an inclusive YYYY-MM range and print
all CSV rows as a single JSON list, each row annotated with a "_period"
field. Months that fail are skipped with a warning.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.Context(), reportType, fromMonth, toMonth, extraVars, concurrency)
		},
	}

	reportCmd.Flags().StringVar(&reportType, "type", "", "Report type (e.g., package_revenue)")
	reportCmd.Flags().StringVar(&fromMonth, "from", "", "Start month as YYYY-MM (inclusive)")
	reportCmd.Flags().StringVar(&toMonth, "to", "", "End month as YYYY-MM (inclusive)")
	reportCmd.Flags().StringSliceVar(&extraVars, "var", nil, "Additional vars[] report parameters as key=value")
	reportCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Fetch months concurrently, bounded by this count (0 = sequential)")
	for _, flag := range []string{"type", "from", "to"} {
		if err := reportCmd.MarkFlagRequired(flag); err != nil {
			panic(err)
		}
	}

	return reportCmd
}

func buildExtractCmd() *cobra.Command {
	var (
		targets    []string
		sequential bool
	)

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Batch-extract multiple paginated endpoints",
		Long: `Drain several list endpoints to completion and print a JSON object
keyed by "model.method". Targets run concurrently unless --sequential
is set; a failing target records its error without discarding the rest.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtract(cmd.Context(), targets, sequential)
		},
	}

	extractCmd.Flags().StringSliceVar(&targets, "target", nil, "Extraction target as model.method (repeatable)")
	extractCmd.Flags().BoolVar(&sequential, "sequential", false, "Process targets in input order instead of concurrently")
	if err := extractCmd.MarkFlagRequired("target"); err != nil {
		panic(err)
	}

	return extractCmd
}

// newAPIClient builds a client from environment credentials. A missing
// credential prints a JSON error body and maps to exit code 1.
func newAPIClient() (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		printJSON(map[string]any{"error": err.Error()})
		return nil, errRequestFailed
	}
	api, err := client.New(client.DefaultConfig(cfg.URL, cfg.User, cfg.Key))
	if err != nil {
		return nil, err
	}
	return api, nil
}

func runCall(ctx context.Context, model, method, action string, rawParams []string, showLastRequest bool) error {
	api, err := newAPIClient()
	if err != nil {
		return err
	}
	defer api.Close()

	params, err := parseParams(rawParams)
	if err != nil {
		return err
	}

	resp, err := api.Submit(ctx, model, method, params, strings.ToUpper(action))
	if err != nil {
		return err
	}

	if resp.OK() {
		printJSON(resp.Data())
	} else {
		printJSON(resp.Errors())
	}

	if showLastRequest {
		if last := api.LastRequest(); last != nil {
			fmt.Println("\nLast Request URL:", last.URL)
			fmt.Println("Last Request Parameters:", formatParams(last.Params))
		} else {
			fmt.Println("No previous API request made.")
		}
	}

	if !resp.OK() {
		return errRequestFailed
	}
	return nil
}

func runReport(ctx context.Context, reportType, fromMonth, toMonth string, rawVars []string, concurrency int) error {
	api, err := newAPIClient()
	if err != nil {
		return err
	}
	defer api.Close()

	extraVars, err := parseStringParams(rawVars)
	if err != nil {
		return err
	}

	var rows []map[string]string
	if concurrency > 0 {
		rows, err = api.ReportSeriesConcurrent(ctx, reportType, fromMonth, toMonth, extraVars, concurrency)
	} else {
		rows, err = api.ReportSeries(ctx, reportType, fromMonth, toMonth, extraVars)
	}
	if err != nil {
		return err
	}

	printJSON(rows)
	return nil
}

func runExtract(ctx context.Context, rawTargets []string, sequential bool) error {
	targets, err := parseTargets(rawTargets)
	if err != nil {
		return err
	}

	api, err := newAPIClient()
	if err != nil {
		return err
	}
	defer api.Close()

	var results map[string]client.ExtractResult
	if sequential {
		results = api.Extract(ctx, targets)
	} else {
		results = api.ExtractConcurrent(ctx, targets)
	}

	out := make(map[string]any, len(results))
	failed := false
	for key, result := range results {
		if result.Err != nil {
			out[key] = map[string]any{"error": result.Err.Error()}
			failed = true
			continue
		}
		out[key] = result.Items
	}

	printJSON(out)
	if failed {
		return errRequestFailed
	}
	return nil
}

// parseParams converts key=value pairs into request parameters.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}

// parseStringParams is parseParams for string-valued maps (report vars).
func parseStringParams(pairs []string) (map[string]string, error) {
	params, err := parseParams(pairs)
	if err != nil || params == nil {
		return nil, err
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v.(string)
	}
	return out, nil
}

// parseTargets converts "model.method" labels into extraction targets.
// Plugin models use dot notation too, so only the last dot splits.
func parseTargets(labels []string) ([]client.Target, error) {
	targets := make([]client.Target, 0, len(labels))
	for _, label := range labels {
		idx := strings.LastIndex(label, ".")
		if idx <= 0 || idx == len(label)-1 {
			return nil, fmt.Errorf("invalid target %q: expected model.method", label)
		}
		targets = append(targets, client.Target{
			Model:  label[:idx],
			Method: label[idx+1:],
		})
	}
	return targets, nil
}

func formatParams(params map[string]any) string {
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprint(params)
	}
	return string(encoded)
}

func printJSON(v any) {
	encoded, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		fmt.Println("null")
		return
	}
	fmt.Println(string(encoded))
}

func main() {
	ctx := context.Background()
	rootCmd := buildRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errRequestFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
