package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"travel_server/adapter/out/export"
	"travel_server/adapter/out/provider/gmail"
	"travel_server/config"
	"travel_server/core/service/itinerary"
	"travel_server/core/service/travel"
	"travel_server/internal/bootstrap"
	"travel_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	userID           string
	daysBack         int
	maxResults       int
	maildirPath      string
	includePast      bool
	includeCancelled bool
	sendDigest       bool
	outPath          string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "travel",
	Short: "Travel itinerary extraction from booking emails",
	Long: `travel classifies incoming email as travel bookings, extracts the
bookings with an LLM and keeps a merged, per-user itinerary.

Run without a subcommand to start the API server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (and background scans when configured)",
	RunE:  runServe,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the mailbox once and merge found bookings",
	Long: `Scan the configured mailbox (Gmail or a local Maildir) for travel
emails and merge the extracted items into the user's itinerary.

Examples:
  travel scan --user alice --days-back 30
  travel scan --user alice --maildir ~/Mail/inbox`,
	RunE: runScan,
}

var tripsCmd = &cobra.Command{
	Use:   "trips",
	Short: "Print a user's itinerary as JSON, or list users",
	RunE:  runTrips,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the upcoming-travel digest",
	RunE:  runSummary,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the full itinerary to an xlsx workbook",
	RunE:  runExport,
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Gmail access and store the OAuth token",
	RunE:  runAuth,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user the command acts on")

	scanCmd.Flags().IntVar(&daysBack, "days-back", 0, "look back this many days (default SCAN_DAYS_BACK)")
	scanCmd.Flags().IntVar(&maxResults, "max-results", 0, "fetch at most this many emails (default SCAN_MAX_RESULTS)")
	scanCmd.Flags().StringVar(&maildirPath, "maildir", "", "read mail from this Maildir instead of Gmail")

	tripsCmd.Flags().BoolVar(&includePast, "include-past", false, "include items that already started")
	tripsCmd.Flags().BoolVar(&includeCancelled, "include-cancelled", false, "include cancelled items")

	summaryCmd.Flags().BoolVar(&sendDigest, "send", false, "mail the digest over SMTP")

	exportCmd.Flags().StringVarP(&outPath, "out", "o", "itinerary.xlsx", "output file, - for stdout")

	rootCmd.AddCommand(serveCmd, scanCmd, tripsCmd, summaryCmd, exportCmd, authCmd)
}

// setup loads config and configures the default logger
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Output:  os.Stderr,
		Service: "travel",
		Console: cfg.IsDevelopment(),
	})
	return cfg, nil
}

func requireUser() error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	return bootstrap.Serve(ctx, cfg)
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	cfg, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg, bootstrap.Options{MaildirPath: maildirPath})
	if err != nil {
		return err
	}
	defer cleanup()

	if !deps.ScanService.HasMailSource() {
		return fmt.Errorf("no mail source configured; set MAILDIR_PATH, pass --maildir, or run the auth command")
	}
	report, err := deps.ScanService.ScanInbox(ctx, userID, travel.ScanOptions{
		DaysBack:   daysBack,
		MaxResults: maxResults,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), report)
}

func runTrips(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg, bootstrap.Options{SkipMail: true})
	if err != nil {
		return err
	}
	defer cleanup()

	if userID == "" {
		users, err := deps.Store.Users(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), users)
	}
	items := deps.Store.GetUserTrips(ctx, userID, itinerary.TripQuery{
		IncludePast:      includePast,
		IncludeCancelled: includeCancelled,
	})
	return printJSON(cmd.OutOrStdout(), items)
}

func runSummary(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	cfg, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg, bootstrap.Options{SkipMail: true})
	if err != nil {
		return err
	}
	defer cleanup()

	var digest string
	if sendDigest {
		digest, err = deps.SummaryService.SendDigest(ctx, userID)
	} else {
		digest, err = deps.SummaryService.Summarize(ctx, userID)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), digest)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	cfg, err := setup()
	if err != nil {
		return err
	}
	ctx := context.Background()

	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg, bootstrap.Options{SkipMail: true})
	if err != nil {
		return err
	}
	defer cleanup()

	items := deps.Store.GetUserTrips(ctx, userID, itinerary.TripQuery{
		IncludePast:      true,
		IncludeCancelled: true,
	})

	if outPath == "-" {
		return export.WriteXLSX(items, cmd.OutOrStdout())
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := export.WriteXLSX(items, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("exported %d items to %s", len(items), outPath)
	return nil
}

func runAuth(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	oauthCfg, err := gmail.LoadOAuthConfig(cfg.GmailCredentialsFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Open this URL in a browser and grant access:\n\n%s\n\nPaste the authorization code: ", gmail.AuthCodeURL(oauthCfg))

	code, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("no authorization code entered")
	}

	if _, err := gmail.Exchange(context.Background(), oauthCfg, code, cfg.GmailTokenFile); err != nil {
		return err
	}
	fmt.Fprintf(out, "Token saved to %s\n", cfg.GmailTokenFile)
	return nil
}
