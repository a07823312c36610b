package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"lingorelay/internal/app"
	"lingorelay/internal/config"
	"lingorelay/internal/translation"
	"lingorelay/pkg/types"
)

// FUNCTIONAL DISCOVERY: Main entry point with comprehensive error handling and signal management
// Graceful shutdown on SIGINT/SIGTERM ensures proper resource cleanup
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// ARCHITECTURAL DISCOVERY: Separate run function enables testing and error handling
func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("lingorelay", flag.ContinueOnError)
	flags.SetOutput(stdout)
	configPath := flags.String("config", "", "JSON configuration file (overrides LINGORELAY_CONFIG_FILE)")
	listModels := flags.Bool("models", false, "print the language model catalog and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// STEP 1: Load configuration with precedence (file > env > .env > defaults)
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if *listModels {
		catalog, err := translation.NewCatalog(
			types.LanguageCode(cfg.Translation.ReferenceLanguage),
			cfg.Translation.TravelerLanguages(),
			cfg.Translation.ModelTemplate,
			cfg.Translation.Models,
		)
		if err != nil {
			return err
		}
		printModels(stdout, catalog)
		return nil
	}

	logger := logs.GetLoggerFromString(cfg.Logging.Level)

	// STEP 2: Create application with configuration
	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// STEP 3: Start, then wait for the shutdown signal
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// FUNCTIONAL DISCOVERY: Timeout context prevents hanging shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), application.ShutdownTimeout())
	defer cancel()

	if err := application.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

func printModels(w io.Writer, catalog *translation.Catalog) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Language", "To " + string(catalog.Reference()), "From " + string(catalog.Reference())})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, entry := range catalog.Entries() {
		table.Append([]string{string(entry.Language), entry.ToReference, entry.FromReference})
	}
	table.Render()
}
