package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dativo-io/disclose/internal/audit"
	"github.com/dativo-io/disclose/internal/config"
	"github.com/dativo-io/disclose/internal/identity"
	"github.com/dativo-io/disclose/internal/report"
	"github.com/dativo-io/disclose/internal/run"
	"github.com/dativo-io/disclose/internal/source"
)

var (
	processEmail  string
	processSource string
	processRedact string
	processOutput string
)

var processCmd = &cobra.Command{
	Use:   "process <export-file> <data-subject-name>",
	Short: "Process a vendor export into a DSAR disclosure package",
	Long: `Process resolves the data subject in the export's roster, classifies
every record for relevance, redacts third-party identities, and writes the
disclosure report plus the internal-only redaction key.

Examples:
  disclose process export.json "John Smith" --email john@company.com
  disclose process export.zip.json "Jane Doe" -e jane@co.com --source slack
  disclose process export.csv "Bob Wilson" --redact "Alice Brown, Charlie Davis"`,
	Args: cobra.ExactArgs(2),
	RunE: processRun,
}

func init() {
	processCmd.Flags().StringVarP(&processEmail, "email", "e", "", "data subject's email (required if multiple name matches)")
	processCmd.Flags().StringVarP(&processSource, "source", "s", "generic_json", "source descriptor name (slack, jira, zendesk, generic_json, generic_csv)")
	processCmd.Flags().StringVarP(&processRedact, "redact", "r", "", "additional names to redact (comma-separated)")
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "output directory (default from config)")
	rootCmd.AddCommand(processCmd)
}

func processRun(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "cmd.process")
	defer span.End()

	exportPath, subjectName := args[0], args[1]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.WarnIfDefaultKey()
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	outputDir := cfg.OutputDir
	if processOutput != "" {
		outputDir = processOutput
	}

	registry, err := source.NewRegistry(cfg.SourcesFile)
	if err != nil {
		return err
	}

	store, err := audit.NewStore(cfg.AuditDBPath(), cfg.SigningKey)
	if err != nil {
		return fmt.Errorf("initializing audit store: %w", err)
	}
	defer store.Close()

	pipeline := run.New(
		registry,
		store,
		audit.NewEventLog(outputDir),
		report.NewWriter(outputDir),
		cfg.MinAliasLen,
	)

	res, err := pipeline.Process(ctx, run.Request{
		ExportPath:      exportPath,
		Source:          processSource,
		SubjectName:     subjectName,
		SubjectEmail:    processEmail,
		ExtraRedactions: parseExtraRedactions(processRedact),
	})
	if err != nil {
		var ambiguous *identity.AmbiguousMatchError
		if errors.As(err, &ambiguous) {
			// Candidate detail goes to stderr for the operator to pick from.
			fmt.Fprintln(os.Stderr, ambiguous.Error())
		}
		return err
	}

	fmt.Printf("✓ %s: %d of %d records disclosed for %s\n",
		processSource, res.Included, res.Scanned, res.Subject.Display())
	fmt.Printf("  Redacted: %d users, %d bots, %d external\n",
		res.Stats["user"], res.Stats["bot"], res.Stats["external"])
	fmt.Printf("  → %s\n", res.ReportPath)
	fmt.Printf("  → %s (internal only)\n", res.KeyPath)

	return nil
}

// parseExtraRedactions splits the comma-separated --redact argument.
func parseExtraRedactions(arg string) []string {
	if arg == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(arg, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
