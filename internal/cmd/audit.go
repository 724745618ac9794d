package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dativo-io/disclose/internal/audit"
	"github.com/dativo-io/disclose/internal/config"
)

var (
	auditSubject string
	auditSource  string
	auditLimit   int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query and verify the DSAR audit trail",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List run evidence records",
	RunE:  auditList,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <evidence-id>",
	Short: "Verify HMAC signature of an evidence record",
	Args:  cobra.ExactArgs(1),
	RunE:  auditVerify,
}

var auditSummaryCmd = &cobra.Command{
	Use:   "summary <data-subject-name>",
	Short: "Summarize processing activity for one data subject",
	Args:  cobra.ExactArgs(1),
	RunE:  auditSummary,
}

func init() {
	auditListCmd.Flags().StringVar(&auditSubject, "subject", "", "filter by data subject name")
	auditListCmd.Flags().StringVar(&auditSource, "source", "", "filter by source name")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 20, "maximum records to show")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditSummaryCmd)
	rootCmd.AddCommand(auditCmd)
}

func openAuditStore() (*audit.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return audit.NewStore(cfg.AuditDBPath(), cfg.SigningKey)
}

func auditList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openAuditStore()
	if err != nil {
		return fmt.Errorf("initializing audit store: %w", err)
	}
	defer store.Close()

	evidence, err := store.List(ctx, auditSubject, auditSource, time.Time{}, time.Time{}, auditLimit)
	if err != nil {
		return fmt.Errorf("querying evidence: %w", err)
	}

	if len(evidence) == 0 {
		fmt.Println("No evidence records found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIMESTAMP\tSUBJECT\tSOURCE\tINCLUDED\tSCANNED\tSTATUS")
	for _, ev := range evidence {
		status := "ok"
		if ev.Error != "" {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			ev.ID, ev.Timestamp.Format(time.RFC3339), ev.DataSubject,
			ev.Source, ev.RecordsIncluded, ev.RecordsScanned, status)
	}
	return w.Flush()
}

func auditVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openAuditStore()
	if err != nil {
		return fmt.Errorf("initializing audit store: %w", err)
	}
	defer store.Close()

	ok, err := store.Verify(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("evidence %s FAILED signature verification", args[0])
	}
	fmt.Printf("✓ evidence %s signature valid\n", args[0])
	return nil
}

func auditSummary(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openAuditStore()
	if err != nil {
		return fmt.Errorf("initializing audit store: %w", err)
	}
	defer store.Close()

	sum, err := store.Summarize(ctx, args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
