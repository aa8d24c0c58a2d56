// Package capture implements the one-shot capture command.
package capture

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/courtcapture/cmd/common"
	"github.com/jonesrussell/courtcapture/internal/capture"
	"github.com/jonesrussell/courtcapture/internal/domain"
)

type flags struct {
	kind           string
	accountID      int64
	jurisdiction   string
	instance       string
	deadlineFilter string
	dateFrom       string
	dateTo         string
	documents      bool
	signedOnly     bool
	skipSecret     bool
	documentTypes  []string
}

// Command returns the capture command.
func Command() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Run a single capture against a court portal",
		Long: `Run one capture for an account, jurisdiction and instance, then
synchronize the retrieved records with the business store. The outcome
is printed as a table.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, &f)
		},
	}

	cmd.Flags().StringVar(&f.kind, "kind", "", "capture kind (acervo_geral, acervo_arquivado, audiencias, pendentes_manifestacao, timeline)")
	cmd.Flags().Int64Var(&f.accountID, "account", 0, "account id")
	cmd.Flags().StringVar(&f.jurisdiction, "jurisdiction", "", "jurisdiction code (e.g. trt3)")
	cmd.Flags().StringVar(&f.instance, "instance", "primeiro_grau", "instance (primeiro_grau, segundo_grau, superior)")
	cmd.Flags().StringVar(&f.deadlineFilter, "deadline-filter", "", "pending-notice deadline filter (no_prazo, sem_prazo)")
	cmd.Flags().StringVar(&f.dateFrom, "from", "", "timeline window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.dateTo, "to", "", "timeline window end (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&f.documents, "documents", false, "download timeline documents")
	cmd.Flags().BoolVar(&f.signedOnly, "signed-only", false, "only download signed documents")
	cmd.Flags().BoolVar(&f.skipSecret, "skip-confidential", false, "skip confidential documents")
	cmd.Flags().StringSliceVar(&f.documentTypes, "document-types", nil, "document types to download")

	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("jurisdiction")

	return cmd
}

func run(cmd *cobra.Command, f *flags) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	deps, err := common.New(cfgFile, debug)
	if err != nil {
		return err
	}
	defer deps.Close()

	req, err := buildRequest(f)
	if err != nil {
		return err
	}

	outcome, err := deps.Service.Capture(cmd.Context(), req)
	if outcome != nil && outcome.Run != nil {
		printOutcome(outcome)
	}
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	return nil
}

func buildRequest(f *flags) (*capture.Request, error) {
	req := &capture.Request{
		Kind:           domain.CaptureKind(f.kind),
		AccountID:      f.accountID,
		Jurisdiction:   f.jurisdiction,
		Instance:       domain.Instance(f.instance),
		DeadlineFilter: domain.DeadlineFilter(f.deadlineFilter),
		Documents: capture.DocumentOptions{
			Download:         f.documents,
			SignedOnly:       f.signedOnly,
			SkipConfidential: f.skipSecret,
			Types:            f.documentTypes,
		},
	}

	if f.dateFrom != "" {
		from, err := time.Parse("2006-01-02", f.dateFrom)
		if err != nil {
			return nil, fmt.Errorf("invalid --from: %w", err)
		}
		req.DateFrom = &from
	}
	if f.dateTo != "" {
		to, err := time.Parse("2006-01-02", f.dateTo)
		if err != nil {
			return nil, fmt.Errorf("invalid --to: %w", err)
		}
		req.DateTo = &to
	}

	return req, req.Validate()
}

func printOutcome(outcome *capture.Outcome) {
	run := outcome.Run

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Run ID", run.ID},
		{"Kind", run.Kind},
		{"Jurisdiction", run.Jurisdiction},
		{"Instance", run.Instance},
		{"Outcome", run.Outcome},
		{"Totalizer", run.Totalizer},
		{"Retrieved", run.Retrieved},
	})
	if run.ErrorCode != "" {
		t.AppendRow(table.Row{"Error", fmt.Sprintf("%s: %s", run.ErrorCode, run.ErrorMessage)})
	}
	if outcome.Sync != nil {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Inserted", outcome.Sync.Inserted},
			{"Updated", outcome.Sync.Updated},
			{"Unchanged", outcome.Sync.Unchanged},
			{"Deduplicated", outcome.Sync.Deduplicated},
			{"Sync errors", outcome.Sync.Errors},
		})
	}
	if outcome.DocumentsDownloaded > 0 || outcome.DocumentsFailed > 0 {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Documents downloaded", outcome.DocumentsDownloaded},
			{"Documents failed", outcome.DocumentsFailed},
		})
	}
	t.Render()
}
