package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/logger"
)

// DocumentOptions controls attachment downloads during timeline captures.
type DocumentOptions struct {
	// Download enables attachment downloads.
	Download bool `mapstructure:"capturar_documentos"`
	// SignedOnly skips unsigned documents.
	SignedOnly bool `mapstructure:"apenas_assinados"`
	// SkipConfidential skips documents marked confidential.
	SkipConfidential bool `mapstructure:"ignorar_sigilosos"`
	// Types restricts downloads to the listed document types. Empty means
	// every type.
	Types []string `mapstructure:"tipos_documento"`
}

// wants reports whether the event's document passes the download filters.
func (o *DocumentOptions) wants(e *domain.TimelineEvent) bool {
	if e.DocumentID == 0 {
		return false
	}
	if o.SignedOnly && !e.Signed {
		return false
	}
	if o.SkipConfidential && e.Confidential {
		return false
	}
	if len(o.Types) == 0 {
		return true
	}
	for _, t := range o.Types {
		if strings.EqualFold(t, e.DocumentType) {
			return true
		}
	}
	return false
}

// downloadDocuments fetches the attachments of timeline events that pass
// the request filters. A failed download is recorded in the raw log and
// counted; it never fails the run.
func (e *Executor) downloadDocuments(
	ctx context.Context,
	log logger.Interface,
	run *domain.CaptureRun,
	req *Request,
	session *Session,
	records []domain.NormalizedRecord,
	result *Result,
) {
	for _, record := range records {
		event, ok := record.(*domain.TimelineEvent)
		if !ok || !req.Documents.wants(event) {
			continue
		}

		data, err := e.client.DownloadDocument(ctx, session, event.DocumentID)
		if err == nil {
			err = e.documents.Store(ctx, event.CaseNumber, event.DocumentID, data)
		}
		if err != nil {
			result.DocumentsFailed++
			log.Warn("document download failed",
				"document_id", event.DocumentID,
				"case_number", event.CaseNumber,
				"error", err,
			)

			entry := &domain.RawLogEntry{
				RunID:        run.ID,
				Kind:         run.Kind,
				Jurisdiction: run.Jurisdiction,
				Instance:     run.Instance,
				AccountID:    run.AccountID,
				ContentHash:  documentHashKey(event.DocumentID),
				Status:       domain.RawLogError,
				ErrorMessage: fmt.Sprintf("%s: %v", domain.CodeAttachmentDownload, err),
			}
			if appendErr := e.rawLog.Append(ctx, entry); appendErr != nil {
				log.Error("failed to record document download failure", "error", appendErr)
			}
			continue
		}

		result.DocumentsDownloaded++
	}
}

func documentHashKey(documentID int64) string {
	return "document:" + strconv.FormatInt(documentID, 10)
}

// FileDocumentStore persists downloaded documents on the local
// filesystem, one directory per case.
type FileDocumentStore struct {
	root string
}

// NewFileDocumentStore creates a document store rooted at dir.
func NewFileDocumentStore(dir string) *FileDocumentStore {
	return &FileDocumentStore{root: dir}
}

// Store implements DocumentStore.
func (s *FileDocumentStore) Store(_ context.Context, caseNumber string, documentID int64, data []byte) error {
	// Case numbers contain dots and dashes only, but sanitize anyway.
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, caseNumber)

	dir := filepath.Join(s.root, safe)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}

	path := filepath.Join(dir, strconv.FormatInt(documentID, 10)+".pdf")
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	return nil
}
