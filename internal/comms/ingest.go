package comms

import (
	"context"
	"errors"
	"strings"

	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/logger"
)

// CommunicationStore persists deduplicated notices.
type CommunicationStore interface {
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	Insert(ctx context.Context, c *domain.Communication) (bool, error)
}

// CaseStore matches notices to unified cases and creates stub cases for
// unknown lawsuits.
type CaseStore interface {
	FindForNotice(ctx context.Context, accountID int64, caseNumber, jurisdiction string, instance domain.Instance) (*domain.UnifiedCase, error)
	GetByNumber(ctx context.Context, accountID int64, caseNumber string) (*domain.UnifiedCase, error)
	Create(ctx context.Context, c *domain.UnifiedCase) (bool, error)
}

// Stats summarizes one ingestion. Field names mirror the feed's
// reporting vocabulary.
type Stats struct {
	Total              int `json:"total"`
	Novos              int `json:"novos"`
	Duplicados         int `json:"duplicados"`
	Vinculados         int `json:"vinculados"`
	ExpedientesCriados int `json:"expedientes_criados"`
	Erros              int `json:"erros"`
}

// Ingestor runs notice ingestions.
type Ingestor struct {
	comms CommunicationStore
	cases CaseStore
	log   logger.Interface
}

// NewIngestor creates an ingestor.
func NewIngestor(comms CommunicationStore, cases CaseStore, log logger.Interface) *Ingestor {
	return &Ingestor{comms: comms, cases: cases, log: log.WithComponent("comms")}
}

// Ingest processes a batch of notices. Each notice is isolated: a
// failure counts toward Erros and the batch continues. Re-ingesting the
// same batch only grows Duplicados.
func (i *Ingestor) Ingest(ctx context.Context, accountID int64, notices []*Notice) (*Stats, error) {
	stats := &Stats{Total: len(notices)}

	for _, notice := range notices {
		if err := i.ingestOne(ctx, accountID, notice, stats); err != nil {
			stats.Erros++
			i.log.Error("notice failed to ingest",
				"case_number", notice.CaseNumber,
				"error", err,
			)
		}
	}

	i.log.Info("ingestion finished",
		"total", stats.Total,
		"novos", stats.Novos,
		"duplicados", stats.Duplicados,
		"vinculados", stats.Vinculados,
		"expedientes_criados", stats.ExpedientesCriados,
		"erros", stats.Erros,
	)

	return stats, nil
}

func (i *Ingestor) ingestOne(ctx context.Context, accountID int64, notice *Notice, stats *Stats) error {
	hash := notice.ContentHash()

	exists, err := i.comms.ExistsByHash(ctx, hash)
	if err != nil {
		return err
	}
	if exists {
		stats.Duplicados++
		return nil
	}

	instance := InferInstance(notice.OrganName)

	matched, created, err := i.matchCase(ctx, accountID, notice, instance)
	if err != nil {
		return err
	}

	comm := &domain.Communication{
		ContentHash:  hash,
		CaseNumber:   notice.CaseNumber,
		Jurisdiction: notice.Court,
		Instance:     instance,
		AccountID:    accountID,
		NoticeText:   notice.Text,
		NoticedAt:    notice.NoticedAt,
	}
	if matched != nil {
		comm.CaseID = &matched.ID
	}

	inserted, err := i.comms.Insert(ctx, comm)
	if err != nil {
		return err
	}
	if !inserted {
		// A concurrent ingestion won the hash race.
		stats.Duplicados++
		return nil
	}

	stats.Novos++
	if created {
		stats.ExpedientesCriados++
	} else if matched != nil {
		stats.Vinculados++
	}
	return nil
}

// matchCase links the notice to a unified case. It tries the inferred
// instance first, falls back to the first instance (the filing record),
// then to any case with the number. When nothing matches, a stub case is
// created so the lawsuit becomes visible before its first capture.
func (i *Ingestor) matchCase(
	ctx context.Context,
	accountID int64,
	notice *Notice,
	instance domain.Instance,
) (matched *domain.UnifiedCase, created bool, err error) {
	matched, err = i.cases.FindForNotice(ctx, accountID, notice.CaseNumber, notice.Court, instance)
	if err == nil {
		return matched, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	if instance != domain.InstanceFirst {
		matched, err = i.cases.FindForNotice(ctx, accountID, notice.CaseNumber, notice.Court, domain.InstanceFirst)
		if err == nil {
			return matched, false, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, false, err
		}
	}

	matched, err = i.cases.GetByNumber(ctx, accountID, notice.CaseNumber)
	if err == nil {
		return matched, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	stub := &domain.UnifiedCase{
		CaseNumber:      notice.CaseNumber,
		AccountID:       accountID,
		Origin:          domain.OriginExternalNotice,
		CurrentInstance: instance,
	}
	wasCreated, err := i.cases.Create(ctx, stub)
	if err != nil {
		return nil, false, err
	}
	if !wasCreated {
		// Lost a creation race; link to the winner.
		matched, err = i.cases.GetByNumber(ctx, accountID, notice.CaseNumber)
		if err != nil {
			return nil, false, err
		}
		return matched, false, nil
	}

	return stub, true, nil
}

// InferInstance derives the procedural level from the issuing organ's
// name. Chamber and panel organs sit at the appellate level, superior
// court organs above it; trial organs are the default.
func InferInstance(organName string) domain.Instance {
	organ := strings.ToLower(organName)

	for _, marker := range []string{"tribunal superior", "superior tribunal", "tst", "stj", "stf"} {
		if strings.Contains(organ, marker) {
			return domain.InstanceSuperior
		}
	}
	for _, marker := range []string{"turma", "gabinete", "segundo grau", "câmara", "seção especializada"} {
		if strings.Contains(organ, marker) {
			return domain.InstanceSecond
		}
	}
	return domain.InstanceFirst
}
