package courts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonesrussell/courtcapture/internal/domain"
)

// The labor-court portals share the PJE response shape. Jurisdictions with
// diverging shapes register their own parsers instead of these.

const pjeDateLayout = "2006-01-02T15:04:05"

// pjeTime accepts the portal's timestamp variants.
type pjeTime struct {
	time.Time
}

func (t *pjeTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{pjeDateLayout, time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized PJE timestamp: %q", s)
}

type pjeProcesso struct {
	ID             int64   `json:"id"`
	NumeroProcesso string  `json:"numeroProcesso"`
	ClasseJudicial string  `json:"classeJudicial"`
	Assunto        string  `json:"assunto"`
	PoloAtivo      string  `json:"poloAtivo"`
	PoloPassivo    string  `json:"poloPassivo"`
	DataAutuacao   pjeTime `json:"dataAutuacao"`
	Arquivado      bool    `json:"arquivado"`
}

type pjeAudiencia struct {
	ID             int64   `json:"id"`
	NumeroProcesso string  `json:"numeroProcesso"`
	Tipo           string  `json:"tipo"`
	DataInicio     pjeTime `json:"dataInicio"`
	Sala           string  `json:"sala"`
	Status         string  `json:"status"`
}

type pjePendente struct {
	ID             int64    `json:"id"`
	NumeroProcesso string   `json:"numeroProcesso"`
	TipoExpediente string   `json:"tipoExpediente"`
	DataPrazo      *pjeTime `json:"dataPrazo"`
	IDDocumento    int64    `json:"idDocumento"`
	DataCiencia    pjeTime  `json:"dataCiencia"`
}

type pjeTimelineItem struct {
	ID             int64   `json:"id"`
	NumeroProcesso string  `json:"numeroProcesso"`
	Titulo         string  `json:"titulo"`
	Descricao      string  `json:"descricao"`
	Data           pjeTime `json:"data"`
	IDDocumento    int64   `json:"idDocumento"`
	TipoDocumento  string  `json:"tipoDocumento"`
	Assinado       bool    `json:"assinado"`
	Sigiloso       bool    `json:"sigiloso"`
}

// ParsePJEDocket parses one docket item.
func ParsePJEDocket(raw json.RawMessage) (domain.NormalizedRecord, error) {
	var p pjeProcesso
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to parse docket item: %w", err)
	}
	if p.NumeroProcesso == "" {
		return nil, fmt.Errorf("docket item %d has no case number", p.ID)
	}
	return &domain.DocketEntry{
		PortalID:   p.ID,
		CaseNumber: p.NumeroProcesso,
		Class:      p.ClasseJudicial,
		Subject:    p.Assunto,
		Claimant:   p.PoloAtivo,
		Defendant:  p.PoloPassivo,
		FiledAt:    p.DataAutuacao.Time,
		Archived:   p.Arquivado,
	}, nil
}

// ParsePJEArchived parses one archived docket item.
func ParsePJEArchived(raw json.RawMessage) (domain.NormalizedRecord, error) {
	rec, err := ParsePJEDocket(raw)
	if err != nil {
		return nil, err
	}
	entry, ok := rec.(*domain.DocketEntry)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T", rec)
	}
	entry.Archived = true
	return entry, nil
}

// ParsePJEHearing parses one hearing item.
func ParsePJEHearing(raw json.RawMessage) (domain.NormalizedRecord, error) {
	var a pjeAudiencia
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to parse hearing item: %w", err)
	}
	if a.NumeroProcesso == "" {
		return nil, fmt.Errorf("hearing item %d has no case number", a.ID)
	}
	return &domain.Hearing{
		PortalID:   a.ID,
		CaseNumber: a.NumeroProcesso,
		Type:       a.Tipo,
		StartsAt:   a.DataInicio.Time,
		Courtroom:  a.Sala,
		Status:     a.Status,
	}, nil
}

// ParsePJEPending parses one pending-notice item.
func ParsePJEPending(raw json.RawMessage) (domain.NormalizedRecord, error) {
	var p pjePendente
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to parse pending item: %w", err)
	}
	if p.NumeroProcesso == "" {
		return nil, fmt.Errorf("pending item %d has no case number", p.ID)
	}
	item := &domain.PendingItem{
		PortalID:   p.ID,
		CaseNumber: p.NumeroProcesso,
		NoticeType: p.TipoExpediente,
		DocumentID: p.IDDocumento,
		NoticedAt:  p.DataCiencia.Time,
	}
	if p.DataPrazo != nil {
		item.Deadline = &p.DataPrazo.Time
	}
	return item, nil
}

// ParsePJETimeline parses one timeline event.
func ParsePJETimeline(raw json.RawMessage) (domain.NormalizedRecord, error) {
	var t pjeTimelineItem
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to parse timeline item: %w", err)
	}
	if t.NumeroProcesso == "" {
		return nil, fmt.Errorf("timeline item %d has no case number", t.ID)
	}
	return &domain.TimelineEvent{
		PortalID:     t.ID,
		CaseNumber:   t.NumeroProcesso,
		Title:        t.Titulo,
		Description:  t.Descricao,
		OccurredAt:   t.Data.Time,
		DocumentID:   t.IDDocumento,
		DocumentType: t.TipoDocumento,
		Signed:       t.Assinado,
		Confidential: t.Sigiloso,
	}, nil
}

// RegisterPJEParsers registers the PJE parser set for a jurisdiction.
func RegisterPJEParsers(reg *Registry, code string) {
	reg.RegisterParser(code, domain.KindGeneralDocket, ParsePJEDocket)
	reg.RegisterParser(code, domain.KindArchivedDocket, ParsePJEArchived)
	reg.RegisterParser(code, domain.KindHearings, ParsePJEHearing)
	reg.RegisterParser(code, domain.KindPendingNotice, ParsePJEPending)
	reg.RegisterParser(code, domain.KindTimeline, ParsePJETimeline)
}
