package domain

import (
	"time"

	"github.com/lib/pq"
)

// Periodicity controls how often a schedule fires.
type Periodicity string

const (
	// PeriodicityDaily fires once per day at the configured time of day.
	PeriodicityDaily Periodicity = "diaria"
	// PeriodicityEveryNDays fires every IntervalDays days at the
	// configured time of day. IntervalDays must be positive.
	PeriodicityEveryNDays Periodicity = "intervalo_dias"
)

// ScheduleDefinition is a recurring-capture definition (agendamento).
// Created and edited by the schedule management API, consumed by the
// scheduler to compute the next execution.
type ScheduleDefinition struct {
	ID            int64         `db:"id" json:"id"`
	AccountID     int64         `db:"account_id" json:"account_id"`
	CredentialIDs pq.Int64Array `db:"credential_ids" json:"credential_ids"`
	Kind          CaptureKind   `db:"kind" json:"kind"`
	Periodicity   Periodicity   `db:"periodicity" json:"periodicity"`

	// IntervalDays (dias_intervalo) must be present and positive whenever
	// Periodicity is PeriodicityEveryNDays.
	IntervalDays *int `db:"interval_days" json:"interval_days,omitempty"`

	// TimeOfDay is the local wall-clock time the schedule fires, "HH:MM".
	TimeOfDay string `db:"time_of_day" json:"time_of_day"`

	Active      bool       `db:"active" json:"active"`
	ExtraParams JSONBMap   `db:"extra_params" json:"extra_params,omitempty"`
	NextRun     time.Time  `db:"next_run" json:"next_run"`
	LastRun     *time.Time `db:"last_run" json:"last_run,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ScheduleExtraParams are the optional kind-specific parameters carried in
// a schedule's extra_params map.
type ScheduleExtraParams struct {
	DeadlineFilter    DeadlineFilter `mapstructure:"filtro_prazo"`
	DateFrom          string         `mapstructure:"data_inicio"`
	DateTo            string         `mapstructure:"data_fim"`
	DownloadDocuments bool           `mapstructure:"capturar_documentos"`
	SignedOnly        bool           `mapstructure:"apenas_assinados"`
	SkipConfidential  bool           `mapstructure:"ignorar_sigilosos"`
	DocumentTypes     []string       `mapstructure:"tipos_documento"`
}
