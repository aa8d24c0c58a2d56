// Package domain provides domain models used across the application.
package domain

// CaptureKind identifies the kind of capture a run performs.
type CaptureKind string

const (
	// KindGeneralDocket captures the active docket for an account.
	KindGeneralDocket CaptureKind = "acervo_geral"
	// KindArchivedDocket captures archived cases.
	KindArchivedDocket CaptureKind = "arquivados"
	// KindHearings captures scheduled hearings.
	KindHearings CaptureKind = "audiencias"
	// KindPendingNotice captures items awaiting a response within a legal deadline.
	KindPendingNotice CaptureKind = "pendentes_manifestacao"
	// KindTimeline captures the procedural timeline and documents of cases.
	KindTimeline CaptureKind = "timeline"
)

// Valid reports whether the kind is one of the supported capture kinds.
func (k CaptureKind) Valid() bool {
	switch k {
	case KindGeneralDocket, KindArchivedDocket, KindHearings, KindPendingNotice, KindTimeline:
		return true
	}
	return false
}

// Instance is the procedural level of a case.
type Instance string

const (
	// InstanceFirst is the first procedural level.
	InstanceFirst Instance = "primeiro_grau"
	// InstanceSecond is the appellate level.
	InstanceSecond Instance = "segundo_grau"
	// InstanceSuperior is the superior court level.
	InstanceSuperior Instance = "tribunal_superior"
)

// instanceRank orders instances from lowest to highest procedural level.
var instanceRank = map[Instance]int{
	InstanceFirst:    1,
	InstanceSecond:   2,
	InstanceSuperior: 3,
}

// Rank returns the ordering of the instance. Higher means a later
// procedural level. Unknown instances rank lowest.
func (i Instance) Rank() int {
	return instanceRank[i]
}

// Valid reports whether the instance is a known procedural level.
func (i Instance) Valid() bool {
	_, ok := instanceRank[i]
	return ok
}

// DeadlineFilter selects pending-notice items by deadline grouping.
// The filter is applied server-side via query parameters so that the
// totalizer reported by the portal matches the filtered result set.
type DeadlineFilter string

const (
	// DeadlineWithin selects items still inside their legal deadline.
	DeadlineWithin DeadlineFilter = "no_prazo"
	// DeadlineNone selects items without a running deadline.
	DeadlineNone DeadlineFilter = "sem_prazo"
)

// PortalParam returns the portal-side value for the agrupadorExpediente
// query parameter.
func (f DeadlineFilter) PortalParam() string {
	switch f {
	case DeadlineWithin:
		return "N"
	case DeadlineNone:
		return "I"
	}
	return ""
}
