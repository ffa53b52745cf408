package models

// JobState константы состояний сделки
const (
	JobStateCreated    = "created"
	JobStateFunded     = "funded"
	JobStateAccepted   = "accepted"
	JobStateActive     = "active"
	JobStateDelivered  = "delivered"
	JobStateDisputed   = "disputed"
	JobStateCompleted  = "completed"
	JobStateRefunded   = "refunded"
	JobStateArbitrated = "arbitrated"
)

// MilestoneState константы состояний этапов
const (
	MilestoneStatePending   = "pending"
	MilestoneStateSubmitted = "submitted"
	MilestoneStateApproved  = "approved"
)

// DisputeStatus константы статусов споров. Итог раздела хранится в
// client_percent, отдельных статусов на исходы не заводим.
const (
	DisputeStatusOpen     = "open"
	DisputeStatusResolved = "resolved"
)

// ValidJobStates список валидных состояний сделок
var ValidJobStates = map[string]struct{}{
	JobStateCreated:    {},
	JobStateFunded:     {},
	JobStateAccepted:   {},
	JobStateActive:     {},
	JobStateDelivered:  {},
	JobStateDisputed:   {},
	JobStateCompleted:  {},
	JobStateRefunded:   {},
	JobStateArbitrated: {},
}

// TerminalJobStates терминальные состояния: из них нет переходов,
// сделка остаётся неизменяемой историей.
var TerminalJobStates = map[string]struct{}{
	JobStateCompleted:  {},
	JobStateRefunded:   {},
	JobStateArbitrated: {},
}

// IsTerminalJobState сообщает, терминально ли состояние.
func IsTerminalJobState(state string) bool {
	_, ok := TerminalJobStates[state]
	return ok
}
