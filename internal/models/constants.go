package models

// ReportStatus константы статусов отчёта. Машина состояний односторонняя:
// AWAITING_CLEAN — единственное начальное состояние, VERIFIED и REJECTED — терминальные.
const (
	ReportStatusAwaitingClean = "AWAITING_CLEAN"
	ReportStatusVerified      = "VERIFIED"
	ReportStatusRejected      = "REJECTED"
)

// ValidReportStatuses список валидных статусов отчёта.
var ValidReportStatuses = map[string]struct{}{
	ReportStatusAwaitingClean: {},
	ReportStatusVerified:      {},
	ReportStatusRejected:      {},
}

// SettlementState константы состояний интента расчёта (outbox для mint → publish).
const (
	SettlementStatePending   = "PENDING"
	SettlementStateMinted    = "MINTED"
	SettlementStateCompleted = "COMPLETED"
)

// Типы событий, публикуемых в consensus-лог.
const (
	HcsEventCleanupVerification = "CLEANUP_VERIFICATION"
	HcsEventDidCreation         = "DID_CREATION"
)

// LeaderboardPeriod константы периодов лидерборда.
const (
	LeaderboardPeriodWeek    = "week"
	LeaderboardPeriodMonth   = "month"
	LeaderboardPeriodAllTime = "alltime"
)
