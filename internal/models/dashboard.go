package models

// DashboardStats aggregates per-owner totals shown on the dashboard.
type DashboardStats struct {
	Templates             int64        `db:"templates" json:"templates"`
	Batches               int64        `db:"batches" json:"batches"`
	CertificatesGenerated int64        `db:"certificates_generated" json:"certificates_generated"`
	CertificatesFailed    int64        `db:"certificates_failed" json:"certificates_failed"`
	RecentActivity        []DailyCount `json:"recent_activity"`
}

// DailyCount is one day's generated-certificate total, dates rendered as
// YYYY-MM-DD.
type DailyCount struct {
	Day       string `db:"day" json:"day"`
	Generated int64  `db:"generated" json:"generated"`
}
