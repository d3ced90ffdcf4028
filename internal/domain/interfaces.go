package domain

import (
	"context"
)

// Inferencer is the vision/language inference collaborator. Responses are
// prose-adjacent text that may or may not contain valid JSON.
type Inferencer interface {
	AnalyzeMedicationImage(ctx context.Context, imageData []byte) (string, error)
	CheckInteractions(ctx context.Context, summary string) (string, error)
	TranslateBatch(ctx context.Context, entries []TranslatedFields, targetLang string) ([]TranslatedFields, error)
	TranslateText(ctx context.Context, text, targetLang string) (string, error)
}

// ScanStore is the persistent key-value collaborator. It owns the
// newest-first cap on recent scans.
type ScanStore interface {
	SaveScan(ctx context.Context, scan *ScanResult) error
	RecentScans(ctx context.Context) ([]ScanResult, error)
	SaveActiveMedication(ctx context.Context, record MedicineRecord) error
	ActiveMedications(ctx context.Context) ([]MedicineRecord, error)
}

// NotificationGateway is the local notification collaborator. Delivery
// and the permission-prompt UX are its responsibility.
type NotificationGateway interface {
	HasPermission(ctx context.Context) bool
	RequestPermission(ctx context.Context) (bool, error)
	Schedule(ctx context.Context, trigger ScheduledTrigger) error
}
