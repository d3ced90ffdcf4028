package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arjunmehta/medilens/internal/domain"
	"github.com/arjunmehta/medilens/internal/logger"
)

const (
	singleMedicineMessage = "No interactions checked (single medicine)."
	uncheckedMessage      = "Could not check interactions."
	noConflictMessage     = "No interactions found."
)

// InteractionService aggregates a cross-record drug-interaction judgment
// from one inference call. A failed check is reported as unknown, never
// as "no risk found".
type InteractionService struct {
	ai domain.Inferencer
}

func NewInteractionService(ai domain.Inferencer) *InteractionService {
	return &InteractionService{ai: ai}
}

type interactionAnswer struct {
	HasConflict bool   `json:"has_conflict"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Analyze issues exactly one external call for two or more records.
// Fewer than two records short-circuits without any call.
func (s *InteractionService) Analyze(ctx context.Context, records []domain.MedicineRecord) domain.InteractionReport {
	if len(records) < 2 {
		return domain.InteractionReport{
			HasConflict: false,
			Severity:    domain.SeverityNone,
			Description: singleMedicineMessage,
		}
	}

	raw, err := s.ai.CheckInteractions(ctx, summarizeRecords(records))
	if err != nil {
		logger.Warn("Interaction check failed", "error", err, "medicines", len(records))
		return uncheckedReport()
	}

	payload := extractPayload(stripCodeFences(raw))
	if payload == "" {
		logger.Warn("Interaction answer carried no JSON payload")
		return uncheckedReport()
	}

	var answer interactionAnswer
	if err := json.Unmarshal([]byte(payload), &answer); err != nil {
		logger.Warn("Failed to parse interaction answer", "error", err)
		return uncheckedReport()
	}

	if !answer.HasConflict {
		description := strings.TrimSpace(answer.Description)
		if description == "" {
			description = noConflictMessage
		}
		return domain.InteractionReport{
			HasConflict: false,
			Severity:    domain.SeverityNone,
			Description: description,
		}
	}

	severity, ok := parseSeverity(answer.Severity)
	if !ok {
		logger.Warn("Unrecognized interaction severity", "severity", answer.Severity)
		return uncheckedReport()
	}

	// When severity is high the model is asked to prefix the description
	// with a loud warning marker; the engine trusts but never injects it.
	return domain.InteractionReport{
		HasConflict: true,
		Severity:    severity,
		Description: answer.Description,
	}
}

func uncheckedReport() domain.InteractionReport {
	return domain.InteractionReport{
		HasConflict: false,
		Severity:    domain.SeverityNone,
		Description: uncheckedMessage,
	}
}

func parseSeverity(s string) (domain.Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return domain.SeverityHigh, true
	case "medium", "moderate":
		return domain.SeverityMedium, true
	case "low":
		return domain.SeverityLow, true
	case "none":
		return domain.SeverityNone, true
	}
	return domain.SeverityNone, false
}

// summarizeRecords lists each medicine's name and active ingredients for
// the interaction prompt.
func summarizeRecords(records []domain.MedicineRecord) string {
	var b strings.Builder
	for i, rec := range records {
		fmt.Fprintf(&b, "%d. %s", i+1, rec.MedicineName)
		if len(rec.ActiveIngredients) > 0 {
			fmt.Fprintf(&b, " (active ingredients: %s)", strings.Join(rec.ActiveIngredients, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
