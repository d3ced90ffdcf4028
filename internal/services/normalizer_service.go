package services

import (
	"encoding/json"
	"strings"

	"github.com/arjunmehta/medilens/internal/domain"
	"github.com/arjunmehta/medilens/internal/logger"
)

// Fallback phrases substituted for fields the scan could not read. The UI
// renders these directly, so a normalized record never carries an empty
// display field.
const (
	FallbackName          = "Unknown Medicine"
	FallbackNotVisible    = "Not visible"
	FallbackNotAvailable  = "Not available"
	FallbackConsultDoctor = "Consult a doctor"

	// ErrorRecordName marks the sentinel record produced when the raw
	// inference text could not be parsed at all.
	ErrorRecordName = "Scan Error"

	errorExcerptLimit = 100
)

// NormalizerService turns raw inference text into validated medicine
// records. It never returns an error: unrecoverable input yields a single
// sentinel record carrying an excerpt of the raw text.
type NormalizerService struct {
	scorer *FraudService
}

func NewNormalizerService(scorer *FraudService) *NormalizerService {
	return &NormalizerService{scorer: scorer}
}

// rawRecord mirrors the loosely-typed inference payload. Scalar-or-list
// fields use domain.StringList, reported booleans use domain.TriState.
type rawRecord struct {
	MedicineName      string            `json:"medicine_name"`
	ActiveIngredients domain.StringList `json:"active_ingredients"`
	CommonUses        string            `json:"common_uses"`
	Dosage            string            `json:"dosage"`
	Warnings          domain.StringList `json:"warnings"`
	RecommendedTime   string            `json:"recommended_time"`
	FoodWarnings      domain.StringList `json:"food_warnings"`
	PrescriberName    string            `json:"prescriber_name"`
	FacilityName      string            `json:"facility_name"`
	SignatureVerified domain.TriState   `json:"signature_verified"`
	LicenseNumber     string            `json:"license_number"`
	PatientName       string            `json:"patient_name"`
	PatientAge        string            `json:"patient_age"`
	PatientSex        string            `json:"patient_sex"`
	Affordability     rawAffordability  `json:"affordability"`
}

type rawAffordability struct {
	GenericAlternative     string            `json:"generic_alternative"`
	EstimatedSavings       string            `json:"estimated_savings"`
	SeniorDiscountEligible *bool             `json:"senior_discount_eligible"`
	CoverageNote           string            `json:"coverage_note"`
	AssistancePrograms     domain.StringList `json:"assistance_programs"`
}

// stringDefault maps one string field to its fallback phrase. Keeping the
// defaulting rules in one table means the coercion logic is testable apart
// from the parser.
type stringDefault struct {
	fallback string
	get      func(*domain.MedicineRecord) string
	set      func(*domain.MedicineRecord, string)
}

var stringDefaults = []stringDefault{
	{FallbackName,
		func(r *domain.MedicineRecord) string { return r.MedicineName },
		func(r *domain.MedicineRecord, v string) { r.MedicineName = v }},
	{FallbackConsultDoctor,
		func(r *domain.MedicineRecord) string { return r.CommonUses },
		func(r *domain.MedicineRecord, v string) { r.CommonUses = v }},
	{FallbackNotVisible,
		func(r *domain.MedicineRecord) string { return r.Dosage },
		func(r *domain.MedicineRecord, v string) { r.Dosage = v }},
	{FallbackNotAvailable,
		func(r *domain.MedicineRecord) string { return r.Affordability.GenericAlternative },
		func(r *domain.MedicineRecord, v string) { r.Affordability.GenericAlternative = v }},
	{FallbackNotAvailable,
		func(r *domain.MedicineRecord) string { return r.Affordability.EstimatedSavings },
		func(r *domain.MedicineRecord, v string) { r.Affordability.EstimatedSavings = v }},
	{FallbackNotAvailable,
		func(r *domain.MedicineRecord) string { return r.Affordability.CoverageNote },
		func(r *domain.MedicineRecord, v string) { r.Affordability.CoverageNote = v }},
}

// listFields enumerates every list-typed field so they are never nil in a
// normalized record, regardless of what the source provided.
var listFields = []func(*domain.MedicineRecord) *domain.StringList{
	func(r *domain.MedicineRecord) *domain.StringList { return &r.ActiveIngredients },
	func(r *domain.MedicineRecord) *domain.StringList { return &r.Warnings },
	func(r *domain.MedicineRecord) *domain.StringList { return &r.FoodWarnings },
	func(r *domain.MedicineRecord) *domain.StringList { return &r.Affordability.AssistancePrograms },
}

// Normalize converts raw inference text into a list of validated records.
// An intentionally empty JSON array yields an empty slice; only a genuine
// parse failure injects the sentinel error record.
func (s *NormalizerService) Normalize(rawText string) []domain.MedicineRecord {
	payload := extractPayload(stripCodeFences(rawText))
	if payload == "" {
		logger.Warn("No JSON payload found in inference output", "length", len(rawText))
		return []domain.MedicineRecord{errorRecord(rawText)}
	}

	var rawList []rawRecord
	if payload[0] == '{' {
		// The model sometimes replies with a single medicine as a bare object.
		var one rawRecord
		if err := json.Unmarshal([]byte(payload), &one); err != nil {
			logger.Warn("Failed to parse inference object", "error", err)
			return []domain.MedicineRecord{errorRecord(rawText)}
		}
		rawList = []rawRecord{one}
	} else {
		if err := json.Unmarshal([]byte(payload), &rawList); err != nil {
			logger.Warn("Failed to parse inference array", "error", err)
			return []domain.MedicineRecord{errorRecord(rawText)}
		}
	}

	records := make([]domain.MedicineRecord, 0, len(rawList))
	for _, rr := range rawList {
		rec := rr.toRecord()
		applyDefaults(&rec)
		if rec.HasPrescriptionContext() {
			assessment := s.scorer.Score(rec)
			rec.Assessment = &assessment
		}
		records = append(records, rec)
	}
	return records
}

func (rr rawRecord) toRecord() domain.MedicineRecord {
	rec := domain.MedicineRecord{
		MedicineName:      strings.TrimSpace(rr.MedicineName),
		ActiveIngredients: rr.ActiveIngredients,
		CommonUses:        strings.TrimSpace(rr.CommonUses),
		Dosage:            strings.TrimSpace(rr.Dosage),
		Warnings:          rr.Warnings,
		RecommendedTime:   strings.TrimSpace(rr.RecommendedTime),
		FoodWarnings:      rr.FoodWarnings,
		PrescriberName:    strings.TrimSpace(rr.PrescriberName),
		FacilityName:      strings.TrimSpace(rr.FacilityName),
		SignatureVerified: rr.SignatureVerified,
		LicenseNumber:     strings.TrimSpace(rr.LicenseNumber),
		PatientName:       strings.TrimSpace(rr.PatientName),
		PatientAge:        strings.TrimSpace(rr.PatientAge),
		PatientSex:        strings.TrimSpace(rr.PatientSex),
		Affordability: domain.Affordability{
			GenericAlternative: strings.TrimSpace(rr.Affordability.GenericAlternative),
			EstimatedSavings:   strings.TrimSpace(rr.Affordability.EstimatedSavings),
			CoverageNote:       strings.TrimSpace(rr.Affordability.CoverageNote),
			AssistancePrograms: rr.Affordability.AssistancePrograms,
			// Nearly all medicines qualify, so eligibility holds unless
			// the source said false outright.
			SeniorDiscountEligible: rr.Affordability.SeniorDiscountEligible == nil || *rr.Affordability.SeniorDiscountEligible,
		},
	}
	return rec
}

func applyDefaults(rec *domain.MedicineRecord) {
	for _, d := range stringDefaults {
		if strings.TrimSpace(d.get(rec)) == "" {
			d.set(rec, d.fallback)
		}
	}
	for _, f := range listFields {
		if *f(rec) == nil {
			*f(rec) = domain.StringList{}
		}
	}
}

// errorRecord builds the sentinel returned on unrecoverable parse failure.
// Its warnings hold a prefix of the raw text so the UI has something to
// render and the failure stays diagnosable.
func errorRecord(rawText string) domain.MedicineRecord {
	excerpt := rawText
	if runes := []rune(excerpt); len(runes) > errorExcerptLimit {
		excerpt = string(runes[:errorExcerptLimit])
	}
	rec := domain.MedicineRecord{
		MedicineName: ErrorRecordName,
		Warnings:     domain.StringList{excerpt},
	}
	applyDefaults(&rec)
	return rec
}

// stripCodeFences removes Markdown code-fence delimiters, with or without
// a language tag, that the model wraps around JSON inconsistently.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractPayload locates the outermost JSON array or object inside text
// that may include surrounding prose. Returns "" when neither is present.
func extractPayload(s string) string {
	arrStart := strings.Index(s, "[")
	objStart := strings.Index(s, "{")

	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		if end := strings.LastIndex(s, "]"); end > arrStart {
			return s[arrStart : end+1]
		}
	}
	if objStart != -1 {
		if end := strings.LastIndex(s, "}"); end > objStart {
			return s[objStart : end+1]
		}
	}
	return ""
}
