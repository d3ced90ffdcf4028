package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// TriState represents a flag that may be unreported by the scan.
type TriState int

const (
	TriUnknown TriState = iota
	TriYes
	TriNo
)

// UnmarshalJSON accepts a JSON bool or the strings "true"/"false"/"yes"/"no".
// Anything else (including null) stays unknown.
func (t *TriState) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(bytes.ToLower(bytes.Trim(data, `"`))) {
	case "true", "yes":
		*t = TriYes
	case "false", "no":
		*t = TriNo
	default:
		*t = TriUnknown
	}
	return nil
}

func (t TriState) MarshalJSON() ([]byte, error) {
	switch t {
	case TriYes:
		return []byte("true"), nil
	case TriNo:
		return []byte("false"), nil
	}
	return []byte("null"), nil
}

// StringList is a list field that tolerates a bare string, a JSON list,
// or null in the source payload. After normalization it is never nil.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*l = StringList{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*l = StringList{}
		} else {
			*l = StringList{s}
		}
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = StringList(items)
	return nil
}

// Affordability holds cost-saving information for one medicine.
type Affordability struct {
	GenericAlternative     string     `json:"generic_alternative"`
	EstimatedSavings       string     `json:"estimated_savings"`
	SeniorDiscountEligible bool       `json:"senior_discount_eligible"`
	CoverageNote           string     `json:"coverage_note"`
	AssistancePrograms     StringList `json:"assistance_programs"`
}

// MedicineRecord is one identified medicine from one scan. After
// normalization every list field is non-nil and every string field
// carries either scanned text or a documented fallback phrase.
type MedicineRecord struct {
	MedicineName      string     `json:"medicine_name"`
	ActiveIngredients StringList `json:"active_ingredients"`
	CommonUses        string     `json:"common_uses"`
	Dosage            string     `json:"dosage"`
	Warnings          StringList `json:"warnings"`
	RecommendedTime   string     `json:"recommended_time"`
	FoodWarnings      StringList `json:"food_warnings"`

	PrescriberName    string   `json:"prescriber_name"`
	FacilityName      string   `json:"facility_name"`
	SignatureVerified TriState `json:"signature_verified"`
	LicenseNumber     string   `json:"license_number"`
	PatientName       string   `json:"patient_name"`
	PatientAge        string   `json:"patient_age"`
	PatientSex        string   `json:"patient_sex"`

	Affordability Affordability `json:"affordability"`

	// Present only when at least one prescription field was populated.
	Assessment *FraudAssessment `json:"assessment,omitempty"`
}

// HasPrescriptionContext reports whether the record carries any of the
// fields that make it scoreable as a prescription.
func (r *MedicineRecord) HasPrescriptionContext() bool {
	return r.PrescriberName != "" || r.FacilityName != "" ||
		r.LicenseNumber != "" || r.SignatureVerified != TriUnknown
}

// RiskTier is one of four ordered bands derived from the fraud score.
type RiskTier string

const (
	TierSafe       RiskTier = "safe"
	TierCaution    RiskTier = "caution"
	TierSuspicious RiskTier = "suspicious"
	TierHighRisk   RiskTier = "high_risk"
)

// FraudAssessment is the weighted-checklist estimate of prescription
// legitimacy. Recomputed on every normalization, never persisted alone.
type FraudAssessment struct {
	Score           int      `json:"score"`
	Tier            RiskTier `json:"tier"`
	RedFlags        []string `json:"red_flags"`
	PassedChecks    []string `json:"passed_checks"`
	Recommendations []string `json:"recommendations"`
}

// Severity grades a drug-interaction judgment.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityNone   Severity = "none"
)

// InteractionReport is the cross-record judgment for one scan.
// HasConflict false implies Severity none.
type InteractionReport struct {
	HasConflict bool     `json:"has_conflict"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Tone describes one notification tone entry.
type Tone struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Vibration []int  `json:"vibration"` // alternating on/off durations in ms
	Priority  string `json:"priority"`
	Silent    bool   `json:"silent"`
}

// ReminderRequest is the caller's intent to be reminded about a medicine.
type ReminderRequest struct {
	MedicineName string `json:"medicine_name"`
	Hour         int    `json:"hour"`
	Minute       int    `json:"minute"`
	ToneID       string `json:"tone_id"`
	Auto         bool   `json:"auto"`
}

// ScheduledTrigger is the concrete payload handed to the notification
// collaborator: a relative offset in whole seconds plus presentation data.
type ScheduledTrigger struct {
	MedicineName  string    `json:"medicine_name"`
	FireAt        time.Time `json:"fire_at"`
	OffsetSeconds int64     `json:"offset_seconds"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	Tone          Tone      `json:"tone"`
	RolledToNext  bool      `json:"rolled_to_next_day"`
	AutoScheduled bool      `json:"auto_scheduled"`
}

// TranslatedFields is one record's displayed triple under the active
// target language, keyed by record position within the scan.
type TranslatedFields struct {
	Name     string `json:"name"`
	Purpose  string `json:"purpose"`
	Warnings string `json:"warnings"`
}

// TranslationField selects which displayed field Speak is voicing.
type TranslationField string

const (
	FieldName     TranslationField = "name"
	FieldPurpose  TranslationField = "purpose"
	FieldWarnings TranslationField = "warnings"
)

// ScanResult is everything the engine derived from one photographed label.
type ScanResult struct {
	ID          string             `json:"id"`
	Records     []MedicineRecord   `json:"records"`
	Interaction *InteractionReport `json:"interaction,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}
