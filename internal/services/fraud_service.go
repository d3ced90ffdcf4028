package services

import (
	"strings"

	"github.com/arjunmehta/medilens/internal/domain"
)

// Points awarded per criterion. The five individual criteria sum to 95;
// the full-professional-format bonus makes 100 the exact ceiling.
const (
	pointsSignature    = 25
	pointsLicense      = 20
	pointsFacility     = 15
	pointsPatient      = 15
	pointsPrescriber   = 10
	pointsDosage       = 10
	pointsProfessional = 5

	licenseDigitsMin = 6
	licenseDigitsMax = 7
)

// FraudService computes a deterministic prescription-authenticity score
// from a single record. Pure: no I/O, no randomness, identical input
// yields an identical assessment. It is only invoked for records that
// carry prescription context.
type FraudService struct{}

func NewFraudService() *FraudService {
	return &FraudService{}
}

// Score runs the weighted checklist against the record.
func (s *FraudService) Score(rec domain.MedicineRecord) domain.FraudAssessment {
	a := domain.FraudAssessment{
		RedFlags:        []string{},
		PassedChecks:    []string{},
		Recommendations: []string{},
	}

	if rec.SignatureVerified == domain.TriYes {
		a.Score += pointsSignature
		a.PassedChecks = append(a.PassedChecks, "Prescriber signature verified")
	} else {
		a.RedFlags = append(a.RedFlags, "Prescriber signature missing or unverified")
	}

	if validLicenseFormat(rec.LicenseNumber) {
		a.Score += pointsLicense
		a.PassedChecks = append(a.PassedChecks, "License number format valid")
	} else {
		a.RedFlags = append(a.RedFlags, "License number missing or invalid format")
	}

	if rec.FacilityName != "" {
		a.Score += pointsFacility
		a.PassedChecks = append(a.PassedChecks, "Medical facility documented")
	} else {
		a.RedFlags = append(a.RedFlags, "No medical facility on record")
	}

	// Patient identity awards points only when complete, but each missing
	// part is itemized as its own red flag.
	if rec.PatientName != "" && rec.PatientAge != "" && rec.PatientSex != "" {
		a.Score += pointsPatient
		a.PassedChecks = append(a.PassedChecks, "Patient identity complete")
	} else {
		if rec.PatientName == "" {
			a.RedFlags = append(a.RedFlags, "Patient name missing")
		}
		if rec.PatientAge == "" {
			a.RedFlags = append(a.RedFlags, "Patient age missing")
		}
		if rec.PatientSex == "" {
			a.RedFlags = append(a.RedFlags, "Patient sex missing")
		}
	}

	if rec.PrescriberName != "" {
		a.Score += pointsPrescriber
		a.PassedChecks = append(a.PassedChecks, "Prescriber named")
	} else {
		a.RedFlags = append(a.RedFlags, "No prescriber name")
	}

	if rec.Dosage != "" && rec.Dosage != FallbackNotVisible {
		a.Score += pointsDosage
		a.PassedChecks = append(a.PassedChecks, "Dosage visible")
	} else {
		a.RedFlags = append(a.RedFlags, "Dosage not visible on label")
	}

	// Bonus on top of the individual prescriber/facility/license checks.
	if rec.PrescriberName != "" && rec.FacilityName != "" && rec.LicenseNumber != "" {
		a.Score += pointsProfessional
		a.PassedChecks = append(a.PassedChecks, "Full professional format")
	}

	a.Tier = RiskTierFor(a.Score)
	a.Recommendations = recommendationsFor(a.Tier)
	return a
}

// RiskTierFor maps a total score to its risk tier. Bands are monotonic
// and non-overlapping.
func RiskTierFor(score int) domain.RiskTier {
	switch {
	case score >= 90:
		return domain.TierSafe
	case score >= 70:
		return domain.TierCaution
	case score >= 40:
		return domain.TierSuspicious
	default:
		return domain.TierHighRisk
	}
}

// recommendationsFor is keyed on tier, not score. Safe emits none.
func recommendationsFor(tier domain.RiskTier) []string {
	switch tier {
	case domain.TierHighRisk:
		return []string{
			"Do not use this prescription",
			"Contact the prescriber to verify it was issued",
			"Report the document to your local health regulator",
		}
	case domain.TierSuspicious:
		return []string{
			"Verify this prescription with a pharmacist before use",
			"Confirm the details with the prescriber",
			"Check the license number against the registry",
		}
	case domain.TierCaution:
		return []string{
			"Some details could not be verified; double-check with your pharmacy",
		}
	default:
		return []string{}
	}
}

// validLicenseFormat strips non-digit characters and checks the remaining
// digit count falls in the accepted range.
func validLicenseFormat(license string) bool {
	var digits strings.Builder
	for _, r := range license {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n := digits.Len()
	return n >= licenseDigitsMin && n <= licenseDigitsMax
}
