package services

import (
	"strings"
	"unicode"

	"github.com/charangentem-coder/rental-price-predictor/models"
	"github.com/charangentem-coder/rental-price-predictor/utils"
)

// Cleaner normalises historical records and drops the ones that cannot be
// valid observations.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean returns the valid records in their original order. Records without
// a property ID are dropped; records sharing one keep the first occurrence.
func (c *Cleaner) Clean(raw []*models.RawRecord) []*models.RawRecord {
	seen := make(map[string]struct{})
	result := make([]*models.RawRecord, 0, len(raw))

	for _, r := range raw {
		rec := *r
		rec.PropertyID = strings.TrimSpace(rec.PropertyID)
		rec.City = normaliseText(rec.City)
		rec.Location = normaliseText(rec.Location)
		rec.Furnishing = normaliseText(rec.Furnishing)

		if reason := invalidReason(&rec); reason != "" {
			c.logger.Warn("[cleaner] Dropping record %s: %s", rec.PropertyID, reason)
			continue
		}

		if _, dup := seen[rec.PropertyID]; dup {
			c.logger.Warn("[cleaner] Duplicate property skipped: %s", rec.PropertyID)
			continue
		}
		seen[rec.PropertyID] = struct{}{}

		result = append(result, &rec)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d records (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

func invalidReason(r *models.RawRecord) string {
	switch {
	case r.PropertyID == "":
		return "empty property id"
	case r.City == "":
		return "empty city"
	case r.Location == "":
		return "empty location"
	case r.Furnishing == "":
		return "empty furnishing"
	case r.BHK < 1:
		return "bhk below 1"
	case r.SizeSqft <= 0:
		return "non-positive size"
	case r.Bathrooms < 1:
		return "bathrooms below 1"
	case r.Floor < 0:
		return "negative floor"
	case r.TotalFloors < 1:
		return "total floors below 1"
	case r.PropertyAge < 0:
		return "negative property age"
	case r.Parking < 0:
		return "negative parking"
	case r.Rent <= 0:
		return "non-positive rent"
	}
	return ""
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
