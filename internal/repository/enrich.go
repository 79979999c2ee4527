package repository

import (
	"regexp"
	"strconv"
	"strings"

	"realscan/internal/models"
)

var (
	dispositionRe    = regexp.MustCompile(`(?i)\b(\d+)\s*\+\s*(kk|1)\b`)
	roomsPrefixRe    = regexp.MustCompile(`^(\d+)`)
	afterReconRe     = regexp.MustCompile(`(?i)po\s+(?:\S+\s+)?rekonstrukci`)
	goodConditionRe  = regexp.MustCompile(`(?i)dobr\S*\s+stav`)
	needsReconPhrase = []string{"vyžaduje rekonstrukci", "před rekonstrukcí", "k rekonstrukci"}
)

// InferListingFields fills disposition, rooms, condition and
// construction type from free text when the adapter left them empty.
// Values the portal supplied are never overwritten.
func InferListingFields(rec *models.ScrapedListing) {
	text := rec.Title + " " + rec.Description

	if rec.Disposition == "" {
		if m := dispositionRe.FindStringSubmatch(text); m != nil {
			rec.Disposition = strings.ToUpper(m[1] + "+" + m[2])
		}
	}
	if rec.Rooms == nil && rec.Disposition != "" {
		if m := roomsPrefixRe.FindStringSubmatch(rec.Disposition); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				rec.Rooms = &n
			}
		}
	}
	if rec.Condition == "" {
		rec.Condition = inferCondition(text)
	}
	if rec.ConstructionType == "" {
		rec.ConstructionType = inferConstruction(text)
	}
}

func inferCondition(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "novostavb"):
		return "Novostavba"
	case afterReconRe.MatchString(text):
		return "Po rekonstrukci"
	case containsAny(lower, needsReconPhrase):
		return "Před rekonstrukcí"
	case goodConditionRe.MatchString(text):
		return "Dobrý stav"
	}
	return ""
}

func inferConstruction(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "cihl"):
		return "Cihla"
	case strings.Contains(lower, "panel"):
		return "Panel"
	case strings.Contains(lower, "dřevostav"), strings.Contains(lower, "dřevěn"):
		return "Dřevo"
	}
	return ""
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
