package services

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"inspecta-backend/internal/models"
)

const (
	MatchByParameterID = "parameter_id"
	MatchByName        = "name"
	MatchByContainment = "contains"
	MatchByFuzzy       = "fuzzy"

	minContainmentLen = 4
)

// NormalizeName lower-cases s, keeps letters and digits and collapses every
// other run of characters into a single space.
func NormalizeName(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// fuzzyThreshold is the largest edit distance accepted between two names.
func fuzzyThreshold(a, b string) int {
	longest := max(len([]rune(a)), len([]rune(b)))
	return max(1, longest/5)
}

func containsEither(a, b string) bool {
	shorter, longer := a, b
	if len([]rune(shorter)) > len([]rune(longer)) {
		shorter, longer = longer, shorter
	}
	if len([]rune(shorter)) < minContainmentLen {
		return false
	}
	return strings.Contains(longer, shorter)
}

type syncCandidate struct {
	c    *models.NonComplianceCase
	name string
	used bool
}

// BuildSyncPlan reconciles locally held parameters against the remote cases
// of a check. Only open and in-progress cases take part in matching; each
// of them matches at most one parameter. Parameters are matched in order and
// for each one the first rule that finds an unused case wins: same
// parameter id, same normalised name, containment, then the closest name
// within the fuzzy threshold.
func BuildSyncPlan(params []models.LocalParameter, cases []*models.NonComplianceCase) *models.SyncPlan {
	plan := &models.SyncPlan{
		Create:    make([]models.SyncAction, 0),
		Resolve:   make([]models.SyncAction, 0),
		Unchanged: make([]models.SyncAction, 0),
		Orphans:   make([]*models.NonComplianceCase, 0),
	}

	candidates := make([]*syncCandidate, 0, len(cases))
	for _, c := range cases {
		if c == nil || !c.IsActive() {
			continue
		}
		candidates = append(candidates, &syncCandidate{c: c, name: NormalizeName(c.ParameterName)})
	}

	for _, p := range params {
		matched, by := matchParameter(p, candidates)
		action := models.SyncAction{Parameter: p, MatchedBy: by}
		if matched != nil {
			matched.used = true
			action.Case = matched.c
		}

		switch {
		case !p.Compliant && matched == nil:
			plan.Create = append(plan.Create, action)
		case p.Compliant && matched != nil:
			plan.Resolve = append(plan.Resolve, action)
		default:
			plan.Unchanged = append(plan.Unchanged, action)
		}
	}

	for _, cand := range candidates {
		if !cand.used {
			plan.Orphans = append(plan.Orphans, cand.c)
		}
	}
	return plan
}

func matchParameter(p models.LocalParameter, candidates []*syncCandidate) (*syncCandidate, string) {
	if p.ParameterID != nil {
		for _, cand := range candidates {
			if !cand.used && cand.c.ParameterID != nil && *cand.c.ParameterID == *p.ParameterID {
				return cand, MatchByParameterID
			}
		}
	}

	name := NormalizeName(p.Name)
	if name == "" {
		return nil, ""
	}

	for _, cand := range candidates {
		if !cand.used && cand.name != "" && cand.name == name {
			return cand, MatchByName
		}
	}

	for _, cand := range candidates {
		if !cand.used && cand.name != "" && containsEither(name, cand.name) {
			return cand, MatchByContainment
		}
	}

	var best *syncCandidate
	bestDist := 0
	for _, cand := range candidates {
		if cand.used || cand.name == "" {
			continue
		}
		d := levenshtein.ComputeDistance(name, cand.name)
		if d > fuzzyThreshold(name, cand.name) {
			continue
		}
		if best == nil || d < bestDist {
			best, bestDist = cand, d
		}
	}
	if best != nil {
		return best, MatchByFuzzy
	}
	return nil, ""
}
