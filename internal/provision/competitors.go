package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/capitalize-ai/project-onboarding/internal/model"
)

// resolveCompetitors picks the competitors for a new project. Hints that
// match pool entries by name narrow the set; otherwise the first limit pool
// entries are used. matched reports whether any hint matched.
func resolveCompetitors(pool []model.Competitor, hints []string, limit int) (selected []model.Competitor, matched bool) {
	for _, c := range pool {
		if matchesHint(c, hints) {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		selected = pool
	} else {
		matched = true
	}
	if len(selected) > limit {
		selected = selected[:limit]
	}
	return selected, matched
}

func matchesHint(c model.Competitor, hints []string) bool {
	name := strings.ToLower(c.Name)
	for _, h := range hints {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if name == h || strings.Contains(name, h) || strings.Contains(h, name) {
			return true
		}
	}
	return false
}

func countIncomplete(competitors []model.Competitor) int {
	n := 0
	for _, c := range competitors {
		if !c.Complete() {
			n++
		}
	}
	return n
}

func competitorIDs(competitors []model.Competitor) []string {
	ids := make([]string, 0, len(competitors))
	for _, c := range competitors {
		ids = append(ids, c.ID)
	}
	return ids
}

// PreviewAssignment reports which competitors a project built from rec would
// be assigned, without writing anything.
func (p *Provisioner) PreviewAssignment(ctx context.Context, rec model.RequirementsRecord) (model.AssignmentPreview, error) {
	pool, err := p.store.ListCompetitors(ctx)
	if err != nil {
		return model.AssignmentPreview{}, fmt.Errorf("list competitors: %w", err)
	}
	selected, matched := resolveCompetitors(pool, rec.CompetitorHints, p.cfg.MaxCompetitors)

	preview := model.AssignmentPreview{
		Total:           len(selected),
		MatchedHints:    matched,
		IncompleteCount: countIncomplete(selected),
	}
	for _, c := range selected {
		preview.Names = append(preview.Names, c.Name)
	}
	return preview, nil
}
