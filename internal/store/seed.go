package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/capitalize-ai/project-onboarding/internal/model"
)

// seedFile is the on-disk format of a competitor pool.
type seedFile struct {
	Competitors []model.Competitor `yaml:"competitors"`
}

// DefaultCompetitors is the pool used when no seed file is configured.
var DefaultCompetitors = []model.Competitor{
	{ID: "cmp-looker", Name: "Looker", Website: "https://looker.com", Industry: "analytics", Description: "BI and embedded analytics platform from Google Cloud"},
	{ID: "cmp-mixpanel", Name: "Mixpanel", Website: "https://mixpanel.com", Industry: "analytics", Description: "Product analytics for tracking user behaviour"},
	{ID: "cmp-amplitude", Name: "Amplitude", Website: "https://amplitude.com", Industry: "analytics", Description: "Digital analytics and experimentation platform"},
	{ID: "cmp-tableau", Name: "Tableau", Website: "https://tableau.com", Industry: "analytics", Description: "Visual analytics and dashboarding"},
	{ID: "cmp-hubspot", Name: "HubSpot", Website: "https://hubspot.com", Industry: "martech", Description: "CRM and marketing automation suite"},
	{ID: "cmp-stripe", Name: "Stripe", Website: "https://stripe.com", Industry: "fintech", Description: "Online payments infrastructure"},
}

// LoadSeedFile reads a YAML competitor pool.
func LoadSeedFile(path string) ([]model.Competitor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, c := range f.Competitors {
		if c.Name == "" {
			return nil, fmt.Errorf("parse seed file: competitor %d has no name", i)
		}
	}
	return f.Competitors, nil
}

// Seed loads the competitor pool from path, or DefaultCompetitors when path
// is empty, and upserts it into repo.
func Seed(ctx context.Context, repo Repository, path string) (int, error) {
	competitors := DefaultCompetitors
	if path != "" {
		loaded, err := LoadSeedFile(path)
		if err != nil {
			return 0, err
		}
		competitors = loaded
	}
	if err := repo.UpsertCompetitors(ctx, competitors); err != nil {
		return 0, fmt.Errorf("seed competitors: %w", err)
	}
	return len(competitors), nil
}
