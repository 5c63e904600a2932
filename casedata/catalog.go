// Package casedata holds the built-in case catalog and seeds it into storage.
package casedata

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/linesmerrill/jurysane-api/databases"
	"github.com/linesmerrill/jurysane-api/models"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Load parses the embedded catalog
func Load() ([]models.Case, error) {
	var cases []models.Case
	if err := yaml.Unmarshal(catalogYAML, &cases); err != nil {
		return nil, fmt.Errorf("failed to parse case catalog: %w", err)
	}
	now := time.Now().UTC()
	for i := range cases {
		cases[i].Category = Classify(cases[i])
		cases[i].CreatedAt = now
		cases[i].UpdatedAt = now
	}
	return cases, nil
}

// Classify returns the category whose keywords appear most often in the
// case title or description. Ties go to the earlier category; no hits
// yields an empty string.
func Classify(c models.Case) string {
	text := strings.ToLower(c.Title + " " + c.Description)
	best, bestHits := "", 0
	for _, category := range models.Categories {
		hits := 0
		for _, keyword := range models.CategoryKeywords[category] {
			if strings.Contains(text, keyword) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = category, hits
		}
	}
	return best
}

// Seed inserts the catalog when the cases collection is empty
func Seed(ctx context.Context, db databases.CaseDatabase) (int, error) {
	count, err := db.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	if count > 0 {
		zap.S().Debugw("case catalog already seeded", "count", count)
		return 0, nil
	}

	cases, err := Load()
	if err != nil {
		return 0, err
	}
	if err := db.InsertMany(ctx, cases); err != nil {
		return 0, fmt.Errorf("failed to seed cases: %w", err)
	}
	zap.S().Infow("seeded case catalog", "count", len(cases))
	return len(cases), nil
}
