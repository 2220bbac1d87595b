package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/nlstn/go-aql"
	"gorm.io/gorm"
)

// TestResult is a single stored test execution.
type TestResult struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name       string    `json:"name" gorm:"not null;index"`
	FullName   string    `json:"fullName"`
	Status     string    `json:"status" gorm:"index"`
	DurationMs int64     `json:"duration"`
	Flaky      bool      `json:"flaky"`
	Retries    int       `json:"retries"`
	Tags       []string  `json:"tags" gorm:"serializer:json"`
	CreatedAt  time.Time `json:"createdAt"`
}

// BeforeCreate assigns a random ID to new results.
func (r *TestResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Record returns the fields AQL queries can reference.
func (r TestResult) Record() aql.Record {
	tags := make([]any, len(r.Tags))
	for i, t := range r.Tags {
		tags[i] = t
	}
	return aql.Record{
		"id":        r.ID.String(),
		"name":      r.Name,
		"fullName":  r.FullName,
		"status":    r.Status,
		"duration":  r.DurationMs,
		"flaky":     r.Flaky,
		"retries":   r.Retries,
		"tags":      tags,
		"createdAt": r.CreatedAt.UnixMilli(),
	}
}

// resultColumns maps the identifiers with an exact SQL equivalent to their
// columns. Queries on any other field are filtered in memory. Seeded text is
// ASCII, so the string columns allow case-insensitive pushdown.
var resultColumns = aql.ColumnMap{
	"name":     {Name: "name", Type: aql.ColumnString, ASCIIOnly: true},
	"fullName": {Name: "full_name", Type: aql.ColumnString, ASCIIOnly: true},
	"status":   {Name: "status", Type: aql.ColumnString, ASCIIOnly: true},
	"duration": {Name: "duration_ms", Type: aql.ColumnNumber},
	"flaky":    {Name: "flaky", Type: aql.ColumnBool},
	"retries":  {Name: "retries", Type: aql.ColumnNumber},
}

var (
	sampleSuites   = []string{"auth", "checkout", "search", "profile", "admin"}
	sampleCases    = []string{"loads page", "submits form", "handles timeout", "rejects invalid input", "renders list"}
	sampleStatuses = []string{"passed", "passed", "passed", "failed", "broken", "skipped"}
	sampleTags     = []string{"smoke", "regression", "nightly", "critical"}
)

// generateResults creates n deterministic sample results.
func generateResults(n int) []TestResult {
	rng := rand.New(rand.NewSource(1))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	results := make([]TestResult, 0, n)
	for i := 0; i < n; i++ {
		suite := sampleSuites[rng.Intn(len(sampleSuites))]
		name := sampleCases[rng.Intn(len(sampleCases))]

		var tags []string
		for _, tag := range sampleTags {
			if rng.Intn(3) == 0 {
				tags = append(tags, tag)
			}
		}

		results = append(results, TestResult{
			Name:       name,
			FullName:   fmt.Sprintf("%s.%s #%d", suite, name, i),
			Status:     sampleStatuses[rng.Intn(len(sampleStatuses))],
			DurationMs: int64(rng.Intn(20000)),
			Flaky:      rng.Intn(10) == 0,
			Retries:    rng.Intn(3),
			Tags:       tags,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	return results
}

// seedDatabase drops and recreates the results table with n sample results.
func seedDatabase(db *gorm.DB, n int) error {
	if err := db.Migrator().DropTable(&TestResult{}); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	if err := db.AutoMigrate(&TestResult{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	results := generateResults(n)
	batchSize := 100
	for i := 0; i < len(results); i += batchSize {
		end := i + batchSize
		if end > len(results) {
			end = len(results)
		}
		batch := results[i:end]
		if err := db.Create(&batch).Error; err != nil {
			return fmt.Errorf("failed to seed results batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}
