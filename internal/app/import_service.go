package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"foerderscout/internal/model"
)

const embedJobChunk = 100

// grantRecordSchema accepts both curated records and raw scraper output.
const grantRecordSchema = `{
  "type": "object",
  "properties": {
    "id":                           {"type": "string"},
    "external_id":                  {"type": "string"},
    "name":                         {"type": "string", "minLength": 1},
    "title":                        {"type": "string", "minLength": 1},
    "type":                         {"enum": ["federal", "state", "eu", "municipal", ""]},
    "category":                     {"enum": ["innovation", "digitalization", "green_tech", "export", "training", "regional", ""]},
    "max_funding":                  {"type": ["number", "null"], "minimum": 0},
    "min_funding":                  {"type": ["number", "null"], "minimum": 0},
    "min_own_contribution_percent": {"type": ["number", "null"], "minimum": 0, "maximum": 100},
    "historical_success_rate":      {"type": ["number", "null"], "minimum": 0, "maximum": 1},
    "duration_months":              {"type": ["integer", "null"], "minimum": 0},
    "is_continuous":                {"type": "boolean"},
    "eligibility":                  {"type": "array", "items": {"type": "string"}},
    "requirements":                 {"type": "array", "items": {"type": "string"}}
  },
  "anyOf": [
    {"required": ["name"]},
    {"required": ["title"]}
  ]
}`

// GrantRecord is one entry of the grants data file.
type GrantRecord struct {
	ID                        string   `json:"id"`
	ExternalID                string   `json:"external_id"`
	Name                      string   `json:"name"`
	Title                     string   `json:"title"`
	Funder                    string   `json:"funder"`
	Type                      string   `json:"type"`
	Category                  string   `json:"category"`
	MaxFunding                *float64 `json:"max_funding"`
	MinFunding                *float64 `json:"min_funding"`
	FundingAmount             string   `json:"funding_amount"`
	MinOwnContributionPercent *float64 `json:"min_own_contribution_percent"`
	Description               string   `json:"description"`
	Guidelines                string   `json:"guidelines"`
	WhatIsFunded              string   `json:"what_is_funded"`
	WhoIsFunded               string   `json:"who_is_funded"`
	Eligibility               []string `json:"eligibility"`
	Requirements              []string `json:"requirements"`
	ApplicationProcess        string   `json:"application_process"`
	DurationMonths            *int     `json:"duration_months"`
	Deadline                  string   `json:"deadline"`
	IsContinuous              bool     `json:"is_continuous"`
	HistoricalSuccessRate     *float64 `json:"historical_success_rate"`
	URL                       string   `json:"url"`
	WebsiteURL                string   `json:"website_url"`
	Region                    string   `json:"region"`
}

type ImportOutcome string

const (
	OutcomeNew       ImportOutcome = "new"
	OutcomeUpdated   ImportOutcome = "updated"
	OutcomeUnchanged ImportOutcome = "unchanged"
)

// Fields reported for an updated grant.
const (
	ChangedDeadline   = "deadline"
	ChangedAmount     = "amount"
	ChangedConditions = "conditions"
	ChangedContent    = "content"
)

// GrantChange lists what changed for one updated grant.
type GrantChange struct {
	ExternalID string   `json:"external_id"`
	Fields     []string `json:"fields"`
}

type ImportReport struct {
	New       int           `json:"new"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Invalid   int           `json:"invalid"`
	Reindexed int           `json:"reindexed"`
	Errors    []string      `json:"errors,omitempty"`
	Changes   []GrantChange `json:"changes,omitempty"`
	Enqueued  int           `json:"enqueued"`
}

type ImportService struct {
	grantRepo GrantStore
	jobs      JobQueue
	cache     SearchCache
	logger    *zap.Logger
	schema    *gojsonschema.Schema
	now       func() time.Time
}

func NewImportService(grantRepo GrantStore, jobs JobQueue, cache SearchCache, logger *zap.Logger) (*ImportService, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(grantRecordSchema))
	if err != nil {
		return nil, fmt.Errorf("compile grant schema failed: %w", err)
	}
	return &ImportService{
		grantRepo: grantRepo,
		jobs:      jobs,
		cache:     cache,
		logger:    logger,
		schema:    schema,
		now:       time.Now,
	}, nil
}

// ParseGrantFile decodes a JSON array of grant records and validates each one.
// Invalid records are reported in the returned report and skipped.
func (s *ImportService) ParseGrantFile(data []byte) ([]GrantRecord, *ImportReport, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode grants file failed: %w", err)
	}

	report := &ImportReport{}
	records := make([]GrantRecord, 0, len(raw))
	for i, item := range raw {
		result, err := s.schema.Validate(gojsonschema.NewBytesLoader(item))
		if err != nil {
			report.Invalid++
			report.Errors = append(report.Errors, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		if !result.Valid() {
			report.Invalid++
			msgs := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				msgs = append(msgs, e.String())
			}
			report.Errors = append(report.Errors, fmt.Sprintf("record %d: %s", i, strings.Join(msgs, "; ")))
			continue
		}

		var rec GrantRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			report.Invalid++
			report.Errors = append(report.Errors, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		records = append(records, rec)
	}
	return records, report, nil
}

// Import upserts records by external id and enqueues embedding for new and
// changed grants. report may carry results from ParseGrantFile.
func (s *ImportService) Import(ctx context.Context, records []GrantRecord, report *ImportReport) (*ImportReport, error) {
	if report == nil {
		report = &ImportReport{}
	}

	changed := make([]uuid.UUID, 0, len(records))
	for i, rec := range records {
		grant, err := NormalizeGrantRecord(rec)
		if err != nil {
			report.Invalid++
			report.Errors = append(report.Errors, fmt.Sprintf("record %d: %v", i, err))
			continue
		}

		outcome, fields, err := s.upsert(grant)
		if err != nil {
			return report, err
		}
		switch outcome {
		case OutcomeNew:
			report.New++
			changed = append(changed, grant.ID)
		case OutcomeUpdated:
			report.Updated++
			report.Changes = append(report.Changes, GrantChange{ExternalID: grant.ExternalID, Fields: fields})
			changed = append(changed, grant.ID)
		case OutcomeUnchanged:
			report.Unchanged++
			// a failed embed job or an earlier cleanup leaves the grant out of the index
			if grant.EmbeddedAt == nil && !grant.Expired(s.now()) {
				report.Reindexed++
				changed = append(changed, grant.ID)
			}
		}
	}

	for start := 0; start < len(changed); start += embedJobChunk {
		end := start + embedJobChunk
		if end > len(changed) {
			end = len(changed)
		}
		if err := s.jobs.Enqueue(ctx, model.JobEmbedGrants, model.EmbedGrantsPayload{GrantIDs: changed[start:end]}); err != nil {
			return report, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		report.Enqueued += end - start
	}

	if len(changed) > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate grant search cache failed", zap.Error(err))
		}
	}

	s.logger.Info("grant import finished",
		zap.Int("new", report.New),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("reindexed", report.Reindexed),
		zap.Int("invalid", report.Invalid),
	)
	return report, nil
}

// upsert stores grant by external id. For unchanged grants it copies the
// stored id and embedding state onto grant. For updated grants it returns the
// changed field groups.
func (s *ImportService) upsert(grant *model.Grant) (ImportOutcome, []string, error) {
	existing, err := s.grantRepo.GetByExternalID(grant.ExternalID)
	if err != nil {
		return "", nil, err
	}
	if existing == nil {
		if err := s.grantRepo.Create(grant); err != nil {
			return "", nil, err
		}
		return OutcomeNew, nil, nil
	}
	grant.ID = existing.ID
	if existing.ContentHash == grant.ContentHash {
		grant.EmbeddedAt = existing.EmbeddedAt
		grant.EmbeddingModel = existing.EmbeddingModel
		return OutcomeUnchanged, nil, nil
	}

	fields := ChangedGrantFields(existing, grant)
	grant.CreatedAt = existing.CreatedAt
	grant.EmbeddedAt = nil
	grant.EmbeddingModel = ""
	if err := s.grantRepo.Update(grant); err != nil {
		return "", nil, err
	}
	return OutcomeUpdated, fields, nil
}

// ChangedGrantFields compares two versions of a grant and names the changed
// field groups in a fixed order.
func ChangedGrantFields(before, after *model.Grant) []string {
	var fields []string
	if !sameDay(before.Deadline, after.Deadline) || before.IsContinuous != after.IsContinuous {
		fields = append(fields, ChangedDeadline)
	}
	if before.MaxFunding != after.MaxFunding || !sameFloat(before.MinFunding, after.MinFunding) {
		fields = append(fields, ChangedAmount)
	}
	if !sameFloat(before.MinOwnContributionPercent, after.MinOwnContributionPercent) ||
		!slices.Equal(before.Eligibility, after.Eligibility) ||
		!slices.Equal(before.Requirements, after.Requirements) ||
		before.Guidelines != after.Guidelines {
		fields = append(fields, ChangedConditions)
	}
	if len(fields) == 0 {
		fields = append(fields, ChangedContent)
	}
	return fields
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UTC().Format("2006-01-02") == b.UTC().Format("2006-01-02")
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// NormalizeGrantRecord maps a data file record onto the grant model, applying
// defaults and computing the content hash.
func NormalizeGrantRecord(rec GrantRecord) (*model.Grant, error) {
	name := firstNonEmpty(rec.Name, rec.Title)
	if name == "" {
		return nil, fmt.Errorf("grant name is required")
	}
	website := firstNonEmpty(rec.WebsiteURL, rec.URL)
	externalID := firstNonEmpty(rec.ExternalID, rec.ID, website, slugify(name))

	grantType := model.GrantType(rec.Type)
	if grantType == "" {
		grantType = model.GrantTypeFederal
	}
	category := model.GrantCategory(rec.Category)
	if category == "" {
		category = model.CategoryInnovation
	}
	region := strings.TrimSpace(rec.Region)
	if region == "" {
		region = "Deutschland"
	}

	maxFunding := 0.0
	if rec.MaxFunding != nil {
		maxFunding = *rec.MaxFunding
	} else if v, ok := parseFundingAmount(rec.FundingAmount); ok {
		maxFunding = v
	}

	description := strings.TrimSpace(rec.Description)
	if description == "" {
		description = strings.TrimSpace(rec.WhatIsFunded)
	}
	guidelines := strings.TrimSpace(rec.Guidelines)
	if guidelines == "" {
		guidelines = strings.TrimSpace(rec.WhatIsFunded)
	}
	eligibility := rec.Eligibility
	if len(eligibility) == 0 && strings.TrimSpace(rec.WhoIsFunded) != "" {
		eligibility = []string{strings.TrimSpace(rec.WhoIsFunded)}
	}

	deadline, continuous, err := parseDeadline(rec.Deadline)
	if err != nil {
		return nil, err
	}

	g := &model.Grant{
		ExternalID:                externalID,
		Name:                      name,
		Funder:                    strings.TrimSpace(rec.Funder),
		Type:                      grantType,
		Category:                  category,
		MaxFunding:                maxFunding,
		MinFunding:                rec.MinFunding,
		MinOwnContributionPercent: rec.MinOwnContributionPercent,
		Description:               description,
		Guidelines:                guidelines,
		Eligibility:               eligibility,
		Requirements:              rec.Requirements,
		ApplicationProcess:        strings.TrimSpace(rec.ApplicationProcess),
		DurationMonths:            rec.DurationMonths,
		Deadline:                  deadline,
		IsContinuous:              rec.IsContinuous || continuous,
		HistoricalSuccessRate:     rec.HistoricalSuccessRate,
		WebsiteURL:                website,
		Region:                    region,
	}
	g.ContentHash = GrantContentHash(g)
	return g, nil
}

// GrantContentHash covers every field that feeds search or the embedding text.
func GrantContentHash(g *model.Grant) string {
	deadline := ""
	if g.Deadline != nil {
		deadline = g.Deadline.UTC().Format("2006-01-02")
	}
	raw, _ := json.Marshal([]interface{}{
		g.Name, g.Funder, g.Type, g.Category, g.MaxFunding, g.MinFunding, g.MinOwnContributionPercent,
		g.Description, g.Guidelines, []string(g.Eligibility), []string(g.Requirements), g.ApplicationProcess,
		g.DurationMonths, deadline, g.IsContinuous, g.HistoricalSuccessRate, g.WebsiteURL, g.Region,
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

var (
	germanDate    = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)
	fundingNumber = regexp.MustCompile(`\d{1,3}(?:\.\d{3})+|\d+`)
	slugStrip     = regexp.MustCompile(`[^a-z0-9]+`)
)

func parseDeadline(raw string) (*time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false, nil
	}
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "laufend") || strings.Contains(lower, "continuous") || strings.Contains(lower, "jederzeit") {
		return nil, true, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, false, nil
		}
	}
	if m := germanDate.FindStringSubmatch(raw); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		return &t, false, nil
	}
	return nil, false, fmt.Errorf("unrecognised deadline %q", raw)
}

// parseFundingAmount reads the largest number from free text like "bis zu 500.000 EUR".
func parseFundingAmount(raw string) (float64, bool) {
	best := 0.0
	for _, m := range fundingNumber.FindAllString(raw, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m, ".", ""), 64)
		if err == nil && v > best {
			best = v
		}
	}
	return best, best > 0
}

func slugify(s string) string {
	s = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss").Replace(strings.ToLower(s))
	return strings.Trim(slugStrip.ReplaceAllString(s, "-"), "-")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
