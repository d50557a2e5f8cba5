package app

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"foerderscout/internal/ai"
	"foerderscout/internal/model"
	"foerderscout/internal/platform/qdrant"
	"foerderscout/internal/repository"
)

// memDB backs the in-memory stores used by service tests.
type memDB struct {
	users    map[uuid.UUID]model.User
	grants   map[uuid.UUID]model.Grant
	apps     map[uuid.UUID]model.Application
	sections map[uuid.UUID]map[string]model.ApplicationSection
	docs     map[uuid.UUID]model.Document
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[uuid.UUID]model.User{},
		grants:   map[uuid.UUID]model.Grant{},
		apps:     map[uuid.UUID]model.Application{},
		sections: map[uuid.UUID]map[string]model.ApplicationSection{},
		docs:     map[uuid.UUID]model.Document{},
	}
}

func (db *memDB) sectionList(appID uuid.UUID) []model.ApplicationSection {
	out := make([]model.ApplicationSection, 0, len(db.sections[appID]))
	for _, s := range db.sections[appID] {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SectionKey < out[j].SectionKey })
	return out
}

type fakeUsers struct{ db *memDB }

func (f fakeUsers) Create(user *model.User) error {
	for _, u := range f.db.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.db.users[user.ID] = *user
	return nil
}

func (f fakeUsers) GetByEmail(email string) (*model.User, error) {
	for _, u := range f.db.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (f fakeUsers) GetByID(id uuid.UUID) (*model.User, error) {
	u, ok := f.db.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f fakeUsers) Update(user *model.User) error {
	f.db.users[user.ID] = *user
	return nil
}

type fakeGrants struct{ db *memDB }

func (f fakeGrants) Create(grant *model.Grant) error {
	if grant.ID == uuid.Nil {
		grant.ID = uuid.New()
	}
	f.db.grants[grant.ID] = *grant
	return nil
}

func (f fakeGrants) Update(grant *model.Grant) error {
	f.db.grants[grant.ID] = *grant
	return nil
}

func (f fakeGrants) List(filter repository.GrantFilter) ([]model.Grant, int64, error) {
	var out []model.Grant
	for _, g := range f.db.grants {
		if filter.Type != "" && g.Type != filter.Type {
			continue
		}
		if filter.Category != "" && g.Category != filter.Category {
			continue
		}
		out = append(out, g)
	}
	return out, int64(len(out)), nil
}

func (f fakeGrants) GetByID(id uuid.UUID) (*model.Grant, error) {
	g, ok := f.db.grants[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (f fakeGrants) GetByExternalID(externalID string) (*model.Grant, error) {
	for _, g := range f.db.grants {
		if g.ExternalID == externalID {
			g := g
			return &g, nil
		}
	}
	return nil, nil
}

func (f fakeGrants) ListByExternalIDs(externalIDs []string) ([]model.Grant, error) {
	var out []model.Grant
	for _, ext := range externalIDs {
		if g, _ := f.GetByExternalID(ext); g != nil {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f fakeGrants) ListByIDs(ids []uuid.UUID) ([]model.Grant, error) {
	var out []model.Grant
	for _, id := range ids {
		if g, ok := f.db.grants[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f fakeGrants) ListExpired(now time.Time) ([]model.Grant, error) {
	var out []model.Grant
	for _, g := range f.db.grants {
		if g.Expired(now) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f fakeGrants) MarkEmbedded(ids []uuid.UUID, embeddingModel string, at time.Time) error {
	for _, id := range ids {
		g := f.db.grants[id]
		g.EmbeddedAt = &at
		g.EmbeddingModel = embeddingModel
		f.db.grants[id] = g
	}
	return nil
}

func (f fakeGrants) ClearEmbedded(ids []uuid.UUID) error {
	for _, id := range ids {
		g := f.db.grants[id]
		g.EmbeddedAt = nil
		g.EmbeddingModel = ""
		f.db.grants[id] = g
	}
	return nil
}

type fakeApps struct{ db *memDB }

func (f fakeApps) load(id uuid.UUID) (*model.Application, bool) {
	a, ok := f.db.apps[id]
	if !ok {
		return nil, false
	}
	if g, ok := f.db.grants[a.GrantID]; ok {
		a.Grant = &g
	}
	a.Sections = f.db.sectionList(id)
	for _, d := range f.db.docs {
		if d.ApplicationID == id {
			a.Documents = append(a.Documents, d)
		}
	}
	return &a, true
}

func (f fakeApps) Create(app *model.Application) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.Status == "" {
		app.Status = model.StatusDraft
	}
	stored := *app
	stored.Grant, stored.Sections, stored.Documents = nil, nil, nil
	f.db.apps[app.ID] = stored
	return nil
}

func (f fakeApps) GetByIDAndUserID(id, userID uuid.UUID) (*model.Application, error) {
	a, ok := f.load(id)
	if !ok || a.UserID != userID {
		return nil, nil
	}
	return a, nil
}

func (f fakeApps) GetByID(id uuid.UUID) (*model.Application, error) {
	a, ok := f.load(id)
	if !ok {
		return nil, nil
	}
	if u, ok := f.db.users[a.UserID]; ok {
		a.User = &u
	}
	return a, nil
}

func (f fakeApps) ListByUserID(userID uuid.UUID, status model.ApplicationStatus, limit, offset int) ([]model.Application, int64, error) {
	var out []model.Application
	for _, a := range f.db.apps {
		if a.UserID == userID && (status == "" || a.Status == status) {
			out = append(out, a)
		}
	}
	return out, int64(len(out)), nil
}

func (f fakeApps) Update(app *model.Application) (bool, error) {
	current, ok := f.db.apps[app.ID]
	if !ok || !current.Status.Editable() {
		return false, nil
	}
	stored := *app
	stored.Status = current.Status
	stored.CompletionPercentage = current.CompletionPercentage
	stored.Grant, stored.Sections, stored.Documents = nil, nil, nil
	f.db.apps[app.ID] = stored
	return true, nil
}

func (f fakeApps) UpdateFields(id uuid.UUID, fields map[string]interface{}) error {
	a, ok := f.db.apps[id]
	if !ok {
		return errors.New("application missing")
	}
	applyFields(&a, fields)
	f.db.apps[id] = a
	return nil
}

func (f fakeApps) TransitionStatus(id uuid.UUID, from, to model.ApplicationStatus, fields map[string]interface{}) (bool, error) {
	a, ok := f.db.apps[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	applyFields(&a, fields)
	f.db.apps[id] = a
	return true, nil
}

func (f fakeApps) Delete(id uuid.UUID) error {
	delete(f.db.apps, id)
	delete(f.db.sections, id)
	for docID, d := range f.db.docs {
		if d.ApplicationID == id {
			delete(f.db.docs, docID)
		}
	}
	return nil
}

func (f fakeApps) StatsByUserID(userID uuid.UUID) (*repository.ApplicationStats, error) {
	stats := &repository.ApplicationStats{}
	for _, a := range f.db.apps {
		if a.UserID != userID {
			continue
		}
		stats.Total++
		switch a.Status {
		case model.StatusApproved:
			stats.Approved++
			if a.ApprovedFunding != nil {
				stats.FundingSecure += *a.ApprovedFunding
			}
		case model.StatusRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

func applyFields(a *model.Application, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "generation_error":
			a.GenerationError = v.(string)
		case "completion_percentage":
			a.CompletionPercentage = v.(int)
		case "tracking_number":
			a.TrackingNumber = v.(string)
		case "submitted_at":
			t := v.(time.Time)
			a.SubmittedAt = &t
		case "approved_at":
			t := v.(time.Time)
			a.ApprovedAt = &t
		case "rejected_at":
			t := v.(time.Time)
			a.RejectedAt = &t
		case "approved_funding":
			f := v.(float64)
			a.ApprovedFunding = &f
		case "commission_rate":
			f := v.(float64)
			a.CommissionRate = &f
		case "commission_amount":
			f := v.(float64)
			a.CommissionAmount = &f
		}
	}
}

type fakeSections struct{ db *memDB }

func (f fakeSections) Upsert(section *model.ApplicationSection) error {
	if f.db.sections[section.ApplicationID] == nil {
		f.db.sections[section.ApplicationID] = map[string]model.ApplicationSection{}
	}
	if section.ID == uuid.Nil {
		section.ID = uuid.New()
	}
	f.db.sections[section.ApplicationID][section.SectionKey] = *section
	return nil
}

func (f fakeSections) ListByApplicationID(applicationID uuid.UUID) ([]model.ApplicationSection, error) {
	return f.db.sectionList(applicationID), nil
}

type fakeDocs struct{ db *memDB }

func (f fakeDocs) NextVersion(applicationID uuid.UUID, docType model.DocumentType, format model.DocumentFormat) (int, error) {
	latest := 0
	for _, d := range f.db.docs {
		if d.ApplicationID == applicationID && d.DocumentType == docType && d.Format == format && d.Version > latest {
			latest = d.Version
		}
	}
	return latest + 1, nil
}

func (f fakeDocs) CreateLatest(doc *model.Document) error {
	for id, d := range f.db.docs {
		if d.ApplicationID == doc.ApplicationID && d.DocumentType == doc.DocumentType && d.Format == doc.Format {
			d.IsLatest = false
			f.db.docs[id] = d
		}
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.IsLatest = true
	f.db.docs[doc.ID] = *doc
	return nil
}

func (f fakeDocs) GetByID(id uuid.UUID) (*model.Document, error) {
	d, ok := f.db.docs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (f fakeDocs) ListByApplicationID(applicationID uuid.UUID) ([]model.Document, error) {
	var out []model.Document
	for _, d := range f.db.docs {
		if d.ApplicationID == applicationID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (f fakeDocs) Delete(doc *model.Document) error {
	delete(f.db.docs, doc.ID)
	if !doc.IsLatest {
		return nil
	}
	var previous *model.Document
	for _, d := range f.db.docs {
		if d.ApplicationID == doc.ApplicationID && d.DocumentType == doc.DocumentType && d.Format == doc.Format &&
			(previous == nil || d.Version > previous.Version) {
			d := d
			previous = &d
		}
	}
	if previous != nil {
		previous.IsLatest = true
		f.db.docs[previous.ID] = *previous
	}
	return nil
}

type queuedJob struct {
	Type    model.JobType
	Payload any
}

type fakeQueue struct {
	jobs []queuedJob
	err  error
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobType model.JobType, payload any) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, queuedJob{Type: jobType, Payload: payload})
	return nil
}

// fakeLLM answers every completion; failAt makes the n-th call (1-based) fail.
type fakeLLM struct {
	calls    int
	failAt   int
	messages [][]ai.ChatMessage
}

func (l *fakeLLM) Complete(ctx context.Context, messages []ai.ChatMessage, opts ai.CompletionOptions) (string, error) {
	l.calls++
	l.messages = append(l.messages, messages)
	if l.failAt > 0 && l.calls == l.failAt {
		return "", errors.New("llm unavailable")
	}
	return "  Generierter Abschnitt.\n\n## Details\n\nWeitere Ausführungen.  ", nil
}

func (l *fakeLLM) Model() string { return "test-model" }

type fakeEmbedder struct {
	calls    int
	batches  int
	lastText string
	err      error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	e.lastText = text
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batches++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 0.5, 0.5}
	}
	return out, nil
}

func (e *fakeEmbedder) EmbeddingModel() string { return "test-embedding" }

type fakeIndex struct {
	hits        []qdrant.Hit
	upserted    []string
	deleted     []string
	lastLimit   int
	lastFilters map[string]string
}

func (x *fakeIndex) Upsert(ctx context.Context, grant *model.Grant, vector []float32) error {
	x.upserted = append(x.upserted, grant.ExternalID)
	return nil
}

func (x *fakeIndex) Search(ctx context.Context, vector []float32, limit int, threshold float64, filters map[string]string) ([]qdrant.Hit, error) {
	x.lastLimit = limit
	x.lastFilters = filters
	return x.hits, nil
}

func (x *fakeIndex) Delete(ctx context.Context, externalIDs ...string) error {
	x.deleted = append(x.deleted, externalIDs...)
	return nil
}

type fakeCache struct {
	entries     map[string][]byte
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (c *fakeCache) Get(ctx context.Context, fingerprint string, out interface{}) (bool, error) {
	raw, ok := c.entries[fingerprint]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (c *fakeCache) Set(ctx context.Context, fingerprint string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[fingerprint] = raw
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context) error {
	c.invalidated++
	c.entries = map[string][]byte{}
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
