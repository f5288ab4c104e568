package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/dmitrijs2005/crosspost/internal/cryptox"
	"github.com/dmitrijs2005/crosspost/internal/dbx"
	"github.com/dmitrijs2005/crosspost/internal/platforms"
	"github.com/dmitrijs2005/crosspost/internal/server/models"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/auditlog"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/brands"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/connections"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/items"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/quickconnect"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/usage"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/variants"
	"github.com/stretchr/testify/require"
)

const testVaultSecret = "services-test-vault-secret"

func newTestVault(t *testing.T) *cryptox.Vault {
	t.Helper()
	v, err := cryptox.NewVault(testVaultSecret)
	require.NoError(t, err)
	return v
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// expectTx expects n committed transactions.
func expectTx(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

type statusCall struct {
	id          string
	status      models.ItemStatus
	publishedAt *time.Time
	updatedAt   time.Time
}

type fakeItems struct {
	items.Repository
	item        *models.Item
	created     []*models.Item
	createErr   error
	getErr      error
	statusCalls []statusCall
	due         []models.DueItem
	dueErr      error
	deleted     []string
	deleteErr   error
}

func (f *fakeItems) Create(_ context.Context, item *models.Item) error {
	if f.createErr != nil {
		return f.createErr
	}
	item.CreatedAt = publishNow
	f.created = append(f.created, item)
	return nil
}

func (f *fakeItems) GetForOwner(_ context.Context, id, userID string) (*models.Item, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.item == nil || f.item.ID != id || f.item.UserID != userID {
		return nil, common.ErrNotFound
	}
	return f.item, nil
}

func (f *fakeItems) SetStatus(_ context.Context, id string, status models.ItemStatus, publishedAt *time.Time, updatedAt time.Time) error {
	f.statusCalls = append(f.statusCalls, statusCall{id, status, publishedAt, updatedAt})
	return nil
}

func (f *fakeItems) ListDue(context.Context, time.Time) ([]models.DueItem, error) {
	return f.due, f.dueErr
}

func (f *fakeItems) Delete(_ context.Context, id, _ string) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

type fakeVariants struct {
	variants.Repository
	mu        sync.Mutex
	list      []*models.Variant
	published map[string]*string
	failed    map[string]string
	failErr   error
	onFail    func()
	created   []*models.Variant
	createErr error
}

func (f *fakeVariants) Create(_ context.Context, v *models.Variant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, v)
	return nil
}

func (f *fakeVariants) ListByItem(context.Context, string) ([]*models.Variant, error) {
	return f.list, nil
}

func (f *fakeVariants) MarkPublished(_ context.Context, id string, postID, postURL *string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.published == nil {
		f.published = map[string]*string{}
	}
	f.published[id] = postURL
	return nil
}

func (f *fakeVariants) MarkFailed(_ context.Context, id, message string) error {
	if f.onFail != nil {
		f.onFail()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[id] = message
	return nil
}

type fakeConnections struct {
	connections.Repository
	list        []*models.Connection
	gotBrand    *string
	byID        map[string]*models.Connection
	created     []*models.Connection
	names       map[string]string
	credUpdates map[string]string
	exact       *models.Connection
	onList      func()
}

func (f *fakeConnections) ListForScope(_ context.Context, _ string, brandID *string) ([]*models.Connection, error) {
	f.gotBrand = brandID
	if f.onList != nil {
		f.onList()
	}
	return f.list, nil
}

func (f *fakeConnections) GetForOwner(_ context.Context, id, userID string) (*models.Connection, error) {
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return nil, common.ErrNotFound
	}
	return c, nil
}

func (f *fakeConnections) Create(_ context.Context, c *models.Connection) error {
	c.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.created = append(f.created, c)
	return nil
}

func (f *fakeConnections) UpdateDisplayName(_ context.Context, id, name string) error {
	if f.names == nil {
		f.names = map[string]string{}
	}
	f.names[id] = name
	return nil
}

func (f *fakeConnections) FindExact(context.Context, string, string, *string) (*models.Connection, error) {
	if f.exact == nil {
		return nil, common.ErrNotFound
	}
	return f.exact, nil
}

func (f *fakeConnections) UpdateCredentials(_ context.Context, id, creds string, _ models.ConnectionMode) error {
	if f.credUpdates == nil {
		f.credUpdates = map[string]string{}
	}
	f.credUpdates[id] = creds
	return nil
}

func (f *fakeConnections) Delete(_ context.Context, id, userID string) error {
	if c, ok := f.byID[id]; ok && c.UserID == userID {
		delete(f.byID, id)
		return nil
	}
	return common.ErrNotFound
}

type fakeAudit struct {
	auditlog.Repository
	mu      sync.Mutex
	entries []*models.AuditEntry
}

func (f *fakeAudit) ListByItem(_ context.Context, itemID string) ([]*models.AuditEntry, error) {
	var out []*models.AuditEntry
	for _, e := range f.entries {
		if e.ItemID == itemID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAudit) Append(_ context.Context, e *models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

// fakeBrands maps brand id to owner.
type fakeBrands struct {
	brands.Repository
	owners map[string]string
	err    error
}

func (f *fakeBrands) Owned(_ context.Context, id, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	owner, ok := f.owners[id]
	return ok && owner == userID, nil
}

type fakeQuickConnect struct {
	quickconnect.Repository
	mu         sync.Mutex
	increments []string
}

func (f *fakeQuickConnect) Increment(_ context.Context, platform, month string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments = append(f.increments, platform+"@"+month)
	return nil
}

type fakeUsage struct {
	usage.Repository
	calls []string
	n     int
}

func (f *fakeUsage) IncrementAdaptations(_ context.Context, userID, month string, n int) error {
	f.calls = append(f.calls, userID+"@"+month)
	f.n += n
	return nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	items       *fakeItems
	variants    *fakeVariants
	connections *fakeConnections
	audit       *fakeAudit
	brands      *fakeBrands
	quick       *fakeQuickConnect
	usage       *fakeUsage
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		items:       &fakeItems{},
		variants:    &fakeVariants{},
		connections: &fakeConnections{byID: map[string]*models.Connection{}},
		audit:       &fakeAudit{},
		brands:      &fakeBrands{owners: map[string]string{"brand-1": "u1", "b1": "u1"}},
		quick:       &fakeQuickConnect{},
		usage:       &fakeUsage{},
	}
}

func (m *fakeRepoManager) Items(dbx.DBTX) items.Repository             { return m.items }
func (m *fakeRepoManager) Variants(dbx.DBTX) variants.Repository       { return m.variants }
func (m *fakeRepoManager) Connections(dbx.DBTX) connections.Repository { return m.connections }
func (m *fakeRepoManager) AuditLog(dbx.DBTX) auditlog.Repository       { return m.audit }
func (m *fakeRepoManager) Brands(dbx.DBTX) brands.Repository           { return m.brands }
func (m *fakeRepoManager) QuickConnect(dbx.DBTX) quickconnect.Repository {
	return m.quick
}
func (m *fakeRepoManager) Usage(dbx.DBTX) usage.Repository { return m.usage }

// fakePublisher answers with a fixed result and records what it was given.
type fakePublisher struct {
	mu          sync.Mutex
	result      platforms.PublishResult
	panicWith   any
	test        platforms.TestResult
	validateErr error
	posts       []platforms.Post
	creds       []string
	// wait, when set, holds Publish until it is closed; ctxErr is what the
	// context reported afterwards.
	wait   chan struct{}
	ctxErr error
}

func (p *fakePublisher) ValidateCredentials(json.RawMessage) error { return p.validateErr }

func (p *fakePublisher) TestConnection(_ context.Context, raw json.RawMessage) platforms.TestResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creds = append(p.creds, string(raw))
	return p.test
}

func (p *fakePublisher) Publish(ctx context.Context, post platforms.Post, raw json.RawMessage) platforms.PublishResult {
	p.mu.Lock()
	p.posts = append(p.posts, post)
	p.creds = append(p.creds, string(raw))
	p.mu.Unlock()
	if p.wait != nil {
		<-p.wait
		p.mu.Lock()
		p.ctxErr = ctx.Err()
		p.mu.Unlock()
	}
	if p.panicWith != nil {
		panic(p.panicWith)
	}
	return p.result
}

type fakeResolver struct {
	calls [][]string
	paths []string
	err   error
}

func (r *fakeResolver) Resolve(_ context.Context, refs []string) ([]string, error) {
	r.calls = append(r.calls, refs)
	return r.paths, r.err
}
