package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/crosspost/internal/dbx"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/auditlog"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/brands"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/connections"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/items"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/quickconnect"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/subscriptions"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/usage"
	"github.com/dmitrijs2005/crosspost/internal/server/repositories/variants"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// path works on *sql.DB and inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Items(db dbx.DBTX) items.Repository
	Variants(db dbx.DBTX) variants.Repository
	Connections(db dbx.DBTX) connections.Repository
	AuditLog(db dbx.DBTX) auditlog.Repository
	Brands(db dbx.DBTX) brands.Repository
	Usage(db dbx.DBTX) usage.Repository
	Subscriptions(db dbx.DBTX) subscriptions.Repository
	QuickConnect(db dbx.DBTX) quickconnect.Repository
}
