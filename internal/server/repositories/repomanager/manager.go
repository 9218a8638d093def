package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/mindnote/internal/dbx"
	"github.com/dmitrijs2005/mindnote/internal/server/repositories/files"
	"github.com/dmitrijs2005/mindnote/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/mindnote/internal/server/repositories/users"
	"github.com/dmitrijs2005/mindnote/internal/server/repositories/workspaces"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Workspaces(db dbx.DBTX) workspaces.Repository
	Files(db dbx.DBTX) files.Repository
}
