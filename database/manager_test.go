package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/tool"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *gorm.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn: mockDB,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	return mockDB, mock, gormDB
}

func setupSQLite(t *testing.T) *Manager {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "analytics.db")), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	m := New(db)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManager_QueryForwardsStatement(t *testing.T) {
	mockDB, mock, gormDB := setupMockDB(t)
	defer mockDB.Close()

	statement := "SELECT store_id, avg(unit_price) AS avg_price FROM transactions_t GROUP BY store_id"
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(statement)).
		WillReturnRows(sqlmock.NewRows([]string{"store_id", "avg_price"}).
			AddRow(int64(1), 3.25).
			AddRow(int64(2), []byte("4.10")))
	mock.ExpectCommit()

	tbl, err := New(gormDB).Query(context.Background(), statement)
	require.NoError(t, err)
	assert.Equal(t, []string{"store_id", "avg_price"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, int64(1), tbl.Rows[0][0])
	assert.Equal(t, "4.10", tbl.Rows[1][1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_QueryError(t *testing.T) {
	mockDB, mock, gormDB := setupMockDB(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnError(errors.New(`relation "nope" does not exist`))
	mock.ExpectRollback()

	_, err := New(gormDB).Query(context.Background(), "SELECT * FROM nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_QueryEmptyResult(t *testing.T) {
	mockDB, mock, gormDB := setupMockDB(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"n"}))
	mock.ExpectCommit()

	tbl, err := New(gormDB).Query(context.Background(), "SELECT n FROM t")
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, tbl.Columns)
	assert.Zero(t, tbl.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_QueryIsReadOnly(t *testing.T) {
	m := setupSQLite(t)
	ctx := context.Background()

	sqlDB, err := m.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, m.DB().Exec("CREATE TABLE t (n INTEGER)").Error)
	require.NoError(t, m.DB().Exec("INSERT INTO t (n) VALUES (1), (2)").Error)

	dbTool := tool.NewDatabaseTool(m)
	for _, statement := range []string{
		"SELECT 1; DELETE FROM t",
		"WITH d AS (SELECT 1) DELETE FROM t",
	} {
		ic := core.NewInvocationContext(ctx, "session-1", "inv-1", 1, core.AgentInsightGenerator, core.NewState("q"),
			func(o *core.InvocationOptions) { o.AllowedTools = []string{tool.DatabaseToolName} })
		_, err := tool.Run(ic, dbTool, map[string]any{"statement": statement})
		assert.Error(t, err, statement)

		// Bypassing the tool still cannot write.
		_, _ = m.Query(ctx, statement)
	}

	_, err = m.Query(ctx, "DELETE FROM t")
	require.Error(t, err)

	tbl, err := m.Query(ctx, "SELECT count(*) AS n FROM t")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(2)}}, tbl.Rows)

	// The connection is writable again once the query returned.
	require.NoError(t, m.DB().Exec("INSERT INTO t (n) VALUES (3)").Error)
}

func TestManager_StructureLifecycle(t *testing.T) {
	m := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, m.CreateStructure(ctx))
	for _, table := range []string{"transactions_t", "products_t", "stores_t", "nutritions_t", "service__session_tracing_t"} {
		assert.True(t, m.DB().Migrator().HasTable(table), table)
	}

	require.NoError(t, m.DropStructure(ctx))
	assert.False(t, m.DB().Migrator().HasTable("stores_t"))
}

func TestUploadSnapshot(t *testing.T) {
	m := setupSQLite(t)
	ctx := context.Background()
	require.NoError(t, m.CreateStructure(ctx))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stores_t.csv"), []byte(
		"store_id,store_name,city,address,manager\n1,Central,Berlin,Main St 1,Ada\n2,Harbor,Hamburg,Quay 7,Bob\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "promotions.csv"), []byte(
		"promo,discount\nspring,0.1\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	counts, err := UploadSnapshot(ctx, m, dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"stores_t": 2, "promotions": 1}, counts)

	tbl, err := m.Query(ctx, "SELECT store_name FROM stores_t ORDER BY store_id")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Central"}, {"Harbor"}}, tbl.Rows)

	tbl, err = m.Query(ctx, "SELECT promo FROM promotions")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"spring"}}, tbl.Rows)
}

func TestManager_DatabaseModel(t *testing.T) {
	m := setupSQLite(t)
	desc := m.DatabaseModel()

	assert.Contains(t, desc, "Table transactions_t: Transaction records for all store sales")
	assert.Contains(t, desc, "  - unit_price (numeric): Price per unit of the product at time of transaction")
	assert.Contains(t, desc, "  - store_id (integer, primary key): Unique identifier for each store")
	assert.Contains(t, desc, "  - transaction_time (time): Time when the transaction occurred")
	assert.NotContains(t, desc, "service__session_tracing_t")
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open(func(o *Options) {
		o.Driver = "oracle"
		o.DSN = "x"
	})
	require.Error(t, err)

	_, err = Open()
	require.Error(t, err)
}
