package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/logging"
	"github.com/hupe1980/analystmesh/tool"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options configures Open.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// BatchSize bounds the rows inserted per statement by CopyFromCSV.
	BatchSize int
	Logger    logging.Logger
}

// Manager owns the analytics database connection.
type Manager struct {
	db        *gorm.DB
	batchSize int
	logger    logging.Logger

	schemaOnce sync.Once
	schema     string
}

var _ tool.Querier = (*Manager)(nil)

// Open connects to the configured database and applies the pool settings.
func Open(optFns ...func(o *Options)) (*Manager, error) {
	opts := Options{
		Driver:          DriverPostgres,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.DSN == "" {
		return nil, errors.New("database dsn not configured")
	}

	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, sqlite)", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	m := New(db, func(o *Options) {
		o.BatchSize = opts.BatchSize
		o.Logger = opts.Logger
	})
	m.logger.Info("database.connected", "driver", opts.Driver)
	return m, nil
}

// New wraps an existing gorm connection.
func New(db *gorm.DB, optFns ...func(o *Options)) *Manager {
	opts := Options{BatchSize: 10000}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10000
	}
	return &Manager{db: db, batchSize: opts.BatchSize, logger: opts.Logger}
}

// DB returns the underlying gorm handle.
func (m *Manager) DB() *gorm.DB { return m.db }

// Ping checks the connection.
func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DatabaseModel describes the analytics tables for prompts.
func (m *Manager) DatabaseModel() string {
	m.schemaOnce.Do(func() {
		s, err := DescribeSchema(m.db.NamingStrategy, AnalyticsModels()...)
		if err != nil {
			m.logger.Warn("database.schema.describe_failed", "error", err.Error())
			return
		}
		m.schema = s
	})
	return m.schema
}

// CreateStructure creates every table of the schema.
func (m *Manager) CreateStructure(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("create database structure: %w", err)
	}
	return nil
}

// DropStructure drops every table of the schema.
func (m *Manager) DropStructure(ctx context.Context) error {
	if err := m.db.WithContext(ctx).Migrator().DropTable(Models()...); err != nil {
		return fmt.Errorf("drop database structure: %w", err)
	}
	return nil
}

// Query executes statement verbatim inside a read-only transaction and
// returns the result set. Byte slices are returned as strings.
func (m *Manager) Query(ctx context.Context, statement string) (core.Table, error) {
	var tbl core.Table
	err := m.readOnly(ctx, func(tx *gorm.DB) error {
		var err error
		tbl, err = scanTable(tx, statement)
		return err
	})
	if err != nil {
		return core.Table{}, err
	}
	return tbl, nil
}

// readOnly runs fn in a transaction that rejects writes. Postgres gets a READ
// ONLY transaction. SQLite has no such mode, so query_only is switched on for
// the connection and reset before it returns to the pool.
func (m *Manager) readOnly(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if m.db.Dialector.Name() != DriverSQLite {
		return m.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{ReadOnly: true})
	}

	// The transaction itself outlives ctx so the pragma can always be reset.
	return m.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("PRAGMA query_only = ON").Error; err != nil {
			return fmt.Errorf("enable query_only: %w", err)
		}
		defer func() {
			if err := tx.Exec("PRAGMA query_only = OFF").Error; err != nil {
				m.logger.Error("database.query_only.reset_failed", "error", err.Error())
			}
		}()
		return fn(tx.WithContext(ctx))
	})
}

func scanTable(tx *gorm.DB, statement string) (core.Table, error) {
	rows, err := tx.Raw(statement).Rows()
	if err != nil {
		return core.Table{}, fmt.Errorf("execute statement: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return core.Table{}, fmt.Errorf("read columns: %w", err)
	}

	tbl := core.Table{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return core.Table{}, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		tbl.Rows = append(tbl.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return core.Table{}, fmt.Errorf("iterate rows: %w", err)
	}
	return tbl, nil
}

// CopyFromCSV loads the CSV file at path into table and returns the number
// of inserted rows. A missing table is created with text columns; numeric
// cells are inserted as numbers.
func (m *Manager) CopyFromCSV(ctx context.Context, path, table string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	tbl, err := tool.ParseCSV(f)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	db := m.db.WithContext(ctx)
	if !db.Migrator().HasTable(table) {
		if err := m.createTextTable(ctx, table, tbl.Columns); err != nil {
			return 0, err
		}
	}
	if tbl.Len() == 0 {
		return 0, nil
	}

	records := tbl.Records()
	for _, r := range records {
		for k, v := range r {
			r[k] = coerce(v)
		}
	}
	if err := db.Table(table).CreateInBatches(records, m.batchSize).Error; err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return len(records), nil
}

func (m *Manager) createTextTable(ctx context.Context, table string, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("create table %s: no columns", table)
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = m.db.Statement.Quote(c) + " TEXT"
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", m.db.Statement.Quote(table), strings.Join(quoted, ", "))
	if err := m.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

func coerce(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// UploadSnapshot loads every *.csv file in dir into the table named after
// the file and returns the row counts per table.
func UploadSnapshot(ctx context.Context, m *Manager, dir string) (map[string]int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	counts := make(map[string]int, len(paths))
	for _, p := range paths {
		table := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		m.logger.Info("database.snapshot.upload", "table", table, "path", p)
		n, err := m.CopyFromCSV(ctx, p, table)
		if err != nil {
			return counts, fmt.Errorf("upload %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
