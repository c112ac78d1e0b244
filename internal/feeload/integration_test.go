package feeload_test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gyeh/medbill/internal/config"
	"github.com/gyeh/medbill/internal/db"
	"github.com/gyeh/medbill/internal/feeload"
	"github.com/gyeh/medbill/internal/logging"
	"github.com/gyeh/medbill/internal/model"
	"github.com/gyeh/medbill/internal/parquetread"
	"github.com/gyeh/medbill/internal/pricing"
)

const (
	testPort     = 15433
	testDB       = "medbilltest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var testDSN string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		fmt.Fprintln(os.Stderr, "SKIP: fee load integration tests need embedded postgres")
		os.Exit(0)
	}

	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30 * time.Second),
	)
	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}
	os.Exit(code)
}

// setupDB returns a pool over a freshly migrated ref schema.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := db.NewPool(ctx, testDSN, 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, "DROP SCHEMA IF EXISTS ref CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	if err := db.ApplyMigrations(ctx, pool, logging.Setup("text")); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return pool
}

func ptr[T any](v T) *T { return &v }

func writeFees(t *testing.T, name string, rows []model.FeeScheduleRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := parquetread.WriteFile(path, rows); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// erFees has three loadable rows for 99284 and two that the loader rejects.
func erFees() []model.FeeScheduleRow {
	return []model.FeeScheduleRow{
		{HCPCS: "99284", Locality: ptr("01"), Description: ptr("ER visit, high severity"), NonFacFee: ptr(300.0), FacFee: ptr(200.0)},
		{HCPCS: "99284", Locality: ptr("02"), Description: ptr("ER visit, high severity"), NonFacFee: ptr(400.0), FacFee: ptr(0.0)},
		{HCPCS: "85025", Locality: ptr("01"), Description: ptr("CBC with differential"), NonFacFee: ptr(10.25)},
		{HCPCS: "99285", Locality: ptr("01")},
		{HCPCS: "  ", NonFacFee: ptr(12.0)},
	}
}

func loadCfg(path string, activate bool) *config.Config {
	return &config.Config{DSN: testDSN, FilePath: path, Activate: activate}
}

func feeFileStatus(t *testing.T, pool *pgxpool.Pool, id int64) string {
	t.Helper()
	var status string
	err := pool.QueryRow(context.Background(),
		"SELECT status FROM ref.fee_files WHERE fee_file_id = $1", id).Scan(&status)
	if err != nil {
		t.Fatalf("status of fee file %d: %v", id, err)
	}
	return status
}

func feeRowCount(t *testing.T, pool *pgxpool.Pool, id int64) int64 {
	t.Helper()
	var n int64
	err := pool.QueryRow(context.Background(),
		"SELECT count(*) FROM ref.fee_schedule WHERE fee_file_id = $1", id).Scan(&n)
	if err != nil {
		t.Fatalf("count rows of fee file %d: %v", id, err)
	}
	return n
}

func TestRunActivateAndLookup(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	log := logging.Setup("text")

	summary, err := feeload.Run(ctx, pool, log, loadCfg(writeFees(t, "fees.parquet", erFees()), true))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.RowsRead != 5 || summary.RowsStaged != 3 || summary.RowsRejected != 2 {
		t.Errorf("rows read/staged/rejected = %d/%d/%d, want 5/3/2",
			summary.RowsRead, summary.RowsStaged, summary.RowsRejected)
	}
	if got := feeFileStatus(t, pool, summary.FeeFileID); got != feeload.StatusActive {
		t.Errorf("status = %q, want active", got)
	}

	store := pricing.NewPGStore(pool)
	ref, err := store.Lookup(ctx, "99284")
	if err != nil {
		t.Fatalf("Lookup 99284: %v", err)
	}
	// Non-facility averages 350, facility 200 (the zero fee is ignored).
	if !ref.AvgPrice.Equal(decimal.RequireFromString("275")) {
		t.Errorf("avg = %s, want 275", ref.AvgPrice)
	}
	if !ref.HighPrice.Equal(decimal.RequireFromString("400")) {
		t.Errorf("high = %s, want 400", ref.HighPrice)
	}
	if ref.Description != "ER visit, high severity" {
		t.Errorf("description = %q", ref.Description)
	}

	cbc, err := store.Lookup(ctx, "85025")
	if err != nil {
		t.Fatalf("Lookup 85025: %v", err)
	}
	if !cbc.AvgPrice.Equal(decimal.RequireFromString("10.25")) || !cbc.HighPrice.Equal(decimal.RequireFromString("10.25")) {
		t.Errorf("85025 = %s/%s, want 10.25/10.25", cbc.AvgPrice, cbc.HighPrice)
	}

	if _, err := store.Lookup(ctx, "99285"); !errors.Is(err, pricing.ErrNotFound) {
		t.Errorf("rejected-only code err = %v, want ErrNotFound", err)
	}
}

func TestRunSkipsAlreadyLoadedFile(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	log := logging.Setup("text")
	path := writeFees(t, "fees.parquet", erFees())

	first, err := feeload.Run(ctx, pool, log, loadCfg(path, true))
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := feeload.Run(ctx, pool, log, loadCfg(path, true))
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.FeeFileID != first.FeeFileID {
		t.Errorf("fee file id = %d, want %d", second.FeeFileID, first.FeeFileID)
	}
	if second.RowsRead != 0 || second.RowsStaged != 0 {
		t.Errorf("second load read %d rows, want skip", second.RowsRead)
	}
	if got := feeRowCount(t, pool, first.FeeFileID); got != 3 {
		t.Errorf("rows = %d, want 3 (no duplicates)", got)
	}

	cfg := loadCfg(path, true)
	cfg.Force = true
	forced, err := feeload.Run(ctx, pool, log, cfg)
	if err != nil {
		t.Fatalf("forced Run: %v", err)
	}
	if forced.RowsStaged != 3 {
		t.Errorf("forced staged = %d, want 3", forced.RowsStaged)
	}
	if got := feeRowCount(t, pool, forced.FeeFileID); got != 3 {
		t.Errorf("rows after forced reload = %d, want 3", got)
	}
}

func TestRunWithoutActivateIsNotPriced(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()

	summary, err := feeload.Run(ctx, pool, logging.Setup("text"), loadCfg(writeFees(t, "fees.parquet", erFees()), false))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := feeFileStatus(t, pool, summary.FeeFileID); got != feeload.StatusLoaded {
		t.Errorf("status = %q, want loaded", got)
	}
	if _, err := pricing.NewPGStore(pool).Lookup(ctx, "99284"); !errors.Is(err, pricing.ErrNotFound) {
		t.Errorf("Lookup err = %v, want ErrNotFound", err)
	}
}

func TestRunActivationSwapsAndPurges(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	log := logging.Setup("text")

	older, err := feeload.Run(ctx, pool, log, loadCfg(writeFees(t, "2025.parquet", erFees()), true))
	if err != nil {
		t.Fatalf("older Run: %v", err)
	}

	newer, err := feeload.Run(ctx, pool, log, loadCfg(writeFees(t, "2026.parquet", []model.FeeScheduleRow{
		{HCPCS: "99284", Locality: ptr("01"), Description: ptr("ER visit, high severity"), NonFacFee: ptr(500.0)},
	}), true))
	if err != nil {
		t.Fatalf("newer Run: %v", err)
	}

	if got := feeFileStatus(t, pool, older.FeeFileID); got != feeload.StatusInactive {
		t.Errorf("older status = %q, want inactive", got)
	}
	if got := feeFileStatus(t, pool, newer.FeeFileID); got != feeload.StatusActive {
		t.Errorf("newer status = %q, want active", got)
	}
	if newer.RowsPurged != 3 {
		t.Errorf("purged = %d, want 3", newer.RowsPurged)
	}
	if got := feeRowCount(t, pool, older.FeeFileID); got != 0 {
		t.Errorf("older rows = %d, want 0", got)
	}

	ref, err := pricing.NewPGStore(pool).Lookup(ctx, "99284")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ref.HighPrice.Equal(decimal.RequireFromString("500")) {
		t.Errorf("high = %s, want 500 from the newer file", ref.HighPrice)
	}
}

func TestRunKeepInactiveRetainsRows(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	log := logging.Setup("text")

	older, err := feeload.Run(ctx, pool, log, loadCfg(writeFees(t, "2025.parquet", erFees()), true))
	if err != nil {
		t.Fatalf("older Run: %v", err)
	}
	cfg := loadCfg(writeFees(t, "2026.parquet", []model.FeeScheduleRow{
		{HCPCS: "99213", NonFacFee: ptr(92.0)},
	}), true)
	cfg.KeepInactive = true
	if _, err := feeload.Run(ctx, pool, log, cfg); err != nil {
		t.Fatalf("newer Run: %v", err)
	}
	if got := feeRowCount(t, pool, older.FeeFileID); got != 3 {
		t.Errorf("older rows = %d, want 3 kept", got)
	}
	if _, err := pricing.NewPGStore(pool).Lookup(ctx, "85025"); !errors.Is(err, pricing.ErrNotFound) {
		t.Errorf("inactive file still priced: %v", err)
	}
}
