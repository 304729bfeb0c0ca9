package personastore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/punkouter25/podebaterap/internal/domain"
)

// personaRow is the personas table. version is bumped on every
// RecordOutcome so concurrent writers racing past the in-process lock
// table (e.g. a second process) still fail rather than silently
// clobbering each other.
type personaRow struct {
	Name         string `gorm:"primaryKey"`
	Wins         int
	Losses       int
	TotalDebates int
	Version      int
}

func (personaRow) TableName() string { return "personas" }

// GormStore persists personas through GORM, dispatching the concrete
// driver off the DSN the same way the gateway's session store picks
// between sqlite and postgres.
type GormStore struct {
	db *gorm.DB

	// locks serializes RecordOutcome per persona name within this
	// process, taken in sorted-name order to avoid deadlocking against
	// a concurrent outcome touching the same two names in reverse.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewGormStore opens driver/dsn, migrates the personas table, and
// returns a ready Store. driver is "sqlite" or "postgres"; connection
// strings beginning with "postgres://" are treated as postgres
// regardless of the driver argument.
func NewGormStore(driver, dsn string) (*GormStore, error) {
	db, err := openGorm(driver, dsn)
	if err != nil {
		return nil, domain.NewError(domain.KindStoreFailure, "personastore.NewGormStore", err)
	}
	if err := db.AutoMigrate(&personaRow{}); err != nil {
		return nil, domain.NewError(domain.KindStoreFailure, "personastore.NewGormStore", err)
	}
	return &GormStore{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

// openGorm dispatches to the concrete gorm.Dialector for driver/dsn. For
// sqlite file DSNs it creates the parent directory first, since a
// missing directory is a silent, confusing open failure otherwise.
func openGorm(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	if strings.HasPrefix(dsn, "postgres://") || driver == "postgres" {
		return gorm.Open(postgres.Open(dsn), cfg)
	}

	if driver == "sqlite" {
		if dsn != ":memory:" && !strings.Contains(dsn, "mode=memory") {
			if dir := filepath.Dir(dsn); dir != "" && dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("creating sqlite parent directory: %w", err)
				}
			}
		}
		return gorm.Open(sqlite.Open(dsn), cfg)
	}

	return nil, fmt.Errorf("unknown store driver %q", driver)
}

func (s *GormStore) lockFor(name string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.locks[name]
	if !ok {
		m = &sync.Mutex{}
		s.locks[name] = m
	}
	return m
}

func toDomain(r personaRow) domain.Persona {
	return domain.Persona{Name: r.Name, Wins: r.Wins, Losses: r.Losses, TotalDebates: r.TotalDebates}
}

func (s *GormStore) List(ctx context.Context) ([]domain.Persona, error) {
	var rows []personaRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, domain.NewError(domain.KindStoreFailure, "personastore.List", err)
	}
	out := make([]domain.Persona, 0, len(rows))
	for _, r := range rows {
		out = append(out, toDomain(r))
	}
	return out, nil
}

func (s *GormStore) Get(ctx context.Context, name string) (domain.Persona, error) {
	var row personaRow
	err := s.db.WithContext(ctx).First(&row, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Persona{}, domain.NewError(domain.KindNotFound, "personastore.Get", fmt.Errorf("persona %q not found", name))
	}
	if err != nil {
		return domain.Persona{}, domain.NewError(domain.KindStoreFailure, "personastore.Get", err)
	}
	return toDomain(row), nil
}

func (s *GormStore) Upsert(ctx context.Context, p domain.Persona) error {
	row := personaRow{Name: p.Name, Wins: p.Wins, Losses: p.Losses, TotalDebates: p.TotalDebates}
	err := s.db.WithContext(ctx).Save(&row).Error
	if err != nil {
		return domain.NewError(domain.KindStoreFailure, "personastore.Upsert", err)
	}
	return nil
}

func (s *GormStore) SeedIfEmpty(ctx context.Context, names []string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&personaRow{}).Count(&count).Error; err != nil {
		return domain.NewError(domain.KindStoreFailure, "personastore.SeedIfEmpty", err)
	}
	if count > 0 {
		return nil
	}

	rows := make([]personaRow, 0, len(names))
	for _, n := range names {
		rows = append(rows, personaRow{Name: n})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return domain.NewError(domain.KindStoreFailure, "personastore.SeedIfEmpty", err)
	}
	return nil
}

// RecordOutcome locks winner and loser in sorted order, then updates
// both rows inside a single transaction keyed on the version column
// read at lock time, so a stale in-memory lock table (e.g. after a
// restart with another process writing the same row) still surfaces
// as a conflict instead of a lost update.
func (s *GormStore) RecordOutcome(ctx context.Context, winner, loser string) error {
	names := []string{winner, loser}
	sort.Strings(names)
	for _, n := range names {
		m := s.lockFor(n)
		m.Lock()
		defer m.Unlock()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var winRow, loseRow personaRow
		if err := tx.First(&winRow, "name = ?", winner).Error; err != nil {
			return notFoundOrFailure("personastore.RecordOutcome", winner, err)
		}
		if err := tx.First(&loseRow, "name = ?", loser).Error; err != nil {
			return notFoundOrFailure("personastore.RecordOutcome", loser, err)
		}

		res := tx.Model(&personaRow{}).
			Where("name = ? AND version = ?", winRow.Name, winRow.Version).
			Updates(map[string]any{
				"wins":          winRow.Wins + 1,
				"total_debates": winRow.TotalDebates + 1,
				"version":       winRow.Version + 1,
			})
		if res.Error != nil {
			return domain.NewError(domain.KindStoreFailure, "personastore.RecordOutcome", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NewError(domain.KindStoreFailure, "personastore.RecordOutcome", fmt.Errorf("version conflict updating %q", winRow.Name))
		}

		res = tx.Model(&personaRow{}).
			Where("name = ? AND version = ?", loseRow.Name, loseRow.Version).
			Updates(map[string]any{
				"losses":        loseRow.Losses + 1,
				"total_debates": loseRow.TotalDebates + 1,
				"version":       loseRow.Version + 1,
			})
		if res.Error != nil {
			return domain.NewError(domain.KindStoreFailure, "personastore.RecordOutcome", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NewError(domain.KindStoreFailure, "personastore.RecordOutcome", fmt.Errorf("version conflict updating %q", loseRow.Name))
		}

		return nil
	})
}

func notFoundOrFailure(op, name string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewError(domain.KindNotFound, op, fmt.Errorf("persona %q not found", name))
	}
	return domain.NewError(domain.KindStoreFailure, op, err)
}

func (s *GormStore) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	var rows []personaRow
	q := s.db.WithContext(ctx).
		Order("(CAST(wins AS REAL) / CASE WHEN (wins+losses) = 0 THEN 1 ELSE (wins+losses) END) DESC").
		Order("wins DESC").
		Order("losses ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, domain.NewError(domain.KindStoreFailure, "personastore.Leaderboard", err)
	}

	out := make([]domain.LeaderboardRow, 0, len(rows))
	for _, r := range rows {
		p := toDomain(r)
		out = append(out, domain.LeaderboardRow{
			Name:    p.Name,
			Wins:    p.Wins,
			Losses:  p.Losses,
			Total:   p.TotalDebates,
			WinPct:  p.WinPct(),
		})
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return domain.NewError(domain.KindStoreFailure, "personastore.Close", err)
	}
	return sqlDB.Close()
}
