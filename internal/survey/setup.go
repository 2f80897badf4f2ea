package survey

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	tableCrabData = "crab_data"
	tableBackup   = "crab_data_backup"
	tableStaging  = "crab_data_new"
	tableChecked  = "crab_data_checked"
	tableObsolete = "crab_population"
)

var (
	legacyColumns  = []string{"juvenile_counts", "adult_counts"}
	legacyRequired = []string{"id", "date_month", "date_year", "population", "observer_id", "location_id"}
)

// crabDataColumns is shared by the fresh table and the migration staging table.
const crabDataColumns = `
	id TEXT PRIMARY KEY,
	date_month INTEGER NOT NULL CHECK (date_month BETWEEN 1 AND 12),
	date_year INTEGER NOT NULL CHECK (date_year BETWEEN 1900 AND 2100),
	male_counts INTEGER NOT NULL DEFAULT 0 CHECK (male_counts >= 0),
	female_counts INTEGER NOT NULL DEFAULT 0 CHECK (female_counts >= 0),
	population INTEGER NOT NULL CHECK (population > 0),
	observer_id TEXT REFERENCES observers(id),
	location_id TEXT REFERENCES locations(id),
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP`

const sexSumCheck = `CONSTRAINT crab_data_sex_sum CHECK (male_counts + female_counts = population)`

// Migrate brings the store to the current schema. It is safe to run on every
// startup. A returned error of kind ErrMigration means the legacy table could
// not be moved; the store is still usable and crab_data_backup is kept for
// manual recovery. Any other error means the base schema is missing.
func Migrate(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	m := &migrator{db: db.WithContext(ctx), log: log.Named("migrate")}
	return m.run()
}

type migrator struct {
	db  *gorm.DB
	log *zap.Logger
}

func (m *migrator) run() error {
	if err := m.db.AutoMigrate(&Observer{}, &Location{}); err != nil {
		return wrapStorage("migrate reference tables", err)
	}
	if err := m.db.Migrator().DropTable(tableObsolete); err != nil {
		m.log.Warn("could not drop obsolete table", zap.String("table", tableObsolete), zap.Error(err))
	}

	if !m.db.Migrator().HasTable(tableCrabData) {
		if err := m.createCrabTable(m.db, tableCrabData, true); err != nil {
			return wrapStorage("create crab_data", err)
		}
		m.log.Info("created crab_data table")
		return nil
	}

	cols, err := m.columns(tableCrabData)
	if err != nil {
		return wrapStorage("inspect crab_data", err)
	}
	if !hasAny(cols, legacyColumns) {
		// leftovers from an interrupted run; crab_data is authoritative
		for _, t := range []string{tableStaging, tableChecked} {
			if !m.db.Migrator().HasTable(t) {
				continue
			}
			if err := m.db.Migrator().DropTable(t); err != nil {
				m.log.Warn("could not drop stale staging table", zap.String("table", t), zap.Error(err))
			}
		}
		return nil
	}

	m.log.Info("legacy crab_data schema detected", zap.Strings("columns", cols))
	if err := m.migrateLegacy(cols); err != nil {
		m.log.Error("legacy migration failed; crab_data left unchanged",
			zap.String("backup", tableBackup), zap.Error(err))
		return migrationError("migrate legacy crab_data", err)
	}
	return nil
}

func (m *migrator) migrateLegacy(cols []string) error {
	mig := m.db.Migrator()

	if err := mig.DropTable(tableBackup); err != nil {
		return fmt.Errorf("drop previous backup: %w", err)
	}
	if err := m.db.Exec("CREATE TABLE " + tableBackup + " AS SELECT * FROM " + tableCrabData).Error; err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	if err := mig.DropTable(tableStaging, tableChecked); err != nil {
		return fmt.Errorf("drop stale staging: %w", err)
	}
	copyCols, selectExprs, err := legacyProjection(cols)
	if err != nil {
		return err
	}
	m.warnDangling()

	var copied int64
	err = m.db.Connection(func(conn *gorm.DB) error {
		// Every check except the sex sum is enforced while copying; legacy
		// rows carry no sex split, so 0 + 0 = population cannot hold.
		if err := m.createCrabTable(conn, tableStaging, false); err != nil {
			return fmt.Errorf("create staging: %w", err)
		}
		res := conn.Exec(fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			tableStaging, strings.Join(copyCols, ", "), strings.Join(selectExprs, ", "), tableCrabData))
		if res.Error != nil {
			return fmt.Errorf("copy rows: %w", res.Error)
		}
		copied = res.RowsAffected

		if conn.Dialector.Name() != "sqlite" {
			err := conn.Exec("ALTER TABLE " + tableStaging + " ADD " + sexSumCheck + " NOT VALID").Error
			if err != nil {
				return fmt.Errorf("add sum constraint: %w", err)
			}
			return nil
		}
		return m.addSumCheckSQLite(conn, copyCols)
	})
	if err != nil {
		if dropErr := mig.DropTable(tableStaging, tableChecked); dropErr != nil {
			m.log.Warn("could not drop staging table", zap.Error(dropErr))
		}
		return err
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Migrator().DropTable(tableCrabData); err != nil {
			return fmt.Errorf("drop legacy table: %w", err)
		}
		if err := tx.Migrator().RenameTable(tableStaging, tableCrabData); err != nil {
			return fmt.Errorf("rename staging table: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := mig.DropTable(tableBackup); err != nil {
		m.log.Warn("migration complete but backup table could not be removed",
			zap.String("backup", tableBackup), zap.Error(err))
	}
	m.log.Info("legacy crab_data migrated", zap.Int64("rows", copied))
	return nil
}

// addSumCheckSQLite moves the already checked staging rows into a table that
// carries the sum constraint. SQLite cannot add a constraint to an existing
// table, so only this second copy runs with checks off.
func (m *migrator) addSumCheckSQLite(conn *gorm.DB, cols []string) error {
	if err := m.createCrabTable(conn, tableChecked, true); err != nil {
		return fmt.Errorf("create checked table: %w", err)
	}
	if err := conn.Exec("PRAGMA ignore_check_constraints = ON").Error; err != nil {
		return err
	}
	list := strings.Join(cols, ", ")
	err := conn.Exec(fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", tableChecked, list, list, tableStaging)).Error
	if offErr := conn.Exec("PRAGMA ignore_check_constraints = OFF").Error; err == nil {
		err = offErr
	}
	if err != nil {
		return fmt.Errorf("copy checked rows: %w", err)
	}
	if err := conn.Migrator().DropTable(tableStaging); err != nil {
		return err
	}
	return conn.Migrator().RenameTable(tableChecked, tableStaging)
}

// warnDangling logs legacy references that the copy will clear.
func (m *migrator) warnDangling() {
	for _, ref := range []struct{ col, table string }{{"observer_id", "observers"}, {"location_id", "locations"}} {
		var n int64
		err := m.db.Table(tableCrabData).
			Where(ref.col + " IS NOT NULL AND " + ref.col + " NOT IN (SELECT id FROM " + ref.table + ")").
			Count(&n).Error
		if err == nil && n > 0 {
			m.log.Warn("clearing dangling legacy references", zap.String("column", ref.col), zap.Int64("rows", n))
		}
	}
}

func (m *migrator) createCrabTable(tx *gorm.DB, name string, withSumCheck bool) error {
	body := crabDataColumns
	if withSumCheck {
		body += ",\n\t" + sexSumCheck
	}
	return tx.Exec("CREATE TABLE IF NOT EXISTS " + name + " (" + body + "\n)").Error
}

func (m *migrator) columns(table string) ([]string, error) {
	rows, err := m.db.Table(table).Limit(1).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rows.Columns()
}

// legacyProjection maps the current columns onto a SELECT over the legacy
// table, defaulting sex counts to 0.
func legacyProjection(legacy []string) (cols, exprs []string, err error) {
	have := make(map[string]bool, len(legacy))
	for _, c := range legacy {
		have[strings.ToLower(c)] = true
	}

	for _, c := range legacyRequired {
		if !have[c] {
			return nil, nil, errors.New("legacy table is missing column " + c)
		}
	}
	cols = slices.Clone(legacyRequired)
	exprs = []string{"id", "date_month", "date_year", "population",
		// references to rows that no longer exist are cleared
		"CASE WHEN observer_id IN (SELECT id FROM observers) THEN observer_id END",
		"CASE WHEN location_id IN (SELECT id FROM locations) THEN location_id END",
	}
	for _, c := range []string{"male_counts", "female_counts"} {
		cols = append(cols, c)
		if have[c] {
			exprs = append(exprs, "COALESCE("+c+", 0)")
		} else {
			exprs = append(exprs, "0")
		}
	}
	if have["created_at"] {
		cols = append(cols, "created_at")
		exprs = append(exprs, "created_at")
	}
	return cols, exprs, nil
}

func hasAny(cols, want []string) bool {
	for _, c := range cols {
		for _, w := range want {
			if strings.EqualFold(c, w) {
				return true
			}
		}
	}
	return false
}

// Reset drops every survey table and rebuilds an empty schema.
func (s *Store) Reset(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	for _, t := range []string{tableCrabData, tableBackup, tableStaging, tableChecked, tableObsolete, "locations", "observers"} {
		if err := db.Migrator().DropTable(t); err != nil {
			return wrapStorage("reset", err)
		}
	}
	s.log.Warn("database reset")
	return Migrate(ctx, s.db, s.log)
}
