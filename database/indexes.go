package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type partialIndex struct {
	name  string
	table string
	sql   string
}

// The nullable active_* columns already carry the one-active-session rules on
// every dialect. Where the dialect supports partial indexes the same rules
// are also stated on status directly.
var sessionIndexes = []partialIndex{
	{
		name:  "uq_table_sessions_active_table",
		table: "table_sessions",
		sql:   "CREATE UNIQUE INDEX IF NOT EXISTS uq_table_sessions_active_table ON table_sessions (table_id) WHERE status = 'active'",
	},
	{
		name:  "uq_table_sessions_active_code",
		table: "table_sessions",
		sql:   "CREATE UNIQUE INDEX IF NOT EXISTS uq_table_sessions_active_code ON table_sessions (restaurant_id, join_code) WHERE status = 'active'",
	},
}

// EnsureSessionIndexes creates the partial unique indexes on postgres and
// sqlite and verifies they exist. mysql has no partial indexes and is skipped.
func EnsureSessionIndexes(db *gorm.DB, log *logrus.Logger) error {
	dialect := db.Dialector.Name()
	if dialect != "postgres" && dialect != "sqlite" {
		log.WithField("dialect", dialect).Info("partial indexes not supported, relying on active slot columns")
		return nil
	}

	for _, idx := range sessionIndexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
		if !db.Migrator().HasIndex(idx.table, idx.name) {
			return fmt.Errorf("index %s missing after create", idx.name)
		}
		log.WithField("index", idx.name).Debug("index verified")
	}
	return nil
}
