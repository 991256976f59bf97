// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/americavendas/marketplace/internal/pkg/database"
)

// Clock is a deterministic, manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// tick is gorm's timestamp source in tests: strictly increasing whole seconds,
// so created_at ordering is stable and sqlite's text timestamps compare correctly.
type tick struct {
	mu  sync.Mutex
	cur time.Time
}

func (t *tick) next() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur = t.cur.Add(time.Second)
	return t.cur
}

// NewDB opens a private in-memory sqlite database with the full schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	ts := &tick{cur: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: ts.next,
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { database.Close(db) })
	return db
}
