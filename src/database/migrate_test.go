package database

import (
	"fmt"
	"testing"

	"autoexit/src/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateFreshSQLite(t *testing.T) {
	db, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), 1)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(db))
	// a second run finds everything applied
	require.NoError(t, Migrate(db))

	for _, table := range []interface{}{
		&model.ManagementRule{},
		&model.BrokerCredential{},
		&model.ExitExecutionLog{},
		&model.Exception{},
	} {
		assert.True(t, db.Migrator().HasTable(table), "%T", table)
	}

	rule := model.ManagementRule{UserID: "u1", Symbol: "INFY", Exchange: "NSE", Product: "MIS", ExitType: model.ExitTypeTotalLoss}
	require.NoError(t, db.Create(&rule).Error)

	var stored model.ManagementRule
	require.NoError(t, db.First(&stored, rule.ID).Error)
	assert.True(t, stored.IsActive)
	assert.False(t, stored.IsGroupRule)
}
