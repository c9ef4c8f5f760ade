package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123456:TEST-token")
	t.Setenv("DATABASE_URL", "postgres://localhost/rewardhub")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_IDS", "900,901")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int32(20), cfg.DBMaxConns)
	assert.Equal(t, int32(2), cfg.DBMinConns)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "0.05", cfg.CommissionRate.String())
	assert.True(t, cfg.IsAdmin(901))
	assert.False(t, cfg.IsAdmin(1))
	assert.Equal(t, "900,901", cfg.AdminIDsString())
}

func TestLoad_PoolSizing(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_MAX_CONNS", "8")
	t.Setenv("DB_MIN_CONNS", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int32(8), cfg.DBMaxConns)
	assert.Equal(t, int32(4), cfg.DBMinConns)

	t.Setenv("DB_MIN_CONNS", "9")
	_, err = Load()
	assert.ErrorContains(t, err, "DB_MIN_CONNS")
}

func TestLoad_CommissionRateBounds(t *testing.T) {
	setRequired(t)
	t.Setenv("REFERRAL_COMMISSION_RATE", "1.5")

	_, err := Load()
	assert.ErrorContains(t, err, "REFERRAL_COMMISSION_RATE")
}
