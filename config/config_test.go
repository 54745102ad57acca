package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("API_KEY_HASH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, 10, cfg.Engine.NodeXPReward)
	assert.Equal(t, time.UTC, cfg.Engine.Location)
	assert.Equal(t, 5, cfg.Engine.ConflictMaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Redis.CacheTTL)
	assert.False(t, cfg.Auth.Enabled())
	assert.False(t, cfg.Features.PrerequisitesEnforced("u1"))
}

func TestLoad_PostgresFromURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("DATABASE_URL", "postgres://app:secret@db:5432/roadmaps")
	t.Setenv("DATABASE_MAX_CONNS", "20")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 20, cfg.Database.MaxConns)
}

func TestLoad_CollectsEveryProblem(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("HTTP_PORT", "70000")
	t.Setenv("NODE_XP_REWARD", "-1")
	t.Setenv("CONFLICT_MAX_ATTEMPTS", "0")
	t.Setenv("ACTIVITY_TIMEZONE", "Mars/Olympus")
	t.Setenv("API_KEY_HASH", "plaintext")
	t.Setenv("LOG_FORMAT", "xml")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{
		"STORE_DRIVER", "HTTP_PORT", "NODE_XP_REWARD", "CONFLICT_MAX_ATTEMPTS",
		"ACTIVITY_TIMEZONE", "API_KEY_HASH", "LOG_FORMAT",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_APIKeyHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("service-key"), bcrypt.MinCost)
	require.NoError(t, err)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("API_KEY_HASH", string(hash))

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Auth.Enabled())
}

func TestValidate_MemoryRejectedInProduction(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed in production")
}

func TestRedisConfig_Enabled(t *testing.T) {
	assert.False(t, RedisConfig{}.Enabled())
	assert.True(t, RedisConfig{URL: "redis://localhost:6379"}.Enabled())
	assert.False(t, RedisConfig{URL: "redis://localhost:6379", Disabled: true}.Enabled())
}

func TestFeatureFlags(t *testing.T) {
	t.Setenv("FEATURE_PROGRESS_ENFORCE_PREREQUISITES", "true")
	t.Setenv("FEATURE_PROGRESS_CACHE", "0")

	ff := LoadFeatureFlags()
	assert.True(t, ff.PrerequisitesEnforced("u1"))
	assert.False(t, ff.CacheEnabled("u1"))
	assert.True(t, ff.EventsEnabled())
	assert.True(t, ff.StreaksEnabled("u1"))

	ff.SetUserOverride("u2", FeatureEnforcePrerequisites, false)
	assert.False(t, ff.PrerequisitesEnforced("u2"))
	ff.ClearUserOverrides("u2")
	assert.True(t, ff.PrerequisitesEnforced("u2"))

	assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureProgressCache, 101), ErrInvalidRolloutPercent)
	require.NoError(t, ff.DisableFeature(FeatureEventsPublish))
	assert.False(t, ff.EventsEnabled())

	assert.Contains(t, ff.Names(), FeatureGamificationStreaks)
	assert.Equal(t, "FEATURE_PROGRESS_ENFORCE_PREREQUISITES", featureNameToEnvKey(FeatureEnforcePrerequisites))
}

func TestFeatureFlags_RolloutIsStable(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureProgressCache, 50))

	in := 0
	for i := 0; i < 200; i++ {
		user := "user-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		first := ff.CacheEnabled(user)
		assert.Equal(t, first, ff.CacheEnabled(user))
		if first {
			in++
		}
	}
	assert.Greater(t, in, 0)
	assert.Less(t, in, 200)
}
