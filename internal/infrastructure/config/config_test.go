package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"FISCAL_APP_NAME":                os.Getenv("FISCAL_APP_NAME"),
		"FISCAL_APP_ENV":                 os.Getenv("FISCAL_APP_ENV"),
		"FISCAL_APP_PORT":                os.Getenv("FISCAL_APP_PORT"),
		"FISCAL_DATA_DIR":                os.Getenv("FISCAL_DATA_DIR"),
		"FISCAL_DATABASE_DRIVER":         os.Getenv("FISCAL_DATABASE_DRIVER"),
		"FISCAL_DATABASE_HOST":           os.Getenv("FISCAL_DATABASE_HOST"),
		"FISCAL_DATABASE_PASSWORD":       os.Getenv("FISCAL_DATABASE_PASSWORD"),
		"FISCAL_DATABASE_SSLMODE":        os.Getenv("FISCAL_DATABASE_SSLMODE"),
		"FISCAL_DATABASE_MAX_OPEN_CONNS": os.Getenv("FISCAL_DATABASE_MAX_OPEN_CONNS"),
		"FISCAL_DATABASE_MAX_IDLE_CONNS": os.Getenv("FISCAL_DATABASE_MAX_IDLE_CONNS"),
		"FISCAL_CACHE_BACKEND":           os.Getenv("FISCAL_CACHE_BACKEND"),
		"FISCAL_CACHE_TTL":               os.Getenv("FISCAL_CACHE_TTL"),
		"FISCAL_JWT_SECRET":              os.Getenv("FISCAL_JWT_SECRET"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "cclastrib-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8000", cfg.App.Port)
		assert.Equal(t, "data/anexos", cfg.Data.Dir)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "memory", cfg.Cache.Backend)
		assert.Equal(t, time.Hour, cfg.Cache.TTL)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	})

	t.Run("loads values from environment variables with FISCAL prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("FISCAL_APP_NAME", "test-app")
		os.Setenv("FISCAL_APP_ENV", "testing")
		os.Setenv("FISCAL_APP_PORT", "9000")
		os.Setenv("FISCAL_DATA_DIR", "/tmp/anexos")
		os.Setenv("FISCAL_DATABASE_DRIVER", "postgres")
		os.Setenv("FISCAL_DATABASE_HOST", "testdb.local")
		os.Setenv("FISCAL_CACHE_BACKEND", "redis")
		os.Setenv("FISCAL_CACHE_TTL", "30m")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "/tmp/anexos", cfg.Data.Dir)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, "redis", cfg.Cache.Backend)
		assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		clearEnv()
		os.Setenv("FISCAL_DATABASE_DRIVER", "oracle")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("rejects unknown cache backend", func(t *testing.T) {
		clearEnv()
		os.Setenv("FISCAL_CACHE_BACKEND", "memcached")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache.backend")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("FISCAL_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("FISCAL_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("zero MaxOpenConns uses default", func(t *testing.T) {
		clearEnv()
		os.Setenv("FISCAL_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	originalEnv := map[string]string{
		"FISCAL_APP_ENV":           os.Getenv("FISCAL_APP_ENV"),
		"FISCAL_JWT_SECRET":        os.Getenv("FISCAL_JWT_SECRET"),
		"FISCAL_DATABASE_DRIVER":   os.Getenv("FISCAL_DATABASE_DRIVER"),
		"FISCAL_DATABASE_PASSWORD": os.Getenv("FISCAL_DATABASE_PASSWORD"),
		"FISCAL_DATABASE_SSLMODE":  os.Getenv("FISCAL_DATABASE_SSLMODE"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("requires jwt.secret in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("FISCAL_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret is required in production")
	})

	t.Run("requires jwt.secret at least 32 characters in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("FISCAL_APP_ENV", "production")
		os.Setenv("FISCAL_JWT_SECRET", "short-secret")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret must be at least 32 characters")
	})

	t.Run("requires database.password for postgres in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("FISCAL_APP_ENV", "production")
		os.Setenv("FISCAL_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		os.Setenv("FISCAL_DATABASE_DRIVER", "postgres")
		os.Setenv("FISCAL_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled for postgres in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("FISCAL_APP_ENV", "production")
		os.Setenv("FISCAL_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		os.Setenv("FISCAL_DATABASE_DRIVER", "postgres")
		os.Setenv("FISCAL_DATABASE_PASSWORD", "secure-password")
		os.Setenv("FISCAL_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("sqlite skips postgres credentials checks", func(t *testing.T) {
		clearEnv()
		os.Setenv("FISCAL_APP_ENV", "production")
		os.Setenv("FISCAL_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		os.Setenv("FISCAL_DATABASE_DRIVER", "sqlite")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "pass%40word%23123")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "cache.local", Port: 6380}
	assert.Equal(t, "cache.local:6380", cfg.Addr())
}
