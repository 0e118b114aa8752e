package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/hotel-scout/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	BindEnv(v, "hotelscout_test")
	return v
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("XDG_DATA_HOME", "")
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "/home/tester/.local/share/hotelscout/hotelscout.db", cfg.Database.Path)
	assert.Equal(t, "https://test.api.amadeus.com", cfg.Amadeus.BaseURL)
	assert.Equal(t, 720*time.Hour, cfg.Cache.LongTTL)
	assert.Equal(t, time.Hour, cfg.Cache.OffersTTL)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.Photos.LivenessTimeout)
	assert.Equal(t, 50, cfg.Photos.MaxImages)
	assert.InDelta(t, 0.01, cfg.Cache.PurgeProbability, 1e-9)
}

func TestLoad_LegacyEnvironmentNames(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("AMADEUS_API_KEY", "key")
	t.Setenv("AMADEUS_API_SECRET", "secret")

	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "key", cfg.Amadeus.ClientID)
	assert.Equal(t, "secret", cfg.Amadeus.ClientSecret)
	assert.NoError(t, cfg.RequireTelegram())
	assert.NoError(t, cfg.RequireAmadeus())
}

func TestLoad_Invalid(t *testing.T) {
	v := newViper(t)
	v.Set("retry.max_attempts", 0)
	v.Set("cache.purge_probability", 2.0)

	_, err := Load(v)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestRequireSections(t *testing.T) {
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.ErrorIs(t, cfg.RequireTelegram(), common.ErrMissingConfig)
	assert.ErrorIs(t, cfg.RequireAmadeus(), common.ErrMissingConfig)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("HOTELSCOUT_DIR", "/srv/data")

	assert.Equal(t, filepath.Join(home, "db.sqlite"), ExpandPath("~/db.sqlite"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/srv/data/db.sqlite", ExpandPath("$HOTELSCOUT_DIR/db.sqlite"))
	assert.Empty(t, ExpandPath(""))
}

func TestDefaultDatabasePath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/var/lib/scout")
	assert.Equal(t, "/var/lib/scout/hotelscout/hotelscout.db", DefaultDatabasePath())

	t.Setenv("XDG_DATA_HOME", "")
	assert.Equal(t, filepath.Join("~", ".local", "share", "hotelscout", "hotelscout.db"), DefaultDatabasePath())
}
