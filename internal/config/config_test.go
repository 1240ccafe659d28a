package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New(), false)
	require.NoError(t, err)

	assert.Equal(t, 6677, cfg.ControlPort)
	assert.Equal(t, 1616, cfg.ViewerPort)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.EditorDebounce())
	assert.Equal(t, 2*time.Second, cfg.WatchInterval())
	assert.Equal(t, 3*time.Second, cfg.ViewerReconnect())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BACKDROP_STORE_DRIVER", "rtdb")
	t.Setenv("BACKDROP_CONTROL_PORT", "7000")
	t.Setenv("BACKDROP_EDITOR_DEBOUNCE_MS", "0")

	cfg, err := load(viper.New(), false)
	require.NoError(t, err)
	assert.Equal(t, "rtdb", cfg.StoreDriver)
	assert.Equal(t, 7000, cfg.ControlPort)
	assert.Equal(t, time.Duration(0), cfg.EditorDebounce())
}

func TestLoadFromYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
store_driver: s3
s3_bucket: displays
viewer_port: 8080
`)))

	cfg, err := load(v, false)
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.StoreDriver)
	assert.Equal(t, "displays", cfg.S3Bucket)
	assert.Equal(t, 8080, cfg.ViewerPort)
}

func TestViewerBaseURL(t *testing.T) {
	cfg := &Config{ServerHost: "0.0.0.0", ViewerPort: 1616}
	assert.Equal(t, "http://127.0.0.1:1616", cfg.ViewerBaseURL())

	cfg.ServerHost = "10.0.0.5"
	assert.Equal(t, "http://10.0.0.5:1616", cfg.ViewerBaseURL())

	cfg.PublicViewerURL = "https://wall.example.com/"
	assert.Equal(t, "https://wall.example.com", cfg.ViewerBaseURL())
}
