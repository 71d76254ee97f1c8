package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"sinks": ["memory", "kafka"],
		"sink": { "kafka": { "topic": "player-events" } }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, []string{"memory", "kafka"}, GetSinkNames())
	assert.Equal(t, "player-events", GetKafkaConfig().Topic)
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./mediatracklogs", viper.GetString("logsDir"))
	assert.Equal(t, []string{"memory"}, GetSinkNames())
	assert.Equal(t, "localhost:12201", GetGelfConfig().Address)
	assert.Equal(t, []string{"localhost:9092"}, GetKafkaConfig().Brokers)
	assert.Equal(t, "mediatrack", GetKafkaConfig().ClientID)
	assert.Equal(t, "", GetWebSocketConfig().Secret)
	assert.Equal(t, 10*time.Second, GetCollectorConfig().Timeout)
	assert.False(t, viper.IsSet("tracking.captureEvents"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	// Defaults are still usable.
	assert.Equal(t, "info", viper.GetString("logLevel"))
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetTrackingOptions_Unset(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	opts, err := GetTrackingOptions("youtube")
	require.NoError(t, err)

	assert.Nil(t, opts.CaptureEvents)
	assert.Nil(t, opts.PercentBoundaries)
	assert.Empty(t, opts.MediaLabel)
}

func TestGetTrackingOptions_Global(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"tracking": {
			"captureEvents": ["DefaultEvents", "cued"],
			"percentBoundaries": [20, 40],
			"mediaLabel": "site"
		}
	}`)))

	opts, err := GetTrackingOptions("youtube")
	require.NoError(t, err)

	assert.Equal(t, []string{"DefaultEvents", "cued"}, opts.CaptureEvents)
	assert.Equal(t, []float64{20, 40}, opts.PercentBoundaries)
	assert.Equal(t, "site", opts.MediaLabel)
}

func TestGetTrackingOptions_PerMediaOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"tracking": {
			"captureEvents": ["AllEvents"],
			"percentBoundaries": [20, 40],
			"mediaLabel": "site",
			"media": {
				"trailer": {
					"percentBoundaries": [50],
					"mediaLabel": "trailer"
				}
			}
		}
	}`)))

	opts, err := GetTrackingOptions("trailer")
	require.NoError(t, err)
	assert.Equal(t, []string{"AllEvents"}, opts.CaptureEvents)
	assert.Equal(t, []float64{50}, opts.PercentBoundaries)
	assert.Equal(t, "trailer", opts.MediaLabel)

	other, err := GetTrackingOptions("other")
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 40}, other.PercentBoundaries)
	assert.Equal(t, "site", other.MediaLabel)
}

func TestGetTrackingOptions_EmptyMediaListOverridesGlobal(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"tracking": {
			"captureEvents": ["AllEvents"],
			"percentBoundaries": [20, 40],
			"media": {
				"quiet": {
					"captureEvents": [],
					"percentBoundaries": []
				}
			}
		}
	}`)))

	opts, err := GetTrackingOptions("quiet")
	require.NoError(t, err)
	require.NotNil(t, opts.CaptureEvents)
	require.NotNil(t, opts.PercentBoundaries)
	assert.Empty(t, opts.CaptureEvents)
	assert.Empty(t, opts.PercentBoundaries)
}

func TestGetTrackingOptions_DottedMediaID(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"tracking": {
			"mediaLabel": "site",
			"media": {
				"hero.video": {
					"captureEvents": ["play"],
					"mediaLabel": "hero"
				}
			}
		}
	}`)))

	opts, err := GetTrackingOptions("Hero.Video")
	require.NoError(t, err)
	assert.Equal(t, []string{"play"}, opts.CaptureEvents)
	assert.Nil(t, opts.PercentBoundaries)
	assert.Equal(t, "hero", opts.MediaLabel)
}

func TestGetGormConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"sink": { "gorm": { "driver": "postgres", "dsn": "host=db user=postgres" } }
	}`)))

	gc := GetGormConfig()
	assert.Equal(t, "postgres", gc.Driver)
	assert.Equal(t, "host=db user=postgres", gc.DSN)
	assert.Equal(t, "./mediatracklogs/mediatrack_fallback.db", gc.FallbackFile)
}

func TestGetMemoryConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetMemoryConfig()
	assert.Equal(t, "./events", cfg.OutputDir)
	assert.Equal(t, true, cfg.CompressOutput)
}

func TestGetInfluxConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetInfluxConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "http", cfg.Protocol)
	assert.Equal(t, "8086", cfg.Port)
	assert.Equal(t, "media-events", cfg.Bucket)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "mediatrack", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestGetMonitorConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{ "monitor": { "enabled": true, "interval": "250ms" } }`)))

	mc := GetMonitorConfig()
	assert.True(t, mc.Enabled)
	assert.Equal(t, 250*time.Millisecond, mc.Interval)
	assert.Equal(t, "./mediatracklogs/status.txt", mc.StatusFile)
}

func TestGetDispatchConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()

	dc := GetDispatchConfig()
	assert.Equal(t, 1024, dc.BufferSize)
	assert.False(t, dc.Blocking)

	require.NoError(t, Load(writeConfig(t, `{ "dispatch": { "bufferSize": 16, "blocking": true } }`)))
	dc = GetDispatchConfig()
	assert.Equal(t, 16, dc.BufferSize)
	assert.True(t, dc.Blocking)
}
