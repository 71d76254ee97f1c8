package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/OCAP2/mediatrack/internal/capture"
	"github.com/spf13/viper"
)

// FileName is the name of the configuration file looked up in the config
// directory.
const FileName = "mediatrack.cfg.json"

// MemoryConfig holds in-memory/JSON sink settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// GormConfig holds database sink settings. Driver is "sqlite" or
// "postgres"; DSN is a file path for sqlite. FallbackFile receives the
// in-memory database on close when Postgres was unreachable.
type GormConfig struct {
	Driver       string `json:"driver" mapstructure:"driver"`
	DSN          string `json:"dsn" mapstructure:"dsn"`
	FallbackFile string `json:"fallbackFile" mapstructure:"fallbackFile"`
}

// InfluxConfig holds InfluxDB sink settings
type InfluxConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Host      string `json:"host" mapstructure:"host"`
	Port      string `json:"port" mapstructure:"port"`
	Protocol  string `json:"protocol" mapstructure:"protocol"`
	Token     string `json:"token" mapstructure:"token"`
	Org       string `json:"org" mapstructure:"org"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	BackupDir string `json:"backupDir" mapstructure:"backupDir"`
}

// GelfConfig holds Graylog sink settings
type GelfConfig struct {
	Address string `json:"address" mapstructure:"address"`
}

// WebSocketConfig holds streaming sink settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// KafkaConfig holds Kafka sink settings
type KafkaConfig struct {
	Brokers  []string `json:"brokers" mapstructure:"brokers"`
	Topic    string   `json:"topic" mapstructure:"topic"`
	ClientID string   `json:"clientId" mapstructure:"clientId"`
}

// CollectorConfig holds HTTP collector sink settings
type CollectorConfig struct {
	Endpoint string        `json:"endpoint" mapstructure:"endpoint"`
	APIKey   string        `json:"apiKey" mapstructure:"apiKey"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// DispatchConfig holds the queue settings of sinks that deliver off the
// tracking loop
type DispatchConfig struct {
	BufferSize int  `json:"bufferSize" mapstructure:"bufferSize"`
	Blocking   bool `json:"blocking" mapstructure:"blocking"`
}

// MonitorConfig holds status monitor settings
type MonitorConfig struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./mediatracklogs")

	viper.SetDefault("tracking.mediaLabel", "")

	viper.SetDefault("sinks", []string{"memory"})

	viper.SetDefault("sink.memory.outputDir", "./events")
	viper.SetDefault("sink.memory.compressOutput", true)

	viper.SetDefault("sink.gorm.driver", "sqlite")
	viper.SetDefault("sink.gorm.dsn", "./mediatrack.db")
	viper.SetDefault("sink.gorm.fallbackFile", "./mediatracklogs/mediatrack_fallback.db")

	viper.SetDefault("sink.influx.enabled", true)
	viper.SetDefault("sink.influx.host", "localhost")
	viper.SetDefault("sink.influx.port", "8086")
	viper.SetDefault("sink.influx.protocol", "http")
	viper.SetDefault("sink.influx.token", "supersecrettoken")
	viper.SetDefault("sink.influx.org", "mediatrack")
	viper.SetDefault("sink.influx.bucket", "media-events")
	viper.SetDefault("sink.influx.backupDir", "./mediatracklogs")

	viper.SetDefault("sink.gelf.address", "localhost:12201")

	viper.SetDefault("sink.websocket.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("sink.websocket.secret", "")

	viper.SetDefault("sink.kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("sink.kafka.topic", "media-events")
	viper.SetDefault("sink.kafka.clientId", "mediatrack")

	viper.SetDefault("sink.collector.endpoint", "http://localhost:9090/com.snowplowanalytics.snowplow/tp2")
	viper.SetDefault("sink.collector.apiKey", "")
	viper.SetDefault("sink.collector.timeout", "10s")

	viper.SetDefault("dispatch.bufferSize", 1024)
	viper.SetDefault("dispatch.blocking", false)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "mediatrack")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.enabled", false)
	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusFile", "./mediatracklogs/status.txt")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSinkNames returns the names of the sinks to enable.
func GetSinkNames() []string {
	return viper.GetStringSlice("sinks")
}

// GetTrackingOptions returns the tracking options for mediaID: the entries
// under tracking.media.<mediaID> override the global tracking options.
// Keys set nowhere stay nil so that defaults apply on resolution. A list set
// to [] for the media overrides a global list. Media ids are matched without
// regard to case and may contain dots.
func GetTrackingOptions(mediaID string) (*capture.Options, error) {
	global, err := trackingOptions("tracking")
	if err != nil {
		return nil, err
	}

	media, err := mediaTrackingOptions(mediaID)
	if err != nil {
		return nil, err
	}

	// mergo treats empty slices as unset, so lists are taken over by hand.
	if err := mergo.Merge(global, media, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merging tracking options for %s: %w", mediaID, err)
	}
	if media.CaptureEvents != nil {
		global.CaptureEvents = media.CaptureEvents
	}
	if media.PercentBoundaries != nil {
		global.PercentBoundaries = media.PercentBoundaries
	}
	return global, nil
}

// mediaTrackingOptions reads the tracking.media entry of mediaID. The entry
// is looked up in the media map rather than by key path, since ids may
// contain the key delimiter.
func mediaTrackingOptions(mediaID string) (*capture.Options, error) {
	opts := &capture.Options{}
	entry, ok := viper.GetStringMap("tracking.media")[strings.ToLower(mediaID)]
	if !ok || entry == nil {
		return opts, nil
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("reading tracking.media.%s: %w", mediaID, err)
	}
	if err := json.Unmarshal(raw, opts); err != nil {
		return nil, fmt.Errorf("reading tracking.media.%s: %w", mediaID, err)
	}
	return opts, nil
}

func trackingOptions(prefix string) (*capture.Options, error) {
	opts := &capture.Options{}
	if viper.IsSet(prefix + ".captureEvents") {
		opts.CaptureEvents = viper.GetStringSlice(prefix + ".captureEvents")
		if opts.CaptureEvents == nil {
			opts.CaptureEvents = []string{}
		}
	}
	if viper.IsSet(prefix + ".percentBoundaries") {
		var boundaries []float64
		if err := viper.UnmarshalKey(prefix+".percentBoundaries", &boundaries); err != nil {
			return nil, fmt.Errorf("reading %s.percentBoundaries: %w", prefix, err)
		}
		if boundaries == nil {
			boundaries = []float64{}
		}
		opts.PercentBoundaries = boundaries
	}
	opts.MediaLabel = viper.GetString(prefix + ".mediaLabel")
	return opts, nil
}

// GetMemoryConfig returns the memory sink settings.
func GetMemoryConfig() MemoryConfig {
	return MemoryConfig{
		OutputDir:      viper.GetString("sink.memory.outputDir"),
		CompressOutput: viper.GetBool("sink.memory.compressOutput"),
	}
}

// GetGormConfig returns the database sink settings.
func GetGormConfig() GormConfig {
	return GormConfig{
		Driver:       viper.GetString("sink.gorm.driver"),
		DSN:          viper.GetString("sink.gorm.dsn"),
		FallbackFile: viper.GetString("sink.gorm.fallbackFile"),
	}
}

// GetInfluxConfig returns the InfluxDB sink settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("sink.influx.enabled"),
		Host:      viper.GetString("sink.influx.host"),
		Port:      viper.GetString("sink.influx.port"),
		Protocol:  viper.GetString("sink.influx.protocol"),
		Token:     viper.GetString("sink.influx.token"),
		Org:       viper.GetString("sink.influx.org"),
		Bucket:    viper.GetString("sink.influx.bucket"),
		BackupDir: viper.GetString("sink.influx.backupDir"),
	}
}

// GetGelfConfig returns the Graylog sink settings.
func GetGelfConfig() GelfConfig {
	return GelfConfig{Address: viper.GetString("sink.gelf.address")}
}

// GetWebSocketConfig returns the streaming sink settings.
func GetWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		URL:    viper.GetString("sink.websocket.url"),
		Secret: viper.GetString("sink.websocket.secret"),
	}
}

// GetKafkaConfig returns the Kafka sink settings.
func GetKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:  viper.GetStringSlice("sink.kafka.brokers"),
		Topic:    viper.GetString("sink.kafka.topic"),
		ClientID: viper.GetString("sink.kafka.clientId"),
	}
}

// GetCollectorConfig returns the HTTP collector sink settings.
func GetCollectorConfig() CollectorConfig {
	return CollectorConfig{
		Endpoint: viper.GetString("sink.collector.endpoint"),
		APIKey:   viper.GetString("sink.collector.apiKey"),
		Timeout:  viper.GetDuration("sink.collector.timeout"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetDispatchConfig returns the sink queue settings.
func GetDispatchConfig() DispatchConfig {
	return DispatchConfig{
		BufferSize: viper.GetInt("dispatch.bufferSize"),
		Blocking:   viper.GetBool("dispatch.blocking"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:    viper.GetBool("monitor.enabled"),
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}
