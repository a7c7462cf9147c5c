// Package config loads ecowatch settings from an optional YAML file and
// ECOWATCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ECOWATCH_DATABASE_PATH.
const EnvPrefix = "ECOWATCH"

// Remote drivers.
const (
	DriverMemory    = "memory"
	DriverS3        = "s3"
	DriverFirestore = "firestore"
)

// Settings is the full configuration.
type Settings struct {
	Database DatabaseSettings `mapstructure:"database"`
	Pipeline PipelineSettings `mapstructure:"pipeline"`
	Remote   RemoteSettings   `mapstructure:"remote"`
	Sensor   SensorSettings   `mapstructure:"sensor"`
	Notify   NotifySettings   `mapstructure:"notify"`
	Location LocationSettings `mapstructure:"location"`
	Metrics  MetricsSettings  `mapstructure:"metrics"`
}

type DatabaseSettings struct {
	Path string `mapstructure:"path"`
}

// PipelineSettings tunes the live query pipeline.
type PipelineSettings struct {
	Debounce    time.Duration `mapstructure:"debounce"`
	GracePeriod time.Duration `mapstructure:"graceperiod"`
}

// RemoteSettings selects and configures the backup replica.
type RemoteSettings struct {
	Driver    string            `mapstructure:"driver"`
	S3        S3Settings        `mapstructure:"s3"`
	Firestore FirestoreSettings `mapstructure:"firestore"`
}

type S3Settings struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"pathstyle"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"accesskeyid"`
	SecretAccessKey string `mapstructure:"secretaccesskey"`
}

type FirestoreSettings struct {
	BaseURL    string `mapstructure:"baseurl"`
	Project    string `mapstructure:"project"`
	Collection string `mapstructure:"collection"`
	Token      string `mapstructure:"token"`
}

// SensorSettings configures the MQTT feed. With no broker, readings come
// from the static values, which may be unset.
type SensorSettings struct {
	Broker           string   `mapstructure:"broker"`
	ClientID         string   `mapstructure:"clientid"`
	Username         string   `mapstructure:"username"`
	Password         string   `mapstructure:"password"`
	TemperatureTopic string   `mapstructure:"temperaturetopic"`
	HumidityTopic    string   `mapstructure:"humiditytopic"`
	Temperature      *float64 `mapstructure:"temperature"`
	Humidity         *float64 `mapstructure:"humidity"`
}

// NotifySettings lists shoutrrr service URLs. Empty means alerts are only
// logged.
type NotifySettings struct {
	URLs    []string      `mapstructure:"urls"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LocationSettings configures position lookup. A fixed position is used
// when Fixed is true; otherwise FixURL, if set, is queried.
type LocationSettings struct {
	Fixed       bool          `mapstructure:"fixed"`
	Latitude    float64       `mapstructure:"latitude"`
	Longitude   float64       `mapstructure:"longitude"`
	FixURL      string        `mapstructure:"fixurl"`
	GeocoderURL string        `mapstructure:"geocoderurl"`
	CacheTTL    time.Duration `mapstructure:"cachettl"`
}

type MetricsSettings struct {
	Listen string `mapstructure:"listen"`
}

// Load reads settings. An explicit path must exist; without one the
// working directory and the user config directory are searched for
// ecowatch.yaml and a missing file means defaults.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Pointer fields have no default, so AutomaticEnv alone would not see them.
	for _, key := range []string{"sensor.temperature", "sensor.humidity"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("ecowatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "ecowatch"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks cross-field constraints.
func (s *Settings) Validate() error {
	var errs []error
	if s.Database.Path == "" {
		errs = append(errs, errors.New("database.path must not be empty"))
	}
	if s.Pipeline.Debounce <= 0 {
		errs = append(errs, errors.New("pipeline.debounce must be positive"))
	}
	if s.Pipeline.GracePeriod < 0 {
		errs = append(errs, errors.New("pipeline.graceperiod must not be negative"))
	}
	switch s.Remote.Driver {
	case DriverMemory:
	case DriverS3:
		if s.Remote.S3.Bucket == "" {
			errs = append(errs, errors.New("remote.s3.bucket is required for the s3 driver"))
		}
	case DriverFirestore:
		if s.Remote.Firestore.Project == "" {
			errs = append(errs, errors.New("remote.firestore.project is required for the firestore driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("remote.driver %q is not one of memory, s3, firestore", s.Remote.Driver))
	}
	if s.Sensor.Broker != "" && s.Sensor.TemperatureTopic == "" && s.Sensor.HumidityTopic == "" {
		errs = append(errs, errors.New("sensor.broker needs a temperature or humidity topic"))
	}
	if s.Sensor.Humidity != nil && (*s.Sensor.Humidity < 0 || *s.Sensor.Humidity > 100) {
		errs = append(errs, errors.New("sensor.humidity must be within 0..100"))
	}
	if s.Location.Fixed && (s.Location.Latitude < -90 || s.Location.Latitude > 90 ||
		s.Location.Longitude < -180 || s.Location.Longitude > 180) {
		errs = append(errs, errors.New("location latitude/longitude out of range"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
