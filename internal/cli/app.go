package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/ecowatch/internal/config"
	"github.com/roach88/ecowatch/internal/location"
	"github.com/roach88/ecowatch/internal/metrics"
	"github.com/roach88/ecowatch/internal/notify"
	"github.com/roach88/ecowatch/internal/query"
	"github.com/roach88/ecowatch/internal/remote/firestore"
	"github.com/roach88/ecowatch/internal/remote/memory"
	"github.com/roach88/ecowatch/internal/remote/s3replica"
	"github.com/roach88/ecowatch/internal/replication"
	"github.com/roach88/ecowatch/internal/sensor"
	"github.com/roach88/ecowatch/internal/store"
	"github.com/roach88/ecowatch/internal/tracker"
)

// app is everything a command needs, built from config and flags.
type app struct {
	settings *config.Settings
	logger   *slog.Logger
	out      *OutputFormatter

	store   *store.Store
	metrics *metrics.Metrics
	sensors sensor.Source
	tracker *tracker.Service

	closers []func()
}

// newLogger configures slog the way every command logs: text on stderr,
// debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}

// openApp loads config and wires the store, replica, sensors, location
// and alerts. Call close when done.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	slog.SetDefault(logger)

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		settings.Database.Path = opts.Database
	}

	a := &app{
		settings: settings,
		logger:   logger,
		out:      &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()},
	}

	a.metrics, err = metrics.New(prometheus.NewRegistry())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to register metrics", err)
	}

	storeOpts := []store.Option{store.WithLogger(logger), store.WithRecorder(a.metrics)}
	if opts.Clock != nil {
		storeOpts = append(storeOpts, store.WithClock(opts.Clock))
	}
	logger.Debug("opening database", "path", settings.Database.Path)
	a.store, err = store.Open(settings.Database.Path, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	a.closers = append(a.closers, func() {
		if closeErr := a.store.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	})

	ctx := commandContext(cmd)

	replica := opts.Replica
	if replica == nil {
		replica, err = newReplica(ctx, settings.Remote, logger)
		if err != nil {
			a.close()
			return nil, WrapExitError(ExitCommandError, "failed to configure remote replica", err)
		}
	}
	engine := replication.New(a.store, replica,
		replication.WithLogger(logger),
		replication.WithRecorder(a.metrics),
	)

	a.sensors = opts.Sensors
	if a.sensors == nil {
		a.sensors, err = newSensors(settings.Sensor, logger)
		if err != nil {
			a.close()
			return nil, WrapExitError(ExitCommandError, "failed to configure sensors", err)
		}
	}

	locations := opts.Locations
	if locations == nil {
		locations = newLocations(settings.Location, logger)
	}

	alerts := opts.Alerts
	if alerts == nil {
		alerts, err = a.newAlerts(settings.Notify)
		if err != nil {
			a.close()
			return nil, WrapExitError(ExitCommandError, "failed to configure notifications", err)
		}
	}

	trackerOpts := []tracker.Option{
		tracker.WithSensors(a.sensors),
		tracker.WithAlerts(alerts),
		tracker.WithSync(engine),
		tracker.WithLogger(logger),
		tracker.WithRecorder(a.metrics),
	}
	if locations != nil {
		trackerOpts = append(trackerOpts, tracker.WithLocations(locations))
	}
	a.tracker = tracker.New(a.store, trackerOpts...)
	return a, nil
}

// withSensors runs fn while the sensor feed is connected and stops the feed
// afterwards. A feed that cannot connect leaves the readings unknown; fn
// still runs. Readings are cleared on stop, so fn must take what it needs.
func (a *app) withSensors(ctx context.Context, fn func() error) error {
	ran := false
	err := sensor.With(ctx, a.sensors, func(sensor.Source) error {
		ran = true
		return fn()
	})
	if ran {
		return err
	}
	a.logger.Warn("sensor feed unavailable, readings unknown", "error", err)
	return fn()
}

// newPipeline builds a query pipeline over the store.
func (a *app) newPipeline(opts ...query.Option) *query.Pipeline {
	base := []query.Option{
		query.WithDebounce(a.settings.Pipeline.Debounce),
		query.WithGracePeriod(a.settings.Pipeline.GracePeriod),
		query.WithLogger(a.logger),
		query.WithRecorder(a.metrics),
	}
	return query.New(a.store, append(base, opts...)...)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newReplica(ctx context.Context, cfg config.RemoteSettings, logger *slog.Logger) (replication.Replica, error) {
	switch cfg.Driver {
	case config.DriverS3:
		return s3replica.New(ctx, s3replica.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			Prefix:          cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	case config.DriverFirestore:
		return firestore.New(firestore.Config{
			BaseURL:    cfg.Firestore.BaseURL,
			Project:    cfg.Firestore.Project,
			Collection: cfg.Firestore.Collection,
			Token:      cfg.Firestore.Token,
			Logger:     logger,
		})
	case config.DriverMemory:
		logger.Debug("using in-memory replica; backups last for this process only")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown remote driver %q", cfg.Driver)
	}
}

func newSensors(cfg config.SensorSettings, logger *slog.Logger) (sensor.Source, error) {
	if cfg.Broker == "" {
		return sensor.NewStatic(cfg.Temperature, cfg.Humidity), nil
	}
	return sensor.NewMQTT(sensor.MQTTConfig{
		Broker:           cfg.Broker,
		ClientID:         cfg.ClientID,
		Username:         cfg.Username,
		Password:         cfg.Password,
		TemperatureTopic: cfg.TemperatureTopic,
		HumidityTopic:    cfg.HumidityTopic,
	}, logger)
}

// newLocations returns nil when no position source is configured.
func newLocations(cfg config.LocationSettings, logger *slog.Logger) location.Source {
	var fixes location.FixProvider
	switch {
	case cfg.Fixed:
		fixes = location.FixedPosition{Lat: cfg.Latitude, Lng: cfg.Longitude}
	case cfg.FixURL != "":
		fixes = location.NewIPFix(cfg.FixURL)
	default:
		return nil
	}
	var geocoder location.Geocoder
	if cfg.GeocoderURL != "" {
		geocoder = location.NewNominatim(cfg.GeocoderURL)
	}
	return location.NewLocator(fixes, geocoder, cfg.CacheTTL, logger)
}

func (a *app) newAlerts(cfg config.NotifySettings) (notify.Sink, error) {
	if len(cfg.URLs) == 0 {
		return notify.Log{Logger: a.logger}, nil
	}
	d, err := notify.NewShoutrrr(cfg.URLs, cfg.Timeout, a.logger)
	if err != nil {
		return nil, err
	}
	// Close flushes pending alerts before the process exits.
	a.closers = append(a.closers, d.Close)
	return d, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
