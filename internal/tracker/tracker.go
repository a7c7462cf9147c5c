// Package tracker is the application service behind the CLI. It ties
// validation, sensor readings, threshold checks, persistence, alerts and
// backup together.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/ecowatch/internal/location"
	"github.com/roach88/ecowatch/internal/notify"
	"github.com/roach88/ecowatch/internal/replication"
	"github.com/roach88/ecowatch/internal/sensor"
	"github.com/roach88/ecowatch/internal/species"
	"github.com/roach88/ecowatch/internal/threshold"
)

// AlertTitle is the title of every threshold notification.
const AlertTitle = "Threshold alert"

var (
	// ErrLocationUnavailable is returned by Locate when no position fix
	// could be obtained.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrNotFound is returned when an entry id does not exist.
	ErrNotFound = errors.New("entry not found")
)

// Store is the persistence surface the service needs. *store.Store
// implements it.
type Store interface {
	Upsert(ctx context.Context, e species.Entry) (species.Entry, error)
	ByID(ctx context.Context, id int64) (*species.Entry, error)
}

// ViolationRecorder counts violations. Implemented by metrics.Metrics.
type ViolationRecorder interface {
	Violations(vs []threshold.Violation)
}

// Service is safe for concurrent use if its collaborators are.
type Service struct {
	store     Store
	sensors   sensor.Source
	locations location.Source
	alerts    notify.Sink
	sync      *replication.Engine
	logger    *slog.Logger
	recorder  ViolationRecorder
}

// Option configures a Service.
type Option func(*Service)

func WithSensors(src sensor.Source) Option     { return func(s *Service) { s.sensors = src } }
func WithLocations(src location.Source) Option { return func(s *Service) { s.locations = src } }
func WithAlerts(sink notify.Sink) Option       { return func(s *Service) { s.alerts = sink } }
func WithSync(e *replication.Engine) Option    { return func(s *Service) { s.sync = e } }
func WithLogger(l *slog.Logger) Option         { return func(s *Service) { s.logger = l } }
func WithRecorder(r ViolationRecorder) Option  { return func(s *Service) { s.recorder = r } }

// New creates a Service. Missing collaborators behave as absent: no
// readings, no location, alerts only logged.
func New(st Store, opts ...Option) *Service {
	s := &Service{
		store:   st,
		sensors: sensor.NewStatic(nil, nil),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.alerts == nil {
		s.alerts = notify.Log{Logger: s.logger}
	}
	return s
}

// SaveResult is what Save stored and what it found.
type SaveResult struct {
	Entry      species.Entry
	Violations []threshold.Violation
}

// Save normalizes and validates e, checks it against the current readings,
// stores it, and raises one alert listing every violation. Validation
// failures return a *species.ValidationError before anything is written.
func (s *Service) Save(ctx context.Context, e species.Entry) (SaveResult, error) {
	e = species.Normalize(e)
	if err := species.Validate(e); err != nil {
		return SaveResult{}, err
	}

	vs := threshold.Evaluate(e, s.sensors.CurrentTemperature(), s.sensors.CurrentHumidity())

	stored, err := s.store.Upsert(ctx, e)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save %q: %w", e.Name, err)
	}
	s.logger.Info("entry saved", "id", stored.ID, "name", stored.Name, "violations", len(vs))

	s.alert(ctx, stored, vs)
	return SaveResult{Entry: stored, Violations: vs}, nil
}

// Check evaluates a stored entry against the current readings and alerts
// if anything is out of range.
func (s *Service) Check(ctx context.Context, id int64) (SaveResult, error) {
	e, err := s.store.ByID(ctx, id)
	if err != nil {
		return SaveResult{}, err
	}
	if e == nil {
		return SaveResult{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	vs := threshold.Evaluate(*e, s.sensors.CurrentTemperature(), s.sensors.CurrentHumidity())
	s.alert(ctx, *e, vs)
	return SaveResult{Entry: *e, Violations: vs}, nil
}

func (s *Service) alert(ctx context.Context, e species.Entry, vs []threshold.Violation) {
	if len(vs) == 0 {
		return
	}
	if s.recorder != nil {
		s.recorder.Violations(vs)
	}
	body := e.Summary() + "\n" + strings.Join(threshold.Messages(vs), " • ")
	s.alerts.Notify(ctx, e.ID, AlertTitle, body)
}

// Locate fills in e's coordinates and address. The address falls back to
// the coordinates themselves when reverse geocoding finds nothing.
func (s *Service) Locate(ctx context.Context, e species.Entry) (species.Entry, error) {
	if s.locations == nil {
		return e, ErrLocationUnavailable
	}
	pos := s.locations.BestEffortLocation(ctx)
	if pos == nil {
		return e, ErrLocationUnavailable
	}
	lat, lng := round(pos.Lat, 6), round(pos.Lng, 6)
	e.Lat, e.Lng = &lat, &lng

	if addr := s.locations.ReverseGeocode(ctx, lat, lng); addr != nil {
		e.Address = addr
	} else {
		fallback := strconv.FormatFloat(lat, 'f', 6, 64) + ", " + strconv.FormatFloat(lng, 'f', 6, 64)
		e.Address = &fallback
	}
	return e, nil
}

// Field names a threshold that Prefill can fill.
type Field string

const (
	FieldMinTemp     Field = "min-temp"
	FieldMaxTemp     Field = "max-temp"
	FieldMinHumidity Field = "min-humidity"
	FieldMaxHumidity Field = "max-humidity"
)

// Fields lists every prefillable threshold.
var Fields = []Field{FieldMinTemp, FieldMaxTemp, FieldMinHumidity, FieldMaxHumidity}

// ParseField parses a field name.
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown threshold %q", name)
}

// Prefill copies the current reading, rounded to one decimal, into each
// named threshold that is still empty. No fields means all of them.
// Thresholds without a reading stay empty.
func (s *Service) Prefill(e species.Entry, fields ...Field) species.Entry {
	if len(fields) == 0 {
		fields = Fields
	}
	temp, humidity := s.sensors.CurrentTemperature(), s.sensors.CurrentHumidity()
	for _, f := range fields {
		switch f {
		case FieldMinTemp:
			e.MinTemp = prefill(e.MinTemp, temp)
		case FieldMaxTemp:
			e.MaxTemp = prefill(e.MaxTemp, temp)
		case FieldMinHumidity:
			e.MinHumidity = prefill(e.MinHumidity, humidity)
		case FieldMaxHumidity:
			e.MaxHumidity = prefill(e.MaxHumidity, humidity)
		}
	}
	return e
}

// Readings returns the current sensor values.
func (s *Service) Readings() (temp, humidity *float64) {
	return s.sensors.CurrentTemperature(), s.sensors.CurrentHumidity()
}

// Backup pushes the given entries, normally the current visible list.
func (s *Service) Backup(ctx context.Context, visible []species.Entry) (int, error) {
	if s.sync == nil {
		return 0, errors.New("no remote replica configured")
	}
	return s.sync.PushAll(ctx, visible)
}

// Restore replaces local entries with the remote ones.
func (s *Service) Restore(ctx context.Context) (replication.PullResult, error) {
	if s.sync == nil {
		return replication.PullResult{}, errors.New("no remote replica configured")
	}
	return s.sync.PullReplace(ctx)
}

func prefill(current, reading *float64) *float64 {
	if current != nil || reading == nil {
		return current
	}
	v := round(*reading, 1)
	return &v
}

func round(v float64, places int) float64 {
	f := math.Pow10(places)
	return math.Round(v*f) / f
}
