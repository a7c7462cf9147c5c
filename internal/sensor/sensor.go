// Package sensor provides the latest ambient temperature and humidity
// readings.
//
// Sources are push-fed: values arrive asynchronously and only the most
// recent reading per channel is kept. Readings are nil before the first
// value arrives or when the device is absent.
package sensor

import (
	"context"
	"math"
	"sync/atomic"
)

// Source exposes the last known readings. Start and Stop bracket
// observation; use With to guarantee Stop runs.
type Source interface {
	Start(ctx context.Context) error
	Stop()
	CurrentTemperature() *float64
	CurrentHumidity() *float64
}

// With starts src, runs fn, and stops src when fn returns, including on
// error or panic.
func With(ctx context.Context, src Source, fn func(Source) error) error {
	if err := src.Start(ctx); err != nil {
		return err
	}
	defer src.Stop()
	return fn(src)
}

// reading is one channel's latest value.
type reading struct {
	v atomic.Pointer[float64]
}

func (r *reading) set(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	r.v.Store(&v)
}

func (r *reading) clear() {
	r.v.Store(nil)
}

// get returns a copy so callers cannot alias the stored value.
func (r *reading) get() *float64 {
	p := r.v.Load()
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
