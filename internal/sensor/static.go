package sensor

import "context"

// Static is a Source with values set by the caller. It serves fixed
// readings from configuration or flags, and tests.
type Static struct {
	temp     reading
	humidity reading
}

// NewStatic returns a source with the given readings; nil means absent.
func NewStatic(temp, humidity *float64) *Static {
	s := &Static{}
	if temp != nil {
		s.temp.set(*temp)
	}
	if humidity != nil {
		s.humidity.set(*humidity)
	}
	return s
}

func (s *Static) Start(context.Context) error { return nil }
func (s *Static) Stop()                       {}

func (s *Static) CurrentTemperature() *float64 { return s.temp.get() }
func (s *Static) CurrentHumidity() *float64    { return s.humidity.get() }

// SetTemperature records a temperature reading.
func (s *Static) SetTemperature(v float64) { s.temp.set(v) }

// SetHumidity records a humidity reading.
func (s *Static) SetHumidity(v float64) { s.humidity.set(v) }
