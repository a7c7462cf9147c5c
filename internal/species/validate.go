package species

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationRule identifies which domain rule an entry violated.
type ValidationRule string

const (
	// RuleNameRequired: the name is empty or whitespace only.
	RuleNameRequired ValidationRule = "NAME_REQUIRED"

	// RuleNeedThreshold: none of the four threshold fields is set.
	RuleNeedThreshold ValidationRule = "NEED_THRESHOLD"

	// RuleTempMinMax: minTemp is greater than maxTemp.
	RuleTempMinMax ValidationRule = "TEMP_MIN_MAX"

	// RuleHumidityMinMax: minHumidity is greater than maxHumidity.
	RuleHumidityMinMax ValidationRule = "HUMIDITY_MIN_MAX"

	// RuleHumidityRange: a humidity bound lies outside [0,100].
	RuleHumidityRange ValidationRule = "HUMIDITY_RANGE"
)

var ruleMessages = map[ValidationRule]string{
	RuleNameRequired:   "name required",
	RuleNeedThreshold:  "need at least one threshold",
	RuleTempMinMax:     "minimum temperature must not exceed maximum temperature",
	RuleHumidityMinMax: "minimum humidity must not exceed maximum humidity",
	RuleHumidityRange:  "humidity must be between 0 and 100",
}

// ValidationError is returned when an entry breaks a domain rule.
// It is raised before any persistence call is made.
type ValidationError struct {
	Rule    ValidationRule
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(rule ValidationRule) *ValidationError {
	return &ValidationError{Rule: rule, Message: ruleMessages[rule]}
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks the entry against the domain rules and returns the first
// violation found. Rules are checked in a fixed order: name, threshold
// presence, temperature ordering, humidity ordering, humidity range.
func Validate(e Entry) error {
	switch {
	case strings.TrimSpace(e.Name) == "":
		return newValidationError(RuleNameRequired)
	case !e.HasThreshold():
		return newValidationError(RuleNeedThreshold)
	case e.MinTemp != nil && e.MaxTemp != nil && *e.MinTemp > *e.MaxTemp:
		return newValidationError(RuleTempMinMax)
	case e.MinHumidity != nil && e.MaxHumidity != nil && *e.MinHumidity > *e.MaxHumidity:
		return newValidationError(RuleHumidityMinMax)
	case outOfPercent(e.MinHumidity) || outOfPercent(e.MaxHumidity):
		return newValidationError(RuleHumidityRange)
	}
	return nil
}

func outOfPercent(v *float64) bool {
	return v != nil && (*v < 0 || *v > 100)
}

// Normalize trims the name and collapses blank optional text fields to nil,
// the way entries are cleaned up before validation.
func Normalize(e Entry) Entry {
	e.Name = strings.TrimSpace(e.Name)
	e.Habitat = trimOptional(e.Habitat)
	e.Status = trimOptional(e.Status)
	e.Address = trimOptional(e.Address)
	return e
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// Summary is a one-line description used in notifications and CLI output.
func (e Entry) Summary() string {
	if e.Address != nil {
		return fmt.Sprintf("%s near %s", e.Name, *e.Address)
	}
	return e.Name
}
