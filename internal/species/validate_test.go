package species

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		rule    ValidationRule
		message string
	}{
		{
			name:    "blank name",
			entry:   Entry{Name: "", MinTemp: Ptr(10.0)},
			rule:    RuleNameRequired,
			message: "name required",
		},
		{
			name:    "whitespace name",
			entry:   Entry{Name: "   ", MinTemp: Ptr(10.0)},
			rule:    RuleNameRequired,
			message: "name required",
		},
		{
			name:    "no thresholds",
			entry:   Entry{Name: "Frog", Population: Ptr(12)},
			rule:    RuleNeedThreshold,
			message: "need at least one threshold",
		},
		{
			name:  "temperature min above max",
			entry: Entry{Name: "Frog", MinTemp: Ptr(30.0), MaxTemp: Ptr(10.0)},
			rule:  RuleTempMinMax,
		},
		{
			name:  "humidity min above max",
			entry: Entry{Name: "Frog", MinHumidity: Ptr(80.0), MaxHumidity: Ptr(40.0)},
			rule:  RuleHumidityMinMax,
		},
		{
			name:  "humidity below zero",
			entry: Entry{Name: "Frog", MinHumidity: Ptr(-1.0)},
			rule:  RuleHumidityRange,
		},
		{
			name:  "humidity above hundred",
			entry: Entry{Name: "Frog", MaxHumidity: Ptr(100.5)},
			rule:  RuleHumidityRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.entry)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.rule, ve.Rule)
			if tt.message != "" {
				assert.Equal(t, tt.message, ve.Error())
			}
		})
	}
}

func TestValidate_NameCheckedBeforeThresholds(t *testing.T) {
	var ve *ValidationError
	require.ErrorAs(t, Validate(Entry{}), &ve)
	assert.Equal(t, RuleNameRequired, ve.Rule)
}

func TestValidate_Accepts(t *testing.T) {
	valid := []Entry{
		{Name: "Frog", MinTemp: Ptr(10.0)},
		{Name: "Frog", MinTemp: Ptr(10.0), MaxTemp: Ptr(10.0)},
		{Name: "Frog", MinHumidity: Ptr(0.0), MaxHumidity: Ptr(100.0)},
		{Name: "Frog", MinTemp: Ptr(10.0), MaxTemp: Ptr(25.0), MinHumidity: Ptr(40.0), MaxHumidity: Ptr(80.0)},
	}
	for _, e := range valid {
		assert.NoError(t, Validate(e))
	}
}

func TestNormalize(t *testing.T) {
	e := Normalize(Entry{
		Name:    "  Frog ",
		Status:  Ptr("  "),
		Habitat: Ptr(" pond "),
	})

	assert.Equal(t, "Frog", e.Name)
	assert.Nil(t, e.Status)
	require.NotNil(t, e.Habitat)
	assert.Equal(t, "pond", *e.Habitat)
	assert.Nil(t, e.Address)
}

func TestEntryEqual(t *testing.T) {
	a := Entry{ID: 1, Name: "Frog", MinTemp: Ptr(10.0), CreatedAt: 5}
	b := Entry{ID: 1, Name: "Frog", MinTemp: Ptr(10.0), CreatedAt: 5}
	assert.True(t, a.Equal(b))

	b.MinTemp = Ptr(11.0)
	assert.False(t, a.Equal(b))

	b.MinTemp = nil
	assert.False(t, a.Equal(b))

	assert.True(t, EqualLists([]Entry{a}, []Entry{a}))
	assert.False(t, EqualLists([]Entry{a}, nil))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "Frog", Entry{Name: "Frog"}.Summary())
	assert.Equal(t, "Frog near Lyon", Entry{Name: "Frog", Address: Ptr("Lyon")}.Summary())
}

func TestFold(t *testing.T) {
	assert.Equal(t, Fold("frog"), Fold("FROG"))
	assert.Equal(t, Fold("élan"), Fold("ÉLAN"))
	assert.NotEqual(t, Fold("frog"), Fold("toad"))
}
