package features

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/qualifying"
	"github.com/f1predict/f1predict/internal/season"
	"github.com/f1predict/f1predict/internal/weather"
)

func testEncoding() *Encoding {
	return NewEncoding("test", []string{"Lando_Norris", "Max_Verstappen", "Lando_Norris"}, []string{"McLaren", "Red_Bull"})
}

func TestNewEncoding_ColumnOrder(t *testing.T) {
	t.Parallel()

	enc := testEncoding()
	require.NoError(t, enc.Validate())

	want := append(append([]string{}, DriverNumeric...),
		"Driver_Lando_Norris", "Driver_Max_Verstappen", "Team_McLaren", "Team_Red_Bull")
	assert.Equal(t, want, enc.DriverColumns)
	assert.Equal(t, append(append([]string{}, ConstructorNumeric...), "Team_McLaren", "Team_Red_Bull"), enc.ConstructorColumns)
	assert.Equal(t, DefaultValues, enc.Defaults)
}

func TestEncoding_Validate(t *testing.T) {
	t.Parallel()

	enc := testEncoding()
	enc.DriverColumns = append(enc.DriverColumns, ColLapTime)
	err := enc.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))

	enc = testEncoding()
	enc.ConstructorColumns = enc.ConstructorColumns[1:]
	assert.Error(t, enc.Validate())

	assert.Error(t, (&Encoding{}).Validate())
}

func TestEncoding_SaveLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "models", EncodingFile)
	enc := testEncoding()
	require.NoError(t, enc.Save(path))

	loaded, err := LoadEncoding(path)
	require.NoError(t, err)
	assert.Equal(t, enc, loaded)

	_, err = LoadEncoding(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
}

func TestRowVector(t *testing.T) {
	t.Parallel()

	row := Row{Values: map[string]float64{"a": 1, "c": 3}}
	assert.Equal(t, []float64{1, 0, 3}, row.Vector([]string{"a", "b", "c"}))
}

func TestRowValidate(t *testing.T) {
	t.Parallel()

	valid := map[string]float64{ColLapTime: 80, ColQualifyingPosition: 3}
	tests := []struct {
		name    string
		values  map[string]float64
		wantErr bool
	}{
		{"valid", valid, false},
		{"nan", map[string]float64{ColLapTime: 80, ColAirTemp: math.NaN()}, true},
		{"inf", map[string]float64{ColLapTime: math.Inf(1)}, true},
		{"zero lap time", map[string]float64{ColLapTime: 0}, true},
		{"grid zero", map[string]float64{ColLapTime: 80, ColQualifyingPosition: 0}, true},
		{"grid too high", map[string]float64{ColLapTime: 80, ColQualifyingPosition: 31}, true},
		{"fractional grid", map[string]float64{ColLapTime: 80, ColQualifyingPosition: 2.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Row{Driver: "X", Values: tt.values}.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedRow)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestBuilder_DriverRows(t *testing.T) {
	t.Parallel()

	catalog := season.Default()
	b := NewBuilder(testEncoding(), catalog)
	monaco, ok := catalog.TrackByName("Monaco Grand Prix")
	require.True(t, ok)

	q := qualifying.Result{Positions: map[string]float64{"Lando Norris": 1}}
	w := weather.Reading{AirTemp: 21, TrackTemp: 33, Humidity: 55}
	rows := b.DriverRows(monaco, w, q, map[string]float64{"Lando Norris": 2.4})
	require.Len(t, rows, len(catalog.Drivers()))

	byDriver := map[string]Row{}
	for _, r := range rows {
		byDriver[r.Driver] = r
		require.NoError(t, r.Validate())
	}

	nor := byDriver["Lando Norris"]
	assert.Equal(t, "McLaren", nor.Team)
	assert.InDelta(t, 72.0, nor.Values[ColLapTime], 0)
	assert.InDelta(t, 10.0, nor.Values[ColTyreLife], 0)
	assert.InDelta(t, 50.0, nor.Values[ColLapNumber], 0)
	assert.InDelta(t, 21.0, nor.Values[ColAirTemp], 0)
	assert.InDelta(t, 1.0, nor.Values[ColQualifyingPosition], 0)
	assert.InDelta(t, 2.4, nor.Values[ColRecentForm], 0)
	assert.InDelta(t, 1.0, nor.Values["Driver_Lando_Norris"], 0)
	assert.InDelta(t, 1.0, nor.Values["Team_McLaren"], 0)

	// Unknown categories are neutral.
	lec := byDriver["Charles Leclerc"]
	assert.InDelta(t, qualifying.DefaultPosition, lec.Values[ColQualifyingPosition], 0)
	assert.InDelta(t, 10.0, lec.Values[ColRecentForm], 0)
	vec := lec.Vector(b.Encoding().DriverColumns)
	for i, col := range b.Encoding().DriverColumns[len(DriverNumeric):] {
		assert.Zero(t, vec[len(DriverNumeric)+i], col)
	}
}

func TestBuilder_ConstructorRows(t *testing.T) {
	t.Parallel()

	catalog := season.Default()
	b := NewBuilder(testEncoding(), catalog)
	track, ok := catalog.TrackByKey("monza")
	require.True(t, ok)

	rows := b.ConstructorRows(track, weather.Reading{AirTemp: 25, TrackTemp: 30, Humidity: 50})
	require.Len(t, rows, len(catalog.Teams()))
	for _, r := range rows {
		assert.Empty(t, r.Driver)
		assert.InDelta(t, 81.0, r.Values[ColLapTime], 0)
		if r.Team == "Red_Bull" {
			assert.InDelta(t, 1.0, r.Values["Team_Red_Bull"], 0)
		}
	}
}
