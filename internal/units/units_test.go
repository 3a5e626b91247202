package units

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Linear(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{"m", "m"},
		{"M", "m"},
		{"meter", "m"},
		{"Meters", "m"},
		{"metres", "m"},
		{"km", "km"},
		{"kilometers", "km"},
		{"ft", "ft"},
		{"International Feet", "ft"},
		{"foot", "us-ft"},
		{"feet", "us-ft"},
		{"mile", "us-mi"},
		{"Miles", "us-mi"},
		{"us-ft", "us-ft"},
		{"U.S. Surveyor's Foot", "us-ft"},
		{"US survey feet", "us-ft"},
		{"inches", "us-in"},
		{"International Inches", "in"},
		{"ind-ch", "ind-ch"},
		{"Indian Yards", "ind-yd"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			u, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.code, u.Code)
			assert.Equal(t, Linear, u.Dimension)
		})
	}
}

func TestParse_Areal(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{"square meters", "m"},
		{"sq m", "m"},
		{"Square Miles", "us-mi"},
		{"sq ft", "ft"},
		{"square  kilometer", "km"},
		{"acre", Acre},
		{"Acres", Acre},
		{"ac", Acre},
		{"hectare", Hectare},
		{"HECTARES", Hectare},
		{"ha", Hectare},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			u, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.code, u.Code)
			assert.Equal(t, Areal, u.Dimension)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "  ", "parsec", "square", "square parsec", "sq acre", "cubic meters"} {
		_, err := Parse(s)
		require.Error(t, err, s)
		assert.True(t, eris.Is(err, ErrInvalidUnit), s)
	}
}

func TestUnit_Names(t *testing.T) {
	assert.Equal(t, "Meter", MustParse("m").Name())
	assert.Equal(t, "Meters", MustParse("m").Plural())
	assert.Equal(t, "U.S. Surveyor's Feet", MustParse("us-ft").Plural())
	assert.Equal(t, "International Inches", MustParse("in").Plural())
	assert.Equal(t, "Square International Statute Mile", MustParse("sq mi").Name())
	assert.Equal(t, "Acres", MustParse("acre").Plural())
	assert.Equal(t, "Hectare", MustParse("ha").Name())
	assert.Equal(t, "sq m", MustParse("square meters").String())
	assert.Equal(t, "ac", MustParse("acres").String())
}

func TestConvert_Known(t *testing.T) {
	f, err := Convert("km", "m")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, f)

	f, err = Convert("mile", "meters")
	require.NoError(t, err)
	assert.InDelta(t, 1609.3472186944373, f, 1e-9)

	f, err = Convert("hectare", "square meters")
	require.NoError(t, err)
	assert.InDelta(t, 10000.0, f, 1e-9)

	f, err = Convert("acre", "sq us-ft")
	require.NoError(t, err)
	assert.InDelta(t, 43560.0, f, 1e-6)

	f, err = Convert("square kilometers", "hectares")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, f, 1e-9)
}

func TestConvert_SelfIsExactlyOne(t *testing.T) {
	for _, code := range Codes() {
		f, err := Convert(code, code)
		require.NoError(t, err)
		assert.Equal(t, 1.0, f, code)

		f, err = Convert("sq "+code, "square "+code)
		require.NoError(t, err)
		assert.Equal(t, 1.0, f, code)
	}
	f, err := Convert("acre", "acres")
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)
}

func TestConvert_RoundTrip(t *testing.T) {
	codes := Codes()
	for _, a := range codes {
		for _, b := range codes {
			ab, err := Convert(a, b)
			require.NoError(t, err)
			ba, err := Convert(b, a)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, ab*ba, 1e-12, "%s <-> %s", a, b)

			ab, err = Convert("sq "+a, "sq "+b)
			require.NoError(t, err)
			ba, err = Convert("sq "+b, "sq "+a)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, ab*ba, 1e-12, "sq %s <-> sq %s", a, b)
		}
	}
}

func TestConvert_DimensionMismatch(t *testing.T) {
	pairs := [][2]string{
		{"meters", "hectares"},
		{"acre", "ft"},
		{"square meters", "meters"},
	}
	for _, p := range pairs {
		_, err := Convert(p[0], p[1])
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrIncompatibleDimensions), "%v", p)
	}
}

func TestConvert_InvalidUnit(t *testing.T) {
	_, err := Convert("furlong", "m")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidUnit))
}

func TestParseQuantity(t *testing.T) {
	v, u, err := ParseQuantity("1 mile")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
	assert.Equal(t, "us-mi", u.Code)

	v, u, err = ParseQuantity(" 2.5 square kilometers ")
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)
	assert.Equal(t, Areal, u.Dimension)

	_, _, err = ParseQuantity("mile")
	require.Error(t, err)

	_, _, err = ParseQuantity("one mile")
	require.Error(t, err)

	_, _, err = ParseQuantity("1 parsec")
	assert.True(t, eris.Is(err, ErrInvalidUnit))
}

func TestSquared(t *testing.T) {
	sq, err := MustParse("ft").Squared()
	require.NoError(t, err)
	assert.Equal(t, Unit{Code: "ft", Dimension: Areal}, sq)

	_, err = MustParse("acre").Squared()
	assert.True(t, eris.Is(err, ErrIncompatibleDimensions))
}
