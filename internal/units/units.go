// Package units parses linear and areal unit names and computes conversion
// factors between them.
package units

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
)

// Sentinel errors returned by Parse and Convert.
var (
	ErrInvalidUnit            = eris.New("units: invalid unit")
	ErrIncompatibleDimensions = eris.New("units: incompatible dimensions")
)

// Dimension tells whether a unit measures length or area.
type Dimension int

// Supported dimensions.
const (
	Linear Dimension = 1
	Areal  Dimension = 2
)

// Codes of the areal-only units.
const (
	Acre    = "ac"
	Hectare = "ha"
)

type linearDef struct {
	name   string
	meters float64
}

// linearUnits maps canonical codes (proj4 "+units=" values) to their full name
// and length in meters.
var linearUnits = map[string]linearDef{
	"km":     {"Kilometer", 1000.0},
	"m":      {"Meter", 1.0},
	"dm":     {"Decimeter", 0.1},
	"cm":     {"Centimeter", 0.01},
	"mm":     {"Millimeter", 0.001},
	"kmi":    {"International Nautical Mile", 1852.0},
	"in":     {"International Inch", 0.0254},
	"ft":     {"International Foot", 0.3048},
	"yd":     {"International Yard", 0.9144},
	"mi":     {"International Statute Mile", 1609.344},
	"fath":   {"International Fathom", 1.8288},
	"ch":     {"International Chain", 20.1168},
	"link":   {"International Link", 0.201168},
	"us-in":  {"U.S. Surveyor's Inch", 0.0254000508001016},
	"us-ft":  {"U.S. Surveyor's Foot", 0.3048006096012192},
	"us-yd":  {"U.S. Surveyor's Yard", 0.9144018288036576},
	"us-ch":  {"U.S. Surveyor's Chain", 20.116840233680467},
	"us-mi":  {"U.S. Surveyor's Statute Mile", 1609.3472186944373},
	"ind-yd": {"Indian Yard", 0.91439523},
	"ind-ft": {"Indian Foot", 0.30479841},
	"ind-ch": {"Indian Chain", 20.11669506},
}

// aliases are informal names that resolve to a canonical code. Bare imperial
// names resolve to the US survey variants.
var aliases = map[string]string{
	"metre":           "m",
	"kilometre":       "km",
	"mile":            "us-mi",
	"foot":            "us-ft",
	"yard":            "us-yd",
	"inch":            "us-in",
	"chain":           "us-ch",
	"us survey foot":  "us-ft",
	"us survey mile":  "us-mi",
	"us survey yard":  "us-yd",
	"us survey inch":  "us-in",
	"us survey chain": "us-ch",
	"nautical mile":   "kmi",
}

var arealNames = map[string]string{
	"acre":    Acre,
	"ac":      Acre,
	"hectare": Hectare,
	"ha":      Hectare,
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// nameIndex resolves folded singular and plural names to canonical codes.
var nameIndex = buildNameIndex()

func buildNameIndex() map[string]string {
	idx := make(map[string]string, len(linearUnits)*2+len(aliases)*2)
	for code, def := range linearUnits {
		idx[fold(def.name)] = code
		idx[fold(pluralize(def.name))] = code
	}
	for name, code := range aliases {
		idx[name] = code
		idx[fold(pluralize(name))] = code
	}
	return idx
}

// pluralize converts a unit name to its plural form.
func pluralize(name string) string {
	switch {
	case strings.HasSuffix(name, "Inch"), strings.HasSuffix(name, "inch"):
		return name + "es"
	case strings.HasSuffix(name, "Foot"):
		return strings.TrimSuffix(name, "Foot") + "Feet"
	case strings.HasSuffix(name, "foot"):
		return strings.TrimSuffix(name, "foot") + "feet"
	default:
		return name + "s"
	}
}

// Unit is a parsed measurement unit. Code is the canonical short code; for
// areal units derived from a linear unit, Code is the linear root's code.
type Unit struct {
	Code      string
	Dimension Dimension
}

// Parse normalizes a unit string. Names are matched case-insensitively in
// singular or plural form; areal units are written "square <unit>",
// "sq <unit>", or as acre/hectare.
func Parse(s string) (Unit, error) {
	raw := strings.Join(strings.Fields(s), " ")
	if raw == "" {
		return Unit{}, eris.Wrap(ErrInvalidUnit, "units: empty unit")
	}
	if code, ok := parseLinear(raw); ok {
		return Unit{Code: code, Dimension: Linear}, nil
	}
	if u, ok := parseAreal(raw); ok {
		return u, nil
	}
	return Unit{}, eris.Wrapf(ErrInvalidUnit, "units: %q is not a valid unit", s)
}

// MustParse is Parse for package-level constants; it panics on error.
func MustParse(s string) Unit {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

func parseLinear(s string) (string, bool) {
	if _, ok := linearUnits[strings.ToLower(s)]; ok {
		return strings.ToLower(s), true
	}
	code, ok := nameIndex[fold(s)]
	return code, ok
}

func parseAreal(s string) (Unit, bool) {
	if prefix, rest, ok := strings.Cut(s, " "); ok {
		switch fold(prefix) {
		case "square", "sq":
			if code, ok := parseLinear(rest); ok {
				return Unit{Code: code, Dimension: Areal}, true
			}
			return Unit{}, false
		}
	}
	name := fold(s)
	if code, ok := arealNames[name]; ok {
		return Unit{Code: code, Dimension: Areal}, true
	}
	if code, ok := arealNames[strings.TrimSuffix(name, "s")]; ok {
		return Unit{Code: code, Dimension: Areal}, true
	}
	return Unit{}, false
}

// Name returns the unit's full name, e.g. "Square International Foot".
func (u Unit) Name() string {
	if u.Dimension == Areal {
		switch u.Code {
		case Acre:
			return "Acre"
		case Hectare:
			return "Hectare"
		}
		return "Square " + linearUnits[u.Code].name
	}
	return linearUnits[u.Code].name
}

// Plural returns the plural of Name.
func (u Unit) Plural() string {
	return pluralize(u.Name())
}

// String implements fmt.Stringer.
func (u Unit) String() string {
	if u.Dimension == Areal && u.Code != Acre && u.Code != Hectare {
		return "sq " + u.Code
	}
	return u.Code
}

// BaseFactor is the size of one unit in meters or square meters.
func (u Unit) BaseFactor() float64 {
	if u.Dimension == Linear {
		return linearUnits[u.Code].meters
	}
	switch u.Code {
	case Acre:
		f := linearUnits["us-ft"].meters
		return f * f * 43560
	case Hectare:
		return 10000
	}
	f := linearUnits[u.Code].meters
	return f * f
}

// Squared returns the areal unit built on a linear unit.
func (u Unit) Squared() (Unit, error) {
	if u.Dimension != Linear {
		return Unit{}, eris.Wrapf(ErrIncompatibleDimensions, "units: %s is already areal", u.Name())
	}
	return Unit{Code: u.Code, Dimension: Areal}, nil
}

// FactorTo returns f such that value_in_other = value_in_u * f.
func (u Unit) FactorTo(other Unit) (float64, error) {
	if u.Dimension != other.Dimension {
		return 0, eris.Wrapf(ErrIncompatibleDimensions, "units: from %s to %s", u.Name(), other.Name())
	}
	if u == other {
		return 1.0, nil
	}
	return u.BaseFactor() / other.BaseFactor(), nil
}

// Convert parses both unit strings and returns the factor from one to the other.
func Convert(from, to string) (float64, error) {
	fu, err := Parse(from)
	if err != nil {
		return 0, err
	}
	tu, err := Parse(to)
	if err != nil {
		return 0, err
	}
	return fu.FactorTo(tu)
}

// ParseQuantity splits a "<number> <unit>" string such as "1 mile" or
// "2.5 square kilometers".
func ParseQuantity(s string) (float64, Unit, error) {
	num, rest, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return 0, Unit{}, eris.Errorf("units: quantity %q must be \"<number> <unit>\"", s)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, Unit{}, eris.Wrapf(err, "units: parse quantity %q", s)
	}
	u, err := Parse(rest)
	if err != nil {
		return 0, Unit{}, err
	}
	return v, u, nil
}

// Codes returns all canonical linear unit codes.
func Codes() []string {
	codes := make([]string, 0, len(linearUnits))
	for c := range linearUnits {
		codes = append(codes, c)
	}
	return codes
}
