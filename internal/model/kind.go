package model

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrUnsupportedKind is returned for an output kind outside the supported set.
var ErrUnsupportedKind = eris.New("model: unsupported output kind")

// Kind is the numeric type a result is cast to before it is returned.
type Kind string

const (
	KindInt8    Kind = "int8"
	KindInt16   Kind = "int16"
	KindInt32   Kind = "int32"
	KindInt64   Kind = "int64"
	KindUint8   Kind = "uint8"
	KindUint16  Kind = "uint16"
	KindUint32  Kind = "uint32"
	KindUint64  Kind = "uint64"
	KindFloat32 Kind = "float32"
	KindFloat64 Kind = "float64"
)

var kinds = []Kind{
	KindInt8, KindInt16, KindInt32, KindInt64,
	KindUint8, KindUint16, KindUint32, KindUint64,
	KindFloat32, KindFloat64,
}

// Kinds lists every supported kind.
func Kinds() []Kind { return append([]Kind(nil), kinds...) }

// ParseKind validates a kind name. An empty name means float64.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return KindFloat64, nil
	}
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// Validate fails with ErrUnsupportedKind for unknown kinds.
func (k Kind) Validate() error {
	for _, known := range kinds {
		if k == known {
			return nil
		}
	}
	return eris.Wrapf(ErrUnsupportedKind, "model: %q", string(k))
}

// Bits returns the storage width.
func (k Kind) Bits() int {
	switch k {
	case KindInt8, KindUint8:
		return 8
	case KindInt16, KindUint16:
		return 16
	case KindInt32, KindUint32, KindFloat32:
		return 32
	default:
		return 64
	}
}

// IsFloat reports whether k is a floating-point kind.
func (k Kind) IsFloat() bool { return k == KindFloat32 || k == KindFloat64 }

// IsSigned reports whether k holds negative values.
func (k Kind) IsSigned() bool { return !strings.HasPrefix(string(k), "uint") }

// Range returns the smallest and largest representable values.
func (k Kind) Range() (float64, float64) {
	switch k {
	case KindInt8:
		return math.MinInt8, math.MaxInt8
	case KindInt16:
		return math.MinInt16, math.MaxInt16
	case KindInt32:
		return math.MinInt32, math.MaxInt32
	case KindInt64:
		return math.MinInt64, math.MaxInt64
	case KindUint8:
		return 0, math.MaxUint8
	case KindUint16:
		return 0, math.MaxUint16
	case KindUint32:
		return 0, math.MaxUint32
	case KindUint64:
		return 0, math.MaxUint64
	case KindFloat32:
		return -math.MaxFloat32, math.MaxFloat32
	default:
		return -math.MaxFloat64, math.MaxFloat64
	}
}

// Cast converts v to the kind's value set. Integer kinds truncate toward zero
// and saturate at their range; NaN stays NaN as the missing marker.
func (k Kind) Cast(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	switch k {
	case KindFloat64:
		return v
	case KindFloat32:
		return float64(float32(v))
	}
	lo, hi := k.Range()
	return math.Max(lo, math.Min(hi, math.Trunc(v)))
}
