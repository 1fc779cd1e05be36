package wire

import (
	"errors"
	"math/big"
	"strings"
)

// MaxDecimalScale is the largest number of fractional digits a Decimal holds.
const MaxDecimalScale = 28

var (
	ErrDecimalSyntax   = errors.New("decimal: invalid syntax")
	ErrDecimalOverflow = errors.New("decimal: magnitude exceeds 96 bits")
	ErrDecimalScale    = errors.New("decimal: scale out of range")
)

// Decimal is a fixed 128-bit decimal: a 96-bit unsigned magnitude scaled by
// 10^-Scale with a separate sign. It packs into four 32-bit words: low, mid,
// high magnitude and a flags word holding the scale (bits 16-23) and sign (bit 31).
type Decimal struct {
	Lo    uint64 // low 64 bits of the magnitude
	Hi    uint32 // high 32 bits of the magnitude
	Scale uint8
	Neg   bool
}

// DecimalFromInt64 returns v with scale 0.
func DecimalFromInt64(v int64) Decimal {
	d := Decimal{Neg: v < 0}
	if v < 0 {
		d.Lo = uint64(-(v + 1)) + 1
	} else {
		d.Lo = uint64(v)
	}
	return d
}

// NewDecimal builds a Decimal from a signed unscaled value.
func NewDecimal(unscaled *big.Int, scale uint8) (Decimal, error) {
	if scale > MaxDecimalScale {
		return Decimal{}, ErrDecimalScale
	}
	mag := new(big.Int).Abs(unscaled)
	if mag.BitLen() > 96 {
		return Decimal{}, ErrDecimalOverflow
	}
	lo := new(big.Int).And(mag, new(big.Int).SetUint64(^uint64(0)))
	hi := new(big.Int).Rsh(mag, 64)
	return Decimal{
		Lo:    lo.Uint64(),
		Hi:    uint32(hi.Uint64()),
		Scale: scale,
		Neg:   unscaled.Sign() < 0,
	}, nil
}

// ParseDecimal parses an optionally signed decimal such as "-12.50".
// The number of fractional digits becomes the scale.
func ParseDecimal(s string) (Decimal, error) {
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	intPart, fracPart, hasPoint := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return Decimal{}, ErrDecimalSyntax
	}
	if hasPoint && fracPart == "" {
		return Decimal{}, ErrDecimalSyntax
	}
	digits := intPart + fracPart
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Decimal{}, ErrDecimalSyntax
		}
	}
	if len(fracPart) > MaxDecimalScale {
		return Decimal{}, ErrDecimalScale
	}
	mag, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal{}, ErrDecimalSyntax
	}
	d, err := NewDecimal(mag, uint8(len(fracPart)))
	if err != nil {
		return Decimal{}, err
	}
	d.Neg = neg
	return d, nil
}

// Unscaled returns the signed unscaled value.
func (d Decimal) Unscaled() *big.Int {
	v := new(big.Int).SetUint64(uint64(d.Hi))
	v.Lsh(v, 64)
	v.Or(v, new(big.Int).SetUint64(d.Lo))
	if d.Neg {
		v.Neg(v)
	}
	return v
}

// IsZero reports whether the magnitude is zero, regardless of sign and scale.
func (d Decimal) IsZero() bool {
	return d.Lo == 0 && d.Hi == 0
}

// String formats d with exactly Scale fractional digits.
func (d Decimal) String() string {
	mag := new(big.Int).SetUint64(uint64(d.Hi))
	mag.Lsh(mag, 64)
	mag.Or(mag, new(big.Int).SetUint64(d.Lo))
	digits := mag.String()
	scale := int(d.Scale)
	if len(digits) <= scale {
		digits = strings.Repeat("0", scale-len(digits)+1) + digits
	}

	var b strings.Builder
	if d.Neg {
		b.WriteByte('-')
	}
	if scale == 0 {
		b.WriteString(digits)
		return b.String()
	}
	b.WriteString(digits[:len(digits)-scale])
	b.WriteByte('.')
	b.WriteString(digits[len(digits)-scale:])
	return b.String()
}

func (d Decimal) words() [4]uint32 {
	flags := uint32(d.Scale) << 16
	if d.Neg {
		flags |= 1 << 31
	}
	return [4]uint32{uint32(d.Lo), uint32(d.Lo >> 32), d.Hi, flags}
}

func decimalFromWords(w [4]uint32) (Decimal, error) {
	flags := w[3]
	if flags&0x7f00ffff != 0 {
		return Decimal{}, ErrDecimalSyntax
	}
	scale := uint8(flags >> 16)
	if scale > MaxDecimalScale {
		return Decimal{}, ErrDecimalScale
	}
	return Decimal{
		Lo:    uint64(w[0]) | uint64(w[1])<<32,
		Hi:    w[2],
		Scale: scale,
		Neg:   flags&(1<<31) != 0,
	}, nil
}
