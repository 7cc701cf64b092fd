// Package decode turns vendor wire formats into canonical.RecordBatch
// values. numeric.go implements the bit-exact decode of PostgreSQL's
// binary NUMERIC wire format, the one piece of this module with no
// general-purpose library equivalent: it is a base-10000,
// sign-magnitude encoding specific to the PostgreSQL wire protocol, so
// it is hand-rolled against big.Int rather than borrowed from a
// dependency.
package decode

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/apache/arrow-go/v18/arrow/decimal128"

	"github.com/nullstream/sqlfed/internal/sqlfederr"
)

const (
	numericPosSign = 0x0000
	numericNegSign = 0x4000
	// numericNaN/numericPinf/numericNinf are the special sign words
	// PostgreSQL may emit; this module has no representation for them
	// and treats them as a decode error rather than silently coercing
	// to zero.
	numericNaN  = 0xC000
	numericPinf = 0xD000
	numericNinf = 0xF000
)

var base10000 = big.NewInt(10000)
var big10 = big.NewInt(10)

// DecodedNumeric is a big.Int significand paired with the scale (number
// of digits after the decimal point) it was decoded at.
type DecodedNumeric struct {
	Unscaled *big.Int
	Scale    int32
}

// DecodeNumeric parses PostgreSQL's binary NUMERIC wire format:
//
//	u16 ndigits, i16 weight, u16 sign, u16 dscale, u16 digits[ndigits]
//
// where each "digit" is a base-10000 word, weight is the base-10000
// exponent of the first digit, and dscale is the declared display
// scale (may exceed the precision implied by the digits themselves,
// requiring zero-padding).
func DecodeNumeric(raw []byte) (DecodedNumeric, error) {
	if len(raw) < 8 {
		return DecodedNumeric{}, sqlfederr.New(sqlfederr.KindDecode, "postgres", "DecodeNumeric",
			fmt.Errorf("numeric payload too short: %d bytes", len(raw)))
	}
	ndigits := binary.BigEndian.Uint16(raw[0:2])
	weight := int16(binary.BigEndian.Uint16(raw[2:4]))
	sign := binary.BigEndian.Uint16(raw[4:6])
	dscale := binary.BigEndian.Uint16(raw[6:8])

	switch sign {
	case numericPosSign, numericNegSign:
	default:
		return DecodedNumeric{}, sqlfederr.New(sqlfederr.KindDecode, "postgres", "DecodeNumeric",
			fmt.Errorf("unsupported numeric sign word 0x%04x (NaN/Infinity are not representable)", sign))
	}

	want := 8 + int(ndigits)*2
	if len(raw) < want {
		return DecodedNumeric{}, sqlfederr.New(sqlfederr.KindDecode, "postgres", "DecodeNumeric",
			fmt.Errorf("numeric payload truncated: want %d bytes, have %d", want, len(raw)))
	}

	// Expand each base-10000 digit into 4 base-10 digits and accumulate
	// into a single big.Int magnitude, most-significant digit first.
	unscaled := new(big.Int)
	for i := 0; i < int(ndigits); i++ {
		word := binary.BigEndian.Uint16(raw[8+i*2 : 10+i*2])
		if word >= 10000 {
			return DecodedNumeric{}, sqlfederr.New(sqlfederr.KindDecode, "postgres", "DecodeNumeric",
				fmt.Errorf("numeric digit %d out of range: %d", i, word))
		}
		unscaled.Mul(unscaled, base10000)
		unscaled.Add(unscaled, big.NewInt(int64(word)))
	}

	// valueScale is the scale implied by ndigits/weight alone: the
	// number of base-10 digits after the decimal point if we stopped
	// at exactly ndigits base-10000 words.
	valueScale := 4 * (int32(ndigits) - int32(weight) - 1)

	// dscale is the authoritative display scale; it can ask for more
	// trailing zero digits than the raw digits imply (e.g. "1.50"
	// encodes fewer significant digits than its dscale=2 declares).
	pad := int32(dscale) - valueScale
	if pad > 0 {
		unscaled.Mul(unscaled, new(big.Int).Exp(big10, big.NewInt(int64(pad)), nil))
	} else if pad < 0 {
		// dscale asks for fewer digits than the raw digits carry;
		// truncate the extra trailing digits.
		unscaled.Div(unscaled, new(big.Int).Exp(big10, big.NewInt(int64(-pad)), nil))
	}

	if sign == numericNegSign && unscaled.Sign() != 0 {
		unscaled.Neg(unscaled)
	}

	return DecodedNumeric{Unscaled: unscaled, Scale: int32(dscale)}, nil
}

// maxDecimal128 is the largest magnitude representable in a signed
// 128-bit integer: 2^127 - 1.
var maxDecimal128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
var minDecimal128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

// ToDecimal128 converts a DecodedNumeric's big.Int significand into an
// arrow decimal128.Num, failing with KindIntegerOverflow rather than
// silently truncating when the value does not fit in 128 bits.
func ToDecimal128(d DecodedNumeric) (decimal128.Num, error) {
	if d.Unscaled.Cmp(maxDecimal128) > 0 || d.Unscaled.Cmp(minDecimal128) < 0 {
		return decimal128.Num{}, sqlfederr.New(sqlfederr.KindIntegerOverflow, "postgres", "ToDecimal128",
			fmt.Errorf("numeric value does not fit in decimal128: %s", d.Unscaled.String()))
	}

	neg := d.Unscaled.Sign() < 0
	mag := new(big.Int).Abs(d.Unscaled)

	var hi uint64
	var lo uint64
	bytesBE := mag.Bytes()
	// Left-pad to 16 bytes then split into hi/lo big-endian halves.
	var buf [16]byte
	copy(buf[16-len(bytesBE):], bytesBE)
	hi = binary.BigEndian.Uint64(buf[0:8])
	lo = binary.BigEndian.Uint64(buf[8:16])

	num := decimal128.New(int64(hi), lo)
	if neg {
		num = num.Negate()
	}
	return num, nil
}
