package decode

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeNumeric builds a raw PostgreSQL binary NUMERIC payload from its
// header fields and base-10000 digit words, mirroring what pgx hands
// back from Rows.RawValues() for a numeric column.
func encodeNumeric(ndigits uint16, weight int16, sign, dscale uint16, digits []uint16) []byte {
	buf := make([]byte, 8+len(digits)*2)
	binary.BigEndian.PutUint16(buf[0:2], ndigits)
	binary.BigEndian.PutUint16(buf[2:4], uint16(weight))
	binary.BigEndian.PutUint16(buf[4:6], sign)
	binary.BigEndian.PutUint16(buf[6:8], dscale)
	for i, d := range digits {
		binary.BigEndian.PutUint16(buf[8+i*2:10+i*2], d)
	}
	return buf
}

func TestDecodeNumeric_PositiveWithPadding(t *testing.T) {
	raw := encodeNumeric(5, 3, numericPosSign, 5, []uint16{9345, 1293, 2903, 1293, 932})

	got, err := DecodeNumeric(raw)
	require.NoError(t, err)

	assert.Equal(t, int32(5), got.Scale)
	assert.Equal(t, "934512932903129309320", got.Unscaled.String())
}

func TestDecodeNumeric_NegativeWithPadding(t *testing.T) {
	raw := encodeNumeric(5, 3, numericNegSign, 5, []uint16{9345, 1293, 2903, 1293, 932})

	got, err := DecodeNumeric(raw)
	require.NoError(t, err)

	assert.Equal(t, int32(5), got.Scale)
	assert.Equal(t, "-934512932903129309320", got.Unscaled.String())
}

func TestDecodeNumeric_ZeroHasNoSign(t *testing.T) {
	raw := encodeNumeric(0, 0, numericNegSign, 0, nil)

	got, err := DecodeNumeric(raw)
	require.NoError(t, err)

	assert.Equal(t, 0, got.Unscaled.Sign())
}

func TestDecodeNumeric_TruncatesExcessRawDigits(t *testing.T) {
	// dscale smaller than the raw digits imply: value_scale = 4, dscale = 2.
	raw := encodeNumeric(1, -1, numericPosSign, 2, []uint16{1234})

	got, err := DecodeNumeric(raw)
	require.NoError(t, err)

	assert.Equal(t, int32(2), got.Scale)
	assert.Equal(t, "12", got.Unscaled.String())
}

func TestDecodeNumeric_RejectsNaN(t *testing.T) {
	raw := encodeNumeric(0, 0, numericNaN, 0, nil)

	_, err := DecodeNumeric(raw)
	assert.Error(t, err)
}

func TestDecodeNumeric_RejectsTruncatedPayload(t *testing.T) {
	raw := encodeNumeric(2, 0, numericPosSign, 0, []uint16{1, 2})
	_, err := DecodeNumeric(raw[:9])
	assert.Error(t, err)
}

func TestToDecimal128_RoundTripsMagnitude(t *testing.T) {
	d := DecodedNumeric{Unscaled: big.NewInt(934512932903129309), Scale: 5}
	num, err := ToDecimal128(d)
	require.NoError(t, err)
	assert.Equal(t, "934512932903129309", num.BigInt().String())
}

func TestToDecimal128_OverflowRejected(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	_, err := ToDecimal128(DecodedNumeric{Unscaled: huge, Scale: 0})
	assert.Error(t, err)
}
