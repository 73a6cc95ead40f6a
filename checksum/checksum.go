package checksum

// Checksum algorithm constants.
const (
	// CRC16Polynomial is the CRC-16/CCITT-FALSE polynomial (0x1021)
	CRC16Polynomial = 0x1021

	// CRC16InitialValue is the CRC-16/CCITT-FALSE initial value
	CRC16InitialValue = 0xFFFF

	// crc16HighBitMask is the high bit mask for the bitwise reference update
	crc16HighBitMask = 0x8000

	// bitsPerByte is the number of bits per byte
	bitsPerByte = 8
)

// CRC16 is a running CRC-16/CCITT-FALSE accumulator.
//
// Parameters:
//   - Polynomial: CRC16Polynomial
//   - Initial value: CRC16InitialValue
//   - No input or output reflection
//   - No final XOR
//
// The zero value is not ready for use; start from NewCRC16.
type CRC16 uint16

// NewCRC16 returns an accumulator holding the initial value.
func NewCRC16() CRC16 {
	return CRC16(CRC16InitialValue)
}

// Update folds data into the accumulator and returns the new value.
//
// Each byte is processed with the nibble-folding form of the 0x1021 polynomial,
// which produces the same result as the bit-at-a-time division without a table.
func (c CRC16) Update(data []byte) CRC16 {
	crc := uint16(c)
	for _, b := range data {
		x := byte(crc>>8) ^ b
		x ^= x >> 4
		crc = (crc << 8) ^ uint16(x)<<12 ^ uint16(x)<<5 ^ uint16(x)
	}
	return CRC16(crc)
}

// Sum16 returns the current CRC value.
func (c CRC16) Sum16() uint16 {
	return uint16(c)
}

// CalculateCRC16 computes the CRC-16/CCITT-FALSE of data in one call.
func CalculateCRC16(data []byte) uint16 {
	return NewCRC16().Update(data).Sum16()
}

// calculateCRC16Bitwise is the bit-at-a-time definition of the same CRC.
// Kept for cross-checking the nibble-folding update in tests.
func calculateCRC16Bitwise(data []byte) uint16 {
	crc := uint16(CRC16InitialValue)

	for _, b := range data {
		crc ^= uint16(b) << bitsPerByte
		for i := 0; i < bitsPerByte; i++ {
			if crc&crc16HighBitMask != 0 {
				crc = (crc << 1) ^ CRC16Polynomial
			} else {
				crc = crc << 1
			}
		}
	}

	return crc
}

// Sum8 computes the 8-bit two's-complement checksum of data.
// Appending the result to data makes the byte sum of the whole record zero.
func Sum8(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	// Return 2's complement: invert and add 1
	return ^sum + 1
}

// VerifySum8 reports whether record, whose last byte is its Sum8 checksum,
// is intact.
func VerifySum8(record []byte) bool {
	if len(record) == 0 {
		return false
	}
	var sum byte
	for _, b := range record {
		sum += b
	}
	return sum == 0
}
