// Package checksum implements the two integrity checks used on flash:
// CRC-16/CCITT-FALSE for firmware images and the 8-bit two's-complement byte
// sum used for registry entries and section headers.
package checksum
