// Package image describes firmware images as stored in the external-flash
// slots and certifies them.
//
// # Slot layout
//
// Each slot area starts with a 19-byte metadata header followed by the
// payload that is later copied into internal flash:
//
//	[CRC(2)][TYPE(1)][LENGTH(4)][MAJOR(4)][MINOR(4)][BUILD(4)][PAYLOAD...]
//
// CRC and LENGTH are stored byte-swapped. SwapUint16 and SwapUint32 perform
// the conversion; ParseMetadata and Metadata.Bytes apply them.
//
// # Validation
//
//	v := image.NewValidator(ext, layout, image.WithStagingSize(256))
//	if err := v.Validate(image.SlotB); err != nil {
//	    // *TypeMismatchError, *CRCMismatchError, *LengthError or a flash error
//	}
//	meta, _ := v.Certified(image.SlotB) // reused by the programmer
package image
