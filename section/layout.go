package section

// External flash layout constants.
const (
	// ConfigEntryLen is the size of the device configuration record
	ConfigEntryLen = 32

	// LogEntryLen is the size of one boot log record
	LogEntryLen = 16

	// RegistryEntryLen is the size of the image registry record
	RegistryEntryLen = 29

	// MagicAddr is the address of the "flash layout initialized" sentinel
	MagicAddr = 0x00011000

	// MagicSize is the size of the sentinel in bytes
	MagicSize = 4

	// MagicValue marks an initialized external flash layout
	MagicValue uint32 = 0x5AFEB007
)

// DefaultMap returns the section map of the 8 MiB external flash.
//
//	0x000000 config          single record
//	0x001000 log             array, wraps
//	0x010000 image registry  single record
//	0x011000 magic sentinel
//	0x100000 AM image A
//	0x180000 AM image B
//	0x200000 SSM image A
//	0x280000 SSM image B
func DefaultMap() Map {
	return Map{
		{
			Type:              TypeConfig,
			Start:             0x000000,
			End:               0x001000,
			EntryLen:          ConfigEntryLen,
			DefaultNumEntries: 1,
			DefaultValues:     make([]byte, ConfigEntryLen-1),
		},
		{
			Type:              TypeLog,
			Start:             0x001000,
			End:               0x010000,
			IsArray:           true,
			EntryLen:          LogEntryLen,
			DefaultNumEntries: 0,
			DefaultValues:     make([]byte, LogEntryLen-1),
		},
		{
			Type:              TypeImageRegistry,
			Start:             0x010000,
			End:               0x011000,
			EntryLen:          RegistryEntryLen,
			DefaultNumEntries: 1,
			DefaultValues:     make([]byte, RegistryEntryLen-1),
		},
		{Type: TypeAMImageA, Start: 0x100000, End: 0x180000, Raw: true},
		{Type: TypeAMImageB, Start: 0x180000, End: 0x200000, Raw: true},
		{Type: TypeSSMImageA, Start: 0x200000, End: 0x280000, Raw: true},
		{Type: TypeSSMImageB, Start: 0x280000, End: 0x300000, Raw: true},
	}
}
