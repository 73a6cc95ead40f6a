// Package config describes the simulated device with a YAML profile.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/moffa90/go-dualboot/flash"
	"github.com/moffa90/go-dualboot/image"
	"github.com/moffa90/go-dualboot/programmer"
	"github.com/moffa90/go-dualboot/section"
	"gopkg.in/yaml.v3"
)

// Profile is the device profile read by the simulator.
type Profile struct {
	// Internal describes the internal flash.
	Internal Internal `yaml:"internal"`
	// External describes the external flash.
	External External `yaml:"external"`
	// Boot tunes the boot components.
	Boot Boot `yaml:"boot"`
	// StateDir holds the simulated flash and retained RAM files.
	StateDir string `yaml:"state_dir"`
}

// Internal describes the internal flash and the areas inside it.
type Internal struct {
	Base         uint32 `yaml:"base"`
	PageSize     uint32 `yaml:"page_size"`
	PagesPerBank uint32 `yaml:"pages_per_bank"`
	Banks        uint32 `yaml:"banks"`

	// RegionStart and RegionSize place the application region.
	RegionStart uint32 `yaml:"region_start"`
	RegionSize  uint32 `yaml:"region_size"`

	// FactoryAddr and FactorySize place the factory package. A zero size
	// disables the factory bootstrap.
	FactoryAddr uint32 `yaml:"factory_addr"`
	FactorySize uint32 `yaml:"factory_size"`
}

// External describes the external flash.
type External struct {
	Size uint32 `yaml:"size"`
}

// Boot tunes the boot components.
type Boot struct {
	StagingSize int `yaml:"staging_size"`
	MaxAttempts int `yaml:"max_attempts"`
}

// Geometry returns the internal flash geometry.
func (p Profile) Geometry() flash.Geometry {
	return flash.Geometry{
		Base:         p.Internal.Base,
		PageSize:     p.Internal.PageSize,
		PagesPerBank: p.Internal.PagesPerBank,
		Banks:        p.Internal.Banks,
	}
}

// Region returns the internal application region.
func (p Profile) Region() flash.Region {
	return flash.Region{Start: p.Internal.RegionStart, Size: p.Internal.RegionSize}
}

// Factory returns the internal area of the factory package.
func (p Profile) Factory() image.Area {
	return image.Area{Base: p.Internal.FactoryAddr, Size: p.Internal.FactorySize}
}

// Default returns the built-in profile: 512 KiB of internal flash in two
// banks with a 384 KiB application region across them, and 8 MiB of
// external flash.
func Default() Profile {
	return Profile{
		Internal: Internal{
			Base:         0x08000000,
			PageSize:     0x800,
			PagesPerBank: 128,
			Banks:        2,
			RegionStart:  0x08020000,
			RegionSize:   0x60000,
			FactoryAddr:  0x08020000,
			FactorySize:  0x60000,
		},
		External: External{Size: 0x800000},
		Boot: Boot{
			StagingSize: image.DefaultStagingSize,
			MaxAttempts: programmer.DefaultMaxAttempts,
		},
		StateDir: ".bootsim",
	}
}

// Load reads the profile at path.
func Load(path string) (Profile, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return Parse(bs)
}

// Parse decodes a YAML profile over Default. Fields the document omits keep
// their default values; explicit zeros of sizes and tunables fall back to
// the defaults too.
func Parse(bs []byte) (Profile, error) {
	p := Default()
	if err := yaml.Unmarshal(bs, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (p *Profile) applyDefaults() {
	d := Default()
	if p.External.Size == 0 {
		p.External.Size = d.External.Size
	}
	if p.Boot.StagingSize == 0 {
		p.Boot.StagingSize = d.Boot.StagingSize
	}
	if p.Boot.MaxAttempts == 0 {
		p.Boot.MaxAttempts = d.Boot.MaxAttempts
	}
	if p.StateDir == "" {
		p.StateDir = d.StateDir
	}
}

// Validate checks that the profile describes a usable device.
func (p Profile) Validate() error {
	g := p.Geometry()
	switch {
	case g.PageSize == 0 || g.PagesPerBank == 0 || g.Banks == 0:
		return errors.New("internal geometry: page_size, pages_per_bank and banks must be non-zero")
	case g.PageSize%flash.ProgramWidth != 0:
		return fmt.Errorf("internal geometry: page_size 0x%X is not a multiple of %d", g.PageSize, flash.ProgramWidth)
	}

	r := p.Region()
	if r.Size == 0 {
		return errors.New("region_size must be non-zero")
	}
	if !g.Contains(r.Start, r.Size) {
		return fmt.Errorf("region 0x%08X+0x%X lies outside internal flash", r.Start, r.Size)
	}
	if (r.Start-g.Base)%g.PageSize != 0 || r.Size%g.PageSize != 0 {
		return fmt.Errorf("region 0x%08X+0x%X is not page aligned", r.Start, r.Size)
	}
	if f := p.Factory(); f.Size > 0 && !g.Contains(f.Base, f.Size) {
		return fmt.Errorf("factory package 0x%08X+0x%X lies outside internal flash", f.Base, f.Size)
	}

	m := section.DefaultMap()
	if err := m.Validate(); err != nil {
		return fmt.Errorf("external flash layout: %w", err)
	}
	for _, s := range m {
		if s.End > p.External.Size {
			return fmt.Errorf("external flash size 0x%X cannot hold section %s ending at 0x%X", p.External.Size, s.Type, s.End)
		}
	}
	if p.Boot.StagingSize < 0 {
		return fmt.Errorf("staging_size %d is negative", p.Boot.StagingSize)
	}
	if p.Boot.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts %d must be at least 1", p.Boot.MaxAttempts)
	}
	return nil
}
