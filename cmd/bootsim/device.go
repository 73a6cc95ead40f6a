package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/klauspost/pgzip"
	"github.com/moffa90/go-dualboot/bootcache"
	"github.com/moffa90/go-dualboot/bootloader"
	"github.com/moffa90/go-dualboot/config"
	"github.com/moffa90/go-dualboot/flash"
	"github.com/moffa90/go-dualboot/image"
	"github.com/moffa90/go-dualboot/logging"
	"github.com/moffa90/go-dualboot/manufacturing"
	"github.com/moffa90/go-dualboot/section"
)

const (
	externalFile = "external.bin"
	internalFile = "internal.bin"
	retainedFile = "retained.bin"
)

// device is the simulated hardware persisted in a state directory.
type device struct {
	profile  config.Profile
	external *flash.FileDevice
	internal *flash.MemController
	store    *bootcache.FileStore
	resets   int
}

func openDevice(p config.Profile) (*device, error) {
	if err := os.MkdirAll(p.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	internal, err := loadInternal(p)
	if err != nil {
		return nil, err
	}
	external, err := flash.OpenFileDevice(filepath.Join(p.StateDir, externalFile), int64(p.External.Size))
	if err != nil {
		return nil, err
	}

	return &device{
		profile:  p,
		external: external,
		internal: internal,
		store:    &bootcache.FileStore{Path: filepath.Join(p.StateDir, retainedFile)},
	}, nil
}

func loadInternal(p config.Profile) (*flash.MemController, error) {
	g := p.Geometry()
	data, err := os.ReadFile(filepath.Join(p.StateDir, internalFile))
	if errors.Is(err, fs.ErrNotExist) {
		return flash.NewMemController(g), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read internal flash: %w", err)
	}
	return flash.LoadMemController(g, data)
}

// close writes the internal flash back and releases the external flash.
func (d *device) close() error {
	werr := os.WriteFile(filepath.Join(d.profile.StateDir, internalFile), d.internal.Bytes(), 0o644)
	cerr := d.external.Close()
	if werr != nil {
		return fmt.Errorf("save internal flash: %w", werr)
	}
	return cerr
}

func (d *device) sections() *section.Manager {
	return section.NewManager(d.external, section.DefaultMap(), section.WithLogger(logging.Glog{}))
}

func (d *device) bootloader(opts ...bootloader.Option) *bootloader.Bootloader {
	hw := bootloader.Hardware{
		Internal: d.internal,
		External: d.external,
		Store:    d.store,
		Resetter: manufacturing.ResetFunc(func() {
			d.resets++
			glog.Info("System reset requested")
		}),
	}
	layout := bootloader.Layout{
		Sections: section.DefaultMap(),
		Region:   d.profile.Region(),
		Factory:  d.profile.Factory(),
	}
	opts = append([]bootloader.Option{
		bootloader.WithLogger(logging.Glog{}),
		bootloader.WithMaxAttempts(d.profile.Boot.MaxAttempts),
		bootloader.WithStagingSize(d.profile.Boot.StagingSize),
	}, opts...)
	return bootloader.New(hw, layout, opts...)
}

// withDevice opens the device, runs fn and persists the device.
func withDevice(fn func(d *device) error) (err error) {
	d, err := openDevice(profile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(d)
}

// readPayload reads an image payload, decompressing .gz files.
func readPayload(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip payload %q: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read payload %q: %w", path, err)
	}
	return data, nil
}

// slotSection returns the external flash section holding slot s for images
// of type t.
func slotSection(t image.Type, s image.Slot) (section.Type, error) {
	switch {
	case t == image.TypeAM && s == image.SlotA:
		return section.TypeAMImageA, nil
	case t == image.TypeAM && s == image.SlotB:
		return section.TypeAMImageB, nil
	case t == image.TypeSSM && s == image.SlotA:
		return section.TypeSSMImageA, nil
	case t == image.TypeSSM && s == image.SlotB:
		return section.TypeSSMImageB, nil
	}
	return 0, fmt.Errorf("no section for %s image in slot %s", t, s)
}

func parseType(s string) (image.Type, error) {
	switch strings.ToLower(s) {
	case "am":
		return image.TypeAM, nil
	case "ssm":
		return image.TypeSSM, nil
	}
	return 0, fmt.Errorf("invalid image type %q: want am or ssm", s)
}
