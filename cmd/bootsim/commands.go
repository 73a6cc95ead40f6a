package main

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/moffa90/go-dualboot/bootcache"
	"github.com/moffa90/go-dualboot/bootloader"
	"github.com/moffa90/go-dualboot/image"
	"github.com/moffa90/go-dualboot/logging"
	"github.com/moffa90/go-dualboot/manufacturing"
	"github.com/moffa90/go-dualboot/metrics"
	"github.com/moffa90/go-dualboot/programmer"
	"github.com/moffa90/go-dualboot/registry"
	"github.com/moffa90/go-dualboot/section"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	stageSlot    string
	stageFile    string
	stageVersion string
	stageType    string

	factoryFile    string
	factoryVersion string

	jumpAnyway bool

	markSlot  string
	markState string

	primarySlot string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Default every section and mark the external flash initialized",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(d *device) error {
			sections := d.sections()
			for _, t := range []section.Type{section.TypeConfig, section.TypeLog, section.TypeImageRegistry} {
				if err := sections.Default(t); err != nil {
					return fmt.Errorf("default %s: %w", t, err)
				}
			}
			reg := registry.New(sections, registry.WithLogger(logging.Glog{}))
			if err := reg.Init(); err != nil {
				return err
			}
			if err := reg.SetPrimarySlot(image.SlotA); err != nil {
				return err
			}
			if err := manufacturing.WriteMagic(d.external); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "external flash initialized, primary slot A")
			return nil
		})
	},
}

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Write an image into an external flash slot",
	RunE: func(cmd *cobra.Command, args []string) error {
		slot, err := image.ParseSlot(stageSlot)
		if err != nil {
			return err
		}
		version, err := image.ParseVersion(stageVersion)
		if err != nil {
			return err
		}
		typ, err := parseType(stageType)
		if err != nil {
			return err
		}
		payload, err := readPayload(stageFile)
		if err != nil {
			return err
		}

		return withDevice(func(d *device) error {
			st, err := slotSection(typ, slot)
			if err != nil {
				return err
			}
			s, _ := section.DefaultMap().Lookup(st)
			blob := image.Build(typ, version, payload)
			if uint32(len(blob)) > s.End-s.Start {
				return &image.LengthError{Slot: slot, Length: uint32(len(payload)), Capacity: s.End - s.Start - image.HeaderSize}
			}
			if err := d.external.Write(s.Start, blob); err != nil {
				return err
			}

			// The registry tracks application images only.
			if typ == image.TypeAM {
				reg := registry.New(d.sections(), registry.WithLogger(logging.Glog{}))
				if err := reg.Init(); err != nil {
					glog.Warningf("Image registry invalid, slot %s staged without a registry update: %v", slot, err)
				} else {
					if err := reg.SetSlotVersion(slot, version); err != nil {
						return err
					}
					if err := reg.SetSlotOperationalState(slot, image.StateUnknown); err != nil {
						return err
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "staged %s %s in slot %s (%d bytes)\n", typ, version, slot, len(payload))
			return nil
		})
	},
}

var factoryCmd = &cobra.Command{
	Use:   "factory",
	Short: "Place a factory package in internal flash",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := image.ParseVersion(factoryVersion)
		if err != nil {
			return err
		}
		payload, err := readPayload(factoryFile)
		if err != nil {
			return err
		}

		return withDevice(func(d *device) error {
			area := d.profile.Factory()
			if area.Size == 0 {
				return errors.New("the device profile has no factory package area")
			}
			blob := image.Build(image.TypeAM, version, payload)
			if uint32(len(blob)) > area.Size {
				return &image.LengthError{Slot: image.SlotA, Length: uint32(len(payload)), Capacity: area.Capacity()}
			}
			// Manufacturing writes internal flash directly, not through the bootloader.
			off := area.Base - d.profile.Internal.Base
			copy(d.internal.Bytes()[off:], blob)
			fmt.Fprintf(cmd.OutOrStdout(), "factory package %s placed at 0x%08X (%d bytes)\n", version, area.Base, len(payload))
			return nil
		})
	},
}

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Run one boot pass",
	Long: `Run one boot pass and print the verdict.

When the bootloader chooses not to jump, the device stays in standby. The
--jump-anyway flag jumps regardless, as a caller that ignores the verdict
would.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		promReg := prometheus.NewRegistry()
		collector := metrics.New(promReg)

		err := withDevice(func(d *device) error {
			bl := d.bootloader(
				bootloader.WithRecorder(collector),
				bootloader.WithProgressCallback(collector.Chain(logProgress)),
			)
			v, err := bl.Run()
			if err != nil {
				glog.Errorf("Boot cache not retained: %v", err)
			}
			printVerdict(cmd, v, d.resets)
			return nil
		})
		if err != nil {
			return err
		}

		if metricsOut != "" {
			if err := prometheus.WriteToTextfile(metricsOut, promReg); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
		}
		return nil
	},
}

func logProgress(p programmer.Progress) {
	if glog.V(1) {
		glog.Infof("[%s] slot %s attempt %d %.1f%% (%d/%d bytes)",
			p.Phase, p.Slot, p.Attempt, p.Percentage, p.BytesWritten, p.TotalBytes)
	}
}

func printVerdict(cmd *cobra.Command, v bootloader.Verdict, resets int) {
	out := cmd.OutOrStdout()
	if v.Reset {
		fmt.Fprintf(out, "factory image installed, system reset (%d)\n", resets)
		return
	}
	d := v.Decision
	fmt.Fprintf(out, "cold=%v key=%s\n", v.Cold, d.Key)
	if d.Switched.Known() {
		fmt.Fprintf(out, "loaded slot %s into internal flash\n", d.Switched)
	}
	fmt.Fprintf(out, "cache: start=%d reason=%s slot=%s\n", v.Cache.StartCount, v.Cache.LastReason, v.Cache.LastLoadedSlot)
	switch {
	case v.Jump:
		fmt.Fprintln(out, "jump to application")
	case jumpAnyway:
		fmt.Fprintln(out, "no slot could be loaded, jumping anyway")
	default:
		fmt.Fprintln(out, "no slot could be loaded, standby")
	}
}

var powerCycleCmd = &cobra.Command{
	Use:   "power-cycle",
	Short: "Discard retained RAM so the next boot is a power-on",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(d *device) error {
			return d.store.PowerCycle()
		})
	},
}

var markCmd = &cobra.Command{
	Use:   "mark",
	Short: "Record a slot's operational state, as the application would",
	RunE: func(cmd *cobra.Command, args []string) error {
		slot, err := image.ParseSlot(markSlot)
		if err != nil {
			return err
		}
		state, err := image.ParseState(markState)
		if err != nil {
			return err
		}
		return withRegistry(func(reg *registry.Registry) error {
			return reg.SetSlotOperationalState(slot, state)
		})
	},
}

var setPrimaryCmd = &cobra.Command{
	Use:   "set-primary",
	Short: "Select the preferred slot",
	RunE: func(cmd *cobra.Command, args []string) error {
		slot, err := image.ParseSlot(primarySlot)
		if err != nil {
			return err
		}
		return withRegistry(func(reg *registry.Registry) error {
			return reg.SetPrimarySlot(slot)
		})
	},
}

func withRegistry(fn func(reg *registry.Registry) error) error {
	return withDevice(func(d *device) error {
		reg := registry.New(d.sections(), registry.WithLogger(logging.Glog{}))
		if err := reg.Init(); err != nil {
			return fmt.Errorf("image registry: %w", err)
		}
		return fn(reg)
	})
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the registry, the slots, the boot cache and the boot log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(d *device) error {
			out := cmd.OutOrStdout()
			bl := d.bootloader()

			fmt.Fprintf(out, "initialized: %v\n", manufacturing.MagicWritten(d.external))

			reg := bl.Registry()
			if err := reg.Init(); err != nil {
				fmt.Fprintf(out, "registry: invalid (%v)\n", err)
			} else {
				fmt.Fprintf(out, "registry: primary=%s loaded=%s\n", reg.PrimarySlot(), reg.LoadedSlot())
			}

			for _, s := range image.Slots {
				line := fmt.Sprintf("slot %s:", s)
				if reg.Valid() {
					line += fmt.Sprintf(" state=%s version=%s", reg.SlotState(s), reg.SlotVersion(s))
				}
				if err := bl.Validator().Validate(s); err != nil {
					line += fmt.Sprintf(" image invalid (%v)", err)
				} else {
					m, _ := bl.Validator().Certified(s)
					line += fmt.Sprintf(" image %s %d bytes crc=0x%04X", m.Version, m.Length, m.Checksum)
				}
				fmt.Fprintln(out, line)
			}

			c, err := d.store.Load()
			if err != nil {
				return err
			}
			if c.Warm() {
				fmt.Fprintf(out, "boot cache: start=%d reason=%s slot=%s\n", c.StartCount, c.LastReason, c.LastLoadedSlot)
			} else {
				fmt.Fprintf(out, "boot cache: %s\n", coldCache(c))
			}

			records, err := bootloader.ReadLog(bl.Sections())
			if err != nil {
				fmt.Fprintf(out, "boot log: unavailable (%v)\n", err)
				return nil
			}
			fmt.Fprintf(out, "boot log: %d records\n", len(records))
			for _, r := range records {
				fmt.Fprintf(out, "  %s\n", r)
			}
			return nil
		})
	},
}

func coldCache(c bootcache.Cache) string {
	if c == (bootcache.Cache{}) {
		return "power-on"
	}
	return fmt.Sprintf("lost (reset key 0x%08X)", c.ResetKey)
}

func init() {
	stageCmd.Flags().StringVar(&stageSlot, "slot", "", "slot to write (A or B)")
	stageCmd.Flags().StringVar(&stageFile, "file", "", "payload file, gzip compressed when it ends in .gz")
	stageCmd.Flags().StringVar(&stageVersion, "version", "", "image version major.minor.build")
	stageCmd.Flags().StringVar(&stageType, "type", "am", "image type (am or ssm)")
	for _, f := range []string{"slot", "file", "version"} {
		_ = stageCmd.MarkFlagRequired(f)
	}

	factoryCmd.Flags().StringVar(&factoryFile, "file", "", "payload file, gzip compressed when it ends in .gz")
	factoryCmd.Flags().StringVar(&factoryVersion, "version", "", "image version major.minor.build")
	_ = factoryCmd.MarkFlagRequired("file")
	_ = factoryCmd.MarkFlagRequired("version")

	bootCmd.Flags().BoolVar(&jumpAnyway, "jump-anyway", false, "jump to the application even when no slot could be loaded")

	markCmd.Flags().StringVar(&markSlot, "slot", "", "slot to mark (A or B)")
	markCmd.Flags().StringVar(&markState, "state", "", "operational state (unknown, partial, full, failed)")
	_ = markCmd.MarkFlagRequired("slot")
	_ = markCmd.MarkFlagRequired("state")

	setPrimaryCmd.Flags().StringVar(&primarySlot, "slot", "", "preferred slot (A or B)")
	_ = setPrimaryCmd.MarkFlagRequired("slot")

	rootCmd.AddCommand(initCmd, stageCmd, factoryCmd, bootCmd, powerCycleCmd, markCmd, setPrimaryCmd, inspectCmd)
}
