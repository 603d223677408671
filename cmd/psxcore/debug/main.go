// Command psxcore-debug is an offline companion to psxcore: state
// dumps, single-stepping and disassembly against a BIOS (and
// optional side-loaded EXE) without opening a terminal frontend.
// Grounded on the pack's CHIP-8 host tooling's use of spf13/cobra for
// a multi-subcommand debug CLI, kept as its own binary since cobra's
// command tree doesn't compose with psxcore's urfave/cli app.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/retrocore/gopsx/internal/console"
	"github.com/retrocore/gopsx/internal/cpu"
)

var (
	biosPath string
	romPath  string
)

func main() {
	root := &cobra.Command{
		Use:   "psxcore-debug",
		Short: "Offline debugging tools for the psxcore emulator",
	}
	root.PersistentFlags().StringVar(&biosPath, "bios", "", "path to a BIOS image (required)")
	root.PersistentFlags().StringVar(&romPath, "rom", "", "path to a PS-X EXE to side-load after reset")
	root.MarkPersistentFlagRequired("bios")

	root.AddCommand(dumpStateCmd(), stepCmd(), disasmCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newMachine() (*console.Machine, error) {
	bios, err := os.ReadFile(biosPath)
	if err != nil {
		return nil, fmt.Errorf("reading bios: %w", err)
	}
	m := console.New(nil, nil)
	if err := m.LoadBIOS(bios); err != nil {
		return nil, fmt.Errorf("loading bios: %w", err)
	}
	if romPath != "" {
		data, err := os.ReadFile(romPath)
		if err != nil {
			return nil, fmt.Errorf("reading rom: %w", err)
		}
		if err := m.HookEXE(data); err != nil {
			return nil, fmt.Errorf("hooking exe: %w", err)
		}
	}
	return m, nil
}

func dumpStateCmd() *cobra.Command {
	var frames int
	cmd := &cobra.Command{
		Use:   "dump-state",
		Short: "Run N frames then print CPU register state",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMachine()
			if err != nil {
				return err
			}
			for i := 0; i < frames; i++ {
				m.RunUntilFrame()
			}
			fmt.Printf("pc=0x%08x frames=%d instructions=%d\n", m.CPU.PC(), m.FrameCount(), m.InstructionCount())
			for n := 0; n < 32; n++ {
				fmt.Printf("r%-2d=0x%08x ", n, m.CPU.Regs.Get(uint8(n)))
				if n%4 == 3 {
					fmt.Println()
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&frames, "frames", 0, "number of frames to run before dumping state")
	return cmd
}

func stepCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Single-step N instructions, printing PC and disassembly",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMachine()
			if err != nil {
				return err
			}
			for i := 0; i < count; i++ {
				pc := m.CPU.PC()
				word := m.Bus.ReadWord(pc)
				fmt.Printf("0x%08x: %s\n", pc, cpu.Disassemble(word, pc))
				m.Step()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of instructions to step")
	return cmd
}

func disasmCmd() *cobra.Command {
	var start uint32
	var count int
	cmd := &cobra.Command{
		Use:   "disasm",
		Short: "Disassemble a range of memory without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMachine()
			if err != nil {
				return err
			}
			addr := start
			for i := 0; i < count; i++ {
				word := m.Bus.ReadWord(addr)
				fmt.Printf("0x%08x: %s\n", addr, cpu.Disassemble(word, addr))
				addr += 4
			}
			return nil
		},
	}
	cmd.Flags().Uint32Var(&start, "start", 0xBFC00000, "starting address")
	cmd.Flags().IntVar(&count, "count", 16, "number of instructions to disassemble")
	return cmd
}
