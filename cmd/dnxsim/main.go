// Command dnxsim is a hosted boot harness for the kernel simulator: it
// brings up every subsystem (memory, VFS with a ramfs root, the nulldev
// driver, shared memory, the syscall dispatcher) and offers a handful of
// subcommands to exercise it, the same role rclone's own cobra root
// command plays for its backends.
//
// Grounded on rclone's backend/torrent/cmd/backend.go for the
// root-command-plus-subcommands cobra shape.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dnx-rtos/kernel/internal/kernel"
	"github.com/dnx-rtos/kernel/internal/kernel/process"
	"github.com/dnx-rtos/kernel/internal/kernel/register"

	_ "github.com/dnx-rtos/kernel/internal/demo/nulldev"
	_ "github.com/dnx-rtos/kernel/internal/demo/programs"
	_ "github.com/dnx-rtos/kernel/internal/demo/ramfs"
)

var diagPath string

func main() {
	root := &cobra.Command{
		Use:   "dnxsim",
		Short: "Boot the kernel simulator and run a command against it",
	}
	root.PersistentFlags().StringVar(&diagPath, "diag-db", "dnxsim-diag.db", "path to the panic/log persistence file")

	root.AddCommand(runCommand())
	root.AddCommand(listCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func boot(ctx context.Context) (*kernel.System, error) {
	cfg := kernel.DefaultConfig()
	cfg.DiagDBPath = diagPath
	return kernel.Boot(ctx, cfg)
}

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <program> [args...]",
		Short: "Spawn a registered program and wait for it to exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			sys, err := boot(ctx)
			if err != nil {
				return err
			}
			defer sys.Shutdown()

			proc, err := sys.Spawn(process.PID(0), args, "/")
			if err != nil {
				return err
			}
			code, err := proc.Wait(ctx)
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every registered program, file system, and driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("programs:")
			for _, name := range register.ProgramNames() {
				fmt.Printf("  %s\n", name)
			}
			fmt.Println("file systems:")
			for _, name := range register.FSNames() {
				fmt.Printf("  %s\n", name)
			}
			fmt.Println("drivers:")
			for _, name := range register.DriverNames() {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}
}
