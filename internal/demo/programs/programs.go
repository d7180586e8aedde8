// Package programs holds a handful of demonstration programs that
// self-register into package register's program table, the way rclone's
// backends self-register into fs.Register from their own init().
//
// Grounded on original_source/src/system/kernel/process.c's program-entry
// convention (a plain int main(int argc, char *argv[])) and
// core/modctrl.h's _prog_table_t{name, main, stack_depth}.
package programs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dnx-rtos/kernel/internal/kernel/register"
)

func init() {
	register.RegisterProgram(register.ProgramEntry{Name: "echo", Main: echoMain, StackDepth: 1024})
	register.RegisterProgram(register.ProgramEntry{Name: "sum", Main: sumMain, StackDepth: 1024})
	register.RegisterProgram(register.ProgramEntry{Name: "false", Main: falseMain, StackDepth: 512})
}

// echoMain writes its arguments to stdout, joined by spaces -- the
// smallest possible program that still exercises argv plumbing end to
// end.
func echoMain(args []string) int {
	fmt.Println(strings.Join(args, " "))
	return 0
}

// sumMain parses every argument as an integer and prints their sum, a
// program with a real (if trivial) computation and a non-zero exit status
// on bad input.
func sumMain(args []string) int {
	var total int64
	for _, a := range args {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			fmt.Printf("sum: invalid integer %q\n", a)
			return 1
		}
		total += n
	}
	fmt.Println(total)
	return 0
}

// falseMain always exits non-zero, exercising the exit-code path with no
// other side effects.
func falseMain(args []string) int {
	return 1
}
