package command

import (
	"fmt"
	"runtime"

	"github.com/driveprobe/driveprobe/probe/util"
)

var cmdVersion = &Command{
	Run:       runVersion,
	UsageLine: "version",
	Short:     "print driveprobe version",
	Long:      `Version prints the driveprobe version`,
}

func runVersion(cmd *Command, args []string) int {
	if len(args) != 0 {
		cmd.Usage()
	}
	fmt.Printf("version %s %s %s\n", util.Version(), runtime.GOOS, runtime.GOARCH)
	return 0
}
