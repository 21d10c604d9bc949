package command

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/driveprobe/driveprobe/probe/device"
)

var cmdList = &Command{
	Run:       runList,
	UsageLine: "list",
	Short:     "list candidate removable storage volumes",
	Long: `List scans the mounted volumes for removable storage candidates
  and prints their mount point, label, capacity and filesystem.

  Only volumes mounted where the platform places removable media are
  shown; pass any writable mount point to 'probe run' directly if the
  device is mounted elsewhere.
  `,
}

func runList(cmd *Command, args []string) int {
	infos, err := device.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "scanning volumes: %v\n", err)
		return 1
	}
	if len(infos) == 0 {
		fmt.Println("no removable storage volumes found")
		return 0
	}
	for i, info := range infos {
		fmt.Printf("%2d. %s - %s (%s of %s free, %s)\n",
			i+1, info.Path, info.Label,
			humanize.IBytes(info.FreeBytes), humanize.IBytes(info.TotalBytes),
			info.Filesystem)
	}
	return 0
}
