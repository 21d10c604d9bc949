//go:build darwin

package device

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

func fillDiskStatus(t *Target) error {
	var fs unix.Statfs_t
	if err := unix.Statfs(t.Path, &fs); err != nil {
		return err
	}
	t.TotalBytes = fs.Blocks * uint64(fs.Bsize)
	t.FreeBytes = fs.Bavail * uint64(fs.Bsize)
	t.Filesystem = unix.ByteSliceToString(fs.Fstypename[:])
	return nil
}

// List returns the volumes mounted under /Volumes, which is where macOS
// mounts removable media.
func List() ([]*Info, error) {
	entries, err := os.ReadDir("/Volumes")
	if err != nil {
		return nil, err
	}
	var infos []*Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		mountPoint := filepath.Join("/Volumes", e.Name())
		t, err := Snapshot(mountPoint)
		if err != nil {
			continue
		}
		infos = append(infos, &Info{
			Target:    *t,
			Device:    mountPoint,
			Label:     e.Name(),
			Removable: true,
		})
	}
	return infos, nil
}
