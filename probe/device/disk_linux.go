//go:build linux

package device

import (
	"bufio"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// statfs f_type magic numbers for the filesystems removable media
// commonly carry; anything else is reported by raw magic.
var fsTypeNames = map[int64]string{
	0x4d44:       "vfat",
	0x2011BAB0:   "exfat",
	0x5346544e:   "ntfs",
	0xEF53:       "ext4",
	0x58465342:   "xfs",
	0x9123683E:   "btrfs",
	0x01021994:   "tmpfs",
	0x6969:       "nfs",
	0x65735546:   "fuse",
	0x2FC12FC1:   "zfs",
	0x15013346:   "udf",
	0x9660:       "iso9660",
	0x73717368:   "squashfs",
	0xca451a4e:   "bcachefs",
	0xf2f52010:   "f2fs",
	0x3153464a:   "jfs",
	0x52654973:   "reiserfs",
	0x137D:       "ext",
	0xEF51:       "ext2",
	0x00011954:   "ufs",
	0x5346414F:   "afs",
	0x61756673:   "aufs",
	0x794c7630:   "overlayfs",
	0x858458f6:   "ramfs",
	0x01021997:   "v9fs",
	0xFF534D42:   "cifs",
	0x7275:       "romfs",
	0x002f:       "qnx4",
	0x68191122:   "qnx6",
	0x482b:       "hfsplus",
	0x4244:       "hfs",
	0x64626720:   "debugfs",
	0x62656572:   "sysfs",
	0x9fa0:       "proc",
}

func fillDiskStatus(t *Target) error {
	var fs unix.Statfs_t
	if err := unix.Statfs(t.Path, &fs); err != nil {
		return err
	}
	t.TotalBytes = fs.Blocks * uint64(fs.Bsize)
	t.FreeBytes = fs.Bavail * uint64(fs.Bsize)
	if name, ok := fsTypeNames[int64(fs.Type)]; ok {
		t.Filesystem = name
	} else {
		t.Filesystem = "unknown"
	}
	return nil
}

// List scans /proc/mounts for volumes mounted under the usual removable
// media locations.
func List() ([]*Info, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var infos []*Info
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		dev, mountPoint, fsType := fields[0], fields[1], fields[2]
		if !isRemovableMount(dev, mountPoint) {
			continue
		}
		t, err := Snapshot(unescapeMount(mountPoint))
		if err != nil {
			continue
		}
		if t.Filesystem == "unknown" {
			t.Filesystem = fsType
		}
		infos = append(infos, &Info{
			Target:    *t,
			Device:    dev,
			Label:     unescapeMount(mountPoint[strings.LastIndexByte(mountPoint, '/')+1:]),
			Removable: true,
		})
	}
	return infos, scanner.Err()
}

func isRemovableMount(dev, mountPoint string) bool {
	if !strings.HasPrefix(dev, "/dev/") {
		return false
	}
	return strings.HasPrefix(mountPoint, "/media/") ||
		strings.HasPrefix(mountPoint, "/run/media/") ||
		strings.HasPrefix(mountPoint, "/mnt/")
}

// /proc/mounts escapes spaces in mount points as \040.
func unescapeMount(s string) string {
	s = strings.ReplaceAll(s, `\040`, " ")
	s = strings.ReplaceAll(s, `\011`, "\t")
	return s
}
