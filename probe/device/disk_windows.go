//go:build windows

package device

import (
	"golang.org/x/sys/windows"
)

func fillDiskStatus(t *Target) error {
	var free, total, totalFree uint64
	pathPtr, err := windows.UTF16PtrFromString(t.Path)
	if err != nil {
		return err
	}
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &free, &total, &totalFree); err != nil {
		return err
	}
	t.TotalBytes = total
	t.FreeBytes = free
	t.Filesystem = volumeFilesystem(t.Path)
	return nil
}

func volumeFilesystem(root string) string {
	rootPtr, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return "unknown"
	}
	fsName := make([]uint16, windows.MAX_PATH+1)
	err = windows.GetVolumeInformation(rootPtr, nil, 0, nil, nil, nil, &fsName[0], uint32(len(fsName)))
	if err != nil {
		return "unknown"
	}
	return windows.UTF16ToString(fsName)
}

func volumeLabel(root string) string {
	rootPtr, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return ""
	}
	label := make([]uint16, windows.MAX_PATH+1)
	err = windows.GetVolumeInformation(rootPtr, &label[0], uint32(len(label)), nil, nil, nil, nil, 0)
	if err != nil {
		return ""
	}
	return windows.UTF16ToString(label)
}

// List walks the logical drive letters and keeps removable and fixed
// volumes that respond to a size query.
func List() ([]*Info, error) {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil, err
	}
	var infos []*Info
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		root := string(rune('A'+i)) + `:\`
		rootPtr, err := windows.UTF16PtrFromString(root)
		if err != nil {
			continue
		}
		driveType := windows.GetDriveType(rootPtr)
		if driveType != windows.DRIVE_REMOVABLE && driveType != windows.DRIVE_FIXED {
			continue
		}
		t, err := Snapshot(root)
		if err != nil {
			continue
		}
		infos = append(infos, &Info{
			Target:    *t,
			Device:    root,
			Label:     volumeLabel(root),
			Removable: driveType == windows.DRIVE_REMOVABLE,
		})
	}
	return infos, nil
}
