package blockio

import (
	"sync"

	"github.com/rs/zerolog"
)

// FileSet tracks the handles a test component holds open so a supervisor
// can force-close them after abandoning the goroutine that owns them. A
// sub-transfer syscall hung on a dying medium never observes context
// cancellation; closing the handle out from under it is the only way to
// unblock it and to release the file before scratch cleanup.
//
// A nil FileSet is valid and performs plain untracked opens.
type FileSet struct {
	mu   sync.Mutex
	open map[*File]struct{}
}

func NewFileSet() *FileSet {
	return &FileSet{open: make(map[*File]struct{})}
}

// OpenWrite is OpenWrite with the returned handle tracked until closed.
func (s *FileSet) OpenWrite(logger zerolog.Logger, path string) (*File, error) {
	f, err := OpenWrite(logger, path)
	if err != nil {
		return nil, err
	}
	s.track(f)
	return f, nil
}

// OpenRead is OpenRead with the returned handle tracked until closed.
func (s *FileSet) OpenRead(logger zerolog.Logger, path string, direct bool) (*File, error) {
	f, err := OpenRead(logger, path, direct)
	if err != nil {
		return nil, err
	}
	s.track(f)
	return f, nil
}

func (s *FileSet) track(f *File) {
	if s == nil {
		return
	}
	s.mu.Lock()
	f.set = s
	s.open[f] = struct{}{}
	s.mu.Unlock()
}

func (s *FileSet) forget(f *File) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.open, f)
	s.mu.Unlock()
}

// CloseAll force-closes every handle still open and reports how many it
// closed. Operations in flight on those handles fail instead of hanging.
func (s *FileSet) CloseAll() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	files := make([]*File, 0, len(s.open))
	for f := range s.open {
		files = append(files, f)
	}
	s.open = make(map[*File]struct{})
	s.mu.Unlock()

	for _, f := range files {
		f.f.Close()
	}
	return len(files)
}
