package encoding

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"ufpmap/internal/frames"
	"ufpmap/internal/services"
)

// DiscoverFrames lists frame images in dir in lexicographic order, which is
// also index order.
func DiscoverFrames(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, frames.Glob))
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "encode", "discover frames", dir, err)
	}
	out := matches[:0]
	for _, path := range matches {
		if _, ok := frames.ParseFileName(path); ok {
			out = append(out, path)
		}
	}
	if len(out) == 0 {
		return nil, services.Wrap(services.ErrInput, "encode", "discover frames",
			fmt.Sprintf("no frame images matching %s in %s", frames.Glob, dir), nil)
	}
	sort.Strings(out)
	return out, nil
}

// checkContiguous reports the first gap in a sorted frame list.
func checkContiguous(paths []string) error {
	for i, path := range paths {
		idx, _ := frames.ParseFileName(path)
		if idx != i+1 {
			return services.Wrap(services.ErrInput, "encode", "discover frames",
				fmt.Sprintf("frame sequence has a gap: expected %s, found %s", frames.FileName(i+1), filepath.Base(path)), nil)
		}
	}
	return nil
}

// Cleanup removes frame images from dir. It refuses to run unless video
// exists and is non-empty.
func Cleanup(dir, video string) (int, error) {
	info, err := os.Stat(video)
	if err != nil || info.Size() == 0 {
		return 0, services.Wrap(services.ErrValidation, "cleanup", "verify video",
			fmt.Sprintf("refusing to delete frames: %s missing or empty", video), err)
	}
	paths, err := filepath.Glob(filepath.Join(dir, frames.Glob))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range paths {
		if _, ok := frames.ParseFileName(path); !ok {
			continue
		}
		if err := os.Remove(path); err != nil {
			return removed, services.Wrap(services.ErrTransient, "cleanup", "remove frame", path, err)
		}
		removed++
	}
	return removed, nil
}
