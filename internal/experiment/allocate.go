package experiment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/banshee-data/bpm-calibrate/internal/fsutil"
	"github.com/banshee-data/bpm-calibrate/internal/metadata"
)

// DefaultMaxIndex bounds the sequence index search.
const DefaultMaxIndex = 100000

// ErrAllocationExhausted is returned when every index up to the bound is
// taken for at least one role.
var ErrAllocationExhausted = errors.New("no free sequence index")

// Allocation is a set of artifact paths sharing one sequence index.
type Allocation struct {
	Index int
	Paths map[string]string
}

// ArtifactPath returns baseDir/role/data_<n>_<role>.txt.
func ArtifactPath(baseDir, role string, n int) string {
	return filepath.Join(baseDir, role, "data_"+strconv.Itoa(n)+"_"+role+".txt")
}

// Allocate returns the smallest index n >= 1 for which no role has an
// artifact or metadata document yet. Callers racing on the same directory
// must hold a LockDir lock.
func Allocate(fs fsutil.FileSystem, baseDir string, roles []string, maxIndex int) (Allocation, error) {
	if len(roles) == 0 {
		return Allocation{}, errors.New("allocate: no roles")
	}
	if maxIndex <= 0 {
		maxIndex = DefaultMaxIndex
	}

next:
	for n := 1; n <= maxIndex; n++ {
		paths := make(map[string]string, len(roles))
		for _, role := range roles {
			p := ArtifactPath(baseDir, role, n)
			if fs.Exists(p) || fs.Exists(metadata.DocumentPath(p)) {
				continue next
			}
			paths[role] = p
		}
		return Allocation{Index: n, Paths: paths}, nil
	}
	return Allocation{}, fmt.Errorf("%w in %s (searched 1..%d)", ErrAllocationExhausted, baseDir, maxIndex)
}

// LockFileName is created inside an output directory while a run owns it.
const LockFileName = ".bpmcal.lock"

// Lock is an exclusive claim on an output directory.
type Lock struct {
	fs   fsutil.FileSystem
	path string
}

// LockDir claims dir for the calling process. It fails with
// fsutil.ErrPathExists if another process holds the lock.
func LockDir(fs fsutil.FileSystem, dir string) (*Lock, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, LockFileName)
	w, err := fs.CreateExclusive(path)
	if err != nil {
		return nil, fmt.Errorf("output directory %s is in use (remove %s if stale): %w", dir, path, err)
	}
	fmt.Fprintf(w, "pid %d since %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := w.Close(); err != nil {
		fs.Remove(path)
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return &Lock{fs: fs, path: path}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	return l.fs.Remove(l.path)
}
