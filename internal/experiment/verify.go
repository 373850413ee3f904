package experiment

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/bpm-calibrate/internal/bpm"
	"github.com/banshee-data/bpm-calibrate/internal/fsutil"
	"github.com/banshee-data/bpm-calibrate/internal/metadata"
)

// ErrSignatureMismatch is returned by Verify when an artifact no longer
// matches its recorded signature.
var ErrSignatureMismatch = errors.New("signature mismatch")

// Verify re-reads the artifact a metadata document describes, recomputes
// its signature with the document's signature method and compares it with
// the recorded value. It returns the computed signature.
func Verify(fs fsutil.FileSystem, documentPath string) (string, error) {
	doc, err := metadata.ParseFile(fs, documentPath)
	if err != nil {
		return "", err
	}
	want, err := doc.Get(metadata.KeySignature)
	if err != nil {
		return "", err
	}
	name, err := doc.Get(metadata.KeyOriginalFilename)
	if err != nil {
		return "", err
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%s %q is not a file name", metadata.KeyOriginalFilename, name)
	}
	methodName, err := doc.Get(bpm.KeySignatureMethod)
	if err != nil {
		return "", err
	}
	method, err := bpm.ParseDigestMethod(methodName)
	if err != nil {
		return "", err
	}

	data, err := fs.ReadFile(filepath.Join(filepath.Dir(documentPath), name))
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	got := method.Sum(data)
	if got != want {
		return got, fmt.Errorf("%w for %s: recorded %s, computed %s", ErrSignatureMismatch, name, want, got)
	}
	return got, nil
}
