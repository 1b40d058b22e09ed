package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// staging holds the outputs of a run next to their destinations until every
// output has been written. Nothing reaches a final path before commit.
type staging struct {
	final  []string
	staged []string
}

// path reserves a hidden sibling of dest that keeps dest's extension, so
// writers that pick a format from the extension behave the same.
func (s *staging) path(dest string) (string, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", dest, err)
	}
	base := filepath.Base(dest)
	ext := filepath.Ext(base)
	f, err := os.CreateTemp(dir, "."+strings.TrimSuffix(base, ext)+".*.staged"+ext)
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", dest, err)
	}
	name := f.Name()
	f.Close()
	s.final = append(s.final, dest)
	s.staged = append(s.staged, name)
	return name, nil
}

// commit moves every staged file onto its destination in the order they were
// reserved. A failed rename discards whatever is still staged.
func (s *staging) commit() error {
	for i, tmp := range s.staged {
		if err := os.Rename(tmp, s.final[i]); err != nil {
			s.staged = s.staged[i+1:]
			return errors.Join(fmt.Errorf("publish %s: %w", s.final[i], err), os.Remove(tmp), s.discard())
		}
	}
	s.final, s.staged = nil, nil
	return nil
}

// discard removes every staged file.
func (s *staging) discard() error {
	var errs []error
	for _, tmp := range s.staged {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	s.final, s.staged = nil, nil
	return errors.Join(errs...)
}
