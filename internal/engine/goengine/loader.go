package goengine

import (
	"context"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"
)

// LoadMode defines the packages.Load mode required for SSA construction.
const LoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo |
	packages.NeedModule |
	packages.NeedImports |
	packages.NeedDeps

// Loader loads the packages an entry names.
type Loader struct {
	tests bool
	fset  *token.FileSet
	pkgs  []*packages.Package
}

// NewLoader creates a new package loader.
func NewLoader(tests bool) *Loader {
	return &Loader{
		tests: tests,
		fset:  token.NewFileSet(),
	}
}

// Load loads the package containing entry, or every package below entry
// when it is a directory. Errors in those packages are fatal.
func (l *Loader) Load(ctx context.Context, entry string) error {
	dir, pattern, err := loadTarget(entry)
	if err != nil {
		return err
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode:    LoadMode,
		Dir:     dir,
		Fset:    l.fset,
		Tests:   l.tests,
	}

	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return fmt.Errorf("loading packages: %w", err)
	}
	if len(pkgs) == 0 {
		return fmt.Errorf("no packages found in %s", dir)
	}

	var errs []string
	for _, pkg := range pkgs {
		for _, err := range pkg.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", pkg.PkgPath, err.Msg))
		}
	}
	if len(errs) > 0 {
		msg := strings.Join(errs[:min(5, len(errs))], "; ")
		if len(errs) > 5 {
			msg += fmt.Sprintf("; and %d more", len(errs)-5)
		}
		return fmt.Errorf("%d package loading errors: %s", len(errs), msg)
	}

	l.pkgs = pkgs
	return nil
}

func loadTarget(entry string) (dir, pattern string, err error) {
	abs, err := filepath.Abs(entry)
	if err != nil {
		return "", "", fmt.Errorf("resolving %s: %w", entry, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", "", fmt.Errorf("checking %s: %w", entry, err)
	}
	if info.IsDir() {
		return abs, "./...", nil
	}
	return filepath.Dir(abs), ".", nil
}

// Packages returns the loaded packages.
func (l *Loader) Packages() []*packages.Package {
	return l.pkgs
}

// FileSet returns the file set used for parsing.
func (l *Loader) FileSet() *token.FileSet {
	return l.fset
}
