package imports_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

const modulePath = "github.com/leeforge/resizer"

// packageImports maps each package directory, relative to the module root,
// to the module-local packages it imports.
func packageImports(t *testing.T, root string) map[string]map[string]bool {
	t.Helper()
	out := make(map[string]map[string]bool)
	fset := token.NewFileSet()

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "_") || (strings.HasPrefix(d.Name(), ".") && path != root) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}

		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, filepath.Dir(path))
		rel = filepath.ToSlash(rel)
		if out[rel] == nil {
			out[rel] = make(map[string]bool)
		}
		for _, imp := range f.Imports {
			p, _ := strconv.Unquote(imp.Path.Value)
			out[rel][p] = true
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk module: %v", err)
	}
	return out
}

func TestNoLegacyFrameworkImports(t *testing.T) {
	legacy := []string{
		"github.com/leeforge/framework",
		"leeforge/frame-core",
	}
	var hits []string
	for pkg, imports := range packageImports(t, filepath.Clean("../..")) {
		for imp := range imports {
			for _, l := range legacy {
				if strings.HasPrefix(imp, l) {
					hits = append(hits, pkg+" -> "+imp)
				}
			}
		}
	}

	if len(hits) > 0 {
		t.Fatalf("legacy imports found: %v", hits[:min(10, len(hits))])
	}
}

// The pixel core stays free of configuration, storage and CLI concerns.
func TestCorePackagesStayLeaf(t *testing.T) {
	core := []string{"pixel", "sizing", "resample", "concurrency", "codec"}
	forbidden := []string{"resizer", "config", "storage", "cmd/resizer", "json"}

	all := packageImports(t, filepath.Clean("../.."))
	for _, pkg := range core {
		imports, ok := all[pkg]
		if !ok {
			t.Fatalf("package %s not found", pkg)
		}
		for _, f := range forbidden {
			if imports[modulePath+"/"+f] {
				t.Errorf("%s must not import %s", pkg, f)
			}
		}
	}
}
