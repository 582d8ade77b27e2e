package template

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed templates/*.tmpl
var embedded embed.FS

// Library resolves template names to their bodies. The default library
// serves the embedded template set; an on-disk directory can override it
// for teams carrying customized templates.
type Library struct {
	fsys fs.FS
	root string
}

// NewLibrary returns the embedded default template set.
func NewLibrary() *Library {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}
	return &Library{fsys: sub}
}

// NewLibraryFromDir serves templates from dir instead of the embedded set.
func NewLibraryFromDir(dir string) (*Library, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("templates directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("templates path %s is not a directory", dir)
	}
	return &Library{fsys: os.DirFS(dir), root: dir}, nil
}

// Load returns the body of a named template.
func (l *Library) Load(name string) (string, error) {
	b, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		if l.root != "" {
			return "", fmt.Errorf("template %s: %w", filepath.Join(l.root, name), err)
		}
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	return string(b), nil
}
