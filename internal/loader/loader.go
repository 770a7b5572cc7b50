// Package loader reads text and markdown files from disk into documents ready
// for ingestion.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/module"
)

var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// Loader collects documents from files and directories.
type Loader struct {
	md     goldmark.Markdown
	logger *zap.Logger
}

// New creates a loader. The logger may be nil.
func New(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		md:     goldmark.New(goldmark.WithParserOptions(parser.WithAutoHeadingID())),
		logger: logger,
	}
}

// Load reads documents from path. A file loads as a single document; a
// directory is walked recursively, collecting files with text or markdown
// extensions and skipping hidden directories. Each document's metadata
// carries its source path and filename, and markdown documents additionally
// carry the document title.
func (l *Loader) Load(path string) ([]module.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		doc, err := l.loadFile(path)
		if err != nil {
			return nil, err
		}
		return []module.Document{doc}, nil
	}

	var docs []module.Document
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != path {
				return filepath.SkipDir
			}
			return nil
		}
		if !textExtensions[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		doc, err := l.loadFile(p)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no text or markdown files under %s", path)
	}
	l.logger.Info("loaded documents", zap.String("path", path), zap.Int("count", len(docs)))
	return docs, nil
}

func (l *Loader) loadFile(path string) (module.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return module.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	metadata := map[string]any{
		"source":   path,
		"filename": filepath.Base(path),
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".md" || ext == ".markdown" {
		if title := l.markdownTitle(raw); title != "" {
			metadata["title"] = title
		}
	}
	return module.Document{Text: string(raw), Metadata: metadata}, nil
}

// markdownTitle returns the document's first top-level heading, empty when
// the document has none.
func (l *Loader) markdownTitle(source []byte) string {
	doc := l.md.Parser().Parse(text.NewReader(source))
	tree, err := toc.Inspect(doc, source, toc.MinDepth(1), toc.MaxDepth(1), toc.Compact(true))
	if err != nil || len(tree.Items) == 0 {
		return ""
	}
	return string(tree.Items[0].Title)
}
