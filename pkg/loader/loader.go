package loader

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
)

type LoaderConfig struct {
	Root string
}

// Loader walks a directory tree and parses each file with the strategy
// registered for its extension.
type Loader struct {
	config     LoaderConfig
	strategies Strategies
	logger     *zap.Logger
}

func New(config LoaderConfig, strategies Strategies, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}

	normalized := make(Strategies, len(strategies))
	for ext, s := range strategies {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[ext] = s
	}

	return &Loader{
		config:     config,
		strategies: normalized,
		logger:     logger,
	}
}

func (l *Loader) Root() string {
	return l.config.Root
}

// Supports reports whether a strategy is registered for the file's extension.
func (l *Loader) Supports(path string) bool {
	_, ok := l.strategies[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load lazily yields the documents under the root in lexical path order.
// Unreadable or unparsable files are yielded as errors and loading moves on.
// Files without a registered strategy are skipped.
func (l *Loader) Load(ctx context.Context) iter.Seq2[models.Document, error] {
	return func(yield func(models.Document, error) bool) {
		walkErr := filepath.WalkDir(l.config.Root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if path == l.config.Root {
					return err
				}
				if !yield(models.Document{}, types.WrapPath(types.ErrFileRead, "walk", path, err)) {
					return filepath.SkipAll
				}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}

			strategy, ok := l.strategies[strings.ToLower(filepath.Ext(path))]
			if !ok {
				l.logger.Debug("skipping file with unsupported extension",
					zap.String("path", path),
					zap.Error(types.ErrUnsupportedExtension))
				return nil
			}

			docs, err := l.loadFile(path, strategy)
			if err != nil {
				if !yield(models.Document{}, err) {
					return filepath.SkipAll
				}
				return nil
			}

			for _, doc := range docs {
				if !yield(doc, nil) {
					return filepath.SkipAll
				}
			}
			return nil
		})

		if walkErr != nil {
			yield(models.Document{}, types.WrapPath(types.ErrFileRead, "walk", l.config.Root, walkErr))
		}
	}
}

func (l *Loader) loadFile(path string, strategy Strategy) ([]models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapPath(types.ErrFileRead, "read", path, err)
	}

	texts, err := strategy.Parse(data)
	if err != nil {
		return nil, types.WrapPath(types.ErrParse, "parse", path, err)
	}

	ext := models.ExtensionOf(path)
	docs := make([]models.Document, 0, len(texts))
	for i, text := range texts {
		id := path
		if len(texts) > 1 {
			id = path + "#" + strconv.Itoa(i)
		}
		docs = append(docs, models.Document{
			ID:         id,
			SourcePath: path,
			Extension:  ext,
			Text:       sanitizeUTF8(text),
			Metadata: map[string]string{
				"source":    path,
				"extension": string(ext),
			},
		})
	}

	l.logger.Debug("loaded file", zap.String("path", path), zap.Int("documents", len(docs)))
	return docs, nil
}

// CountExtensions counts every file under root by lower-cased extension
// (without the dot, "" for none).
func CountExtensions(root string) (map[string]int, error) {
	counts := make(map[string]int)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			counts[string(models.ExtensionOf(path))]++
		}
		return nil
	})
	if err != nil {
		return nil, types.WrapPath(types.ErrFileRead, "count", root, err)
	}
	return counts, nil
}
