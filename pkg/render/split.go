package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/moby/sys/atomicwriter"
)

// markerRE matches an output marker line ">> path comment".
var markerRE = regexp.MustCompile(`^>> ([^ ]*)(.*)$`)

// Block is one section of rendered text. An empty Path means standard
// output.
type Block struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Split cuts text into blocks at marker lines. Text before the first marker
// belongs to a block with an empty path. A marker with no lines before the
// next marker yields no block; the last block is always emitted.
func Split(text string) []Block {
	var blocks []Block
	var lines []string
	path := ""

	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		if m := markerRE.FindStringSubmatch(line); m != nil {
			if len(lines) > 0 {
				blocks = append(blocks, Block{Path: path, Content: strings.Join(lines, "\n")})
				lines = nil
			}
			path = m[1]
			continue
		}
		lines = append(lines, line)
	}

	return append(blocks, Block{Path: path, Content: strings.Join(lines, "\n")})
}

// WriteBlocks writes each block below dir, replacing files atomically.
// Blocks without a path go to stdout followed by a newline. Relative block
// paths are resolved against dir; paths escaping dir are rejected. It returns
// the written destinations, with "STDOUT" for stdout blocks.
func WriteBlocks(dir string, blocks []Block, stdout io.Writer) ([]string, error) {
	written := make([]string, 0, len(blocks))

	for _, b := range blocks {
		if b.Path == "" {
			if _, err := fmt.Fprintln(stdout, b.Content); err != nil {
				return written, fmt.Errorf("failed to write block to stdout: %w", err)
			}
			written = append(written, "STDOUT")
			continue
		}

		dest, err := resolve(dir, b.Path)
		if err != nil {
			return written, err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return written, fmt.Errorf("failed to create directory for %s: %w", dest, err)
		}
		if err := atomicwriter.WriteFile(dest, []byte(b.Content), 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", dest, err)
		}
		written = append(written, dest)
	}

	return written, nil
}

func resolve(dir, path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if dir == "" {
		dir = "."
	}
	dest := filepath.Join(dir, path)
	rel, err := filepath.Rel(dir, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("block path %s escapes output directory %s", path, dir)
	}
	return dest, nil
}
