package directory

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bastiangx/mentionserve/internal/utils"
	"github.com/charmbracelet/log"
)

var ErrUnsupportedFormat = errors.New("unsupported directory format")

// FileFormat represents the directory file formats LoadFile understands
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatText               // one name per line, '#' comments
	FormatTOML               // entities = ["..."]
)

var formatExtensions = map[string]FileFormat{
	".txt":  FormatText,
	".list": FormatText,
	".toml": FormatTOML,
}

// tomlDirectory is the layout of a .toml directory file
type tomlDirectory struct {
	Entities []string `toml:"entities"`
}

// DetectFormat picks a format from the file extension.
func DetectFormat(path string) FileFormat {
	return formatExtensions[strings.ToLower(filepath.Ext(path))]
}

// LoadFile reads entity names from path. Names that differ only in case are
// kept once, first occurrence wins.
func LoadFile(path string) ([]string, error) {
	var names []string

	switch DetectFormat(path) {
	case FormatText:
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open directory file %s: %w", path, err)
		}
		defer file.Close()
		if names, err = parseText(file); err != nil {
			return nil, fmt.Errorf("failed to read directory file %s: %w", path, err)
		}
	case FormatTOML:
		var dir tomlDirectory
		if _, err := toml.DecodeFile(path, &dir); err != nil {
			return nil, fmt.Errorf("failed to parse directory file %s: %w", path, err)
		}
		names = dir.Entities
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	filter := utils.NewDuplicateFilter()
	unique := names[:0]
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || !filter.ShouldInclude(name) {
			continue
		}
		unique = append(unique, name)
	}

	if dropped := len(names) - len(unique); dropped > 0 {
		log.Debugf("Dropped %d empty or duplicate entries from %s", dropped, path)
	}
	return unique, nil
}

func parseText(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, scanner.Err()
}
