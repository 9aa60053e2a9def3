package file

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListFiles returns the regular files directly under dir whose extension
// matches one of exts (case-insensitive, with or without the leading dot).
// The result is sorted by path so runs process files in a stable order.
// Subdirectories are not descended into.
func ListFiles(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	want := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		want[e] = struct{}{}
	}

	var out []string
	for _, ent := range entries {
		if !ent.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(ent.Name()))
		if _, ok := want[ext]; !ok {
			continue
		}
		out = append(out, filepath.Join(dir, ent.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// ReadList reads a text file with one input path per line. Empty lines and
// lines starting with '#' (after trimming) are skipped; order is preserved.
// Relative paths are resolved against the list file's directory.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base := filepath.Dir(path)
	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
