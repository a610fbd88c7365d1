// Command license maintains the MIT license header on the Go source
// files of this repository.
//
// Usage:
//
//	go run ./tools/license -dir . -list
//	go run ./tools/license -dir .
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const headerMarker = "// MIT License"

var skipDirs = map[string]bool{
	".git":      true,
	"vendor":    true,
	"_examples": true,
}

func main() {
	licenseFile := flag.String("license", "LICENSE", "path to the license text")
	dir := flag.String("dir", ".", "directory to process")
	list := flag.Bool("list", false, "only list files missing a header")
	flag.Parse()

	if err := run(*licenseFile, *dir, *list); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(licenseFile, dir string, listOnly bool) error {
	text, err := os.ReadFile(licenseFile)
	if err != nil {
		return fmt.Errorf("reading license text: %w", err)
	}
	header := commentBlock(string(text))

	missing, err := filesMissingHeader(dir)
	if err != nil {
		return err
	}

	for _, path := range missing {
		if listOnly {
			fmt.Println(path)
			continue
		}
		if err := prependHeader(path, header); err != nil {
			return fmt.Errorf("updating %s: %w", path, err)
		}
		fmt.Printf("added header to %s\n", path)
	}
	return nil
}

// filesMissingHeader walks dir and collects Go source files that do not
// start with the license marker. Generated files are skipped.
func filesMissingHeader(dir string) ([]string, error) {
	var missing []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, ".pb.go") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(string(data), headerMarker) {
			missing = append(missing, path)
		}
		return nil
	})
	return missing, err
}

// commentBlock turns the license text into a line-comment block followed
// by a blank line.
func commentBlock(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if line == "" {
			b.WriteString("//\n")
			continue
		}
		b.WriteString("// ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func prependHeader(path, header string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append([]byte(header), data...), info.Mode())
}
