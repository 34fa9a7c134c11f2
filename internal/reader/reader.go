// Package reader loads menu photos and PDF menus from disk.
package reader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Saksham338101/menu-scanner1/internal/extract"
)

// ErrUnsupportedFormat is returned when a file format is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Page is one image ready for extraction.
type Page struct {
	// Source names the file, and the embedded image for PDFs.
	Source string
	Image  extract.Image
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// LoadFiles loads every path in order. Directories are expanded one level.
func LoadFiles(paths ...string) ([]Page, error) {
	var pages []Page
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", p, err)
		}
		var got []Page
		if info.IsDir() {
			got, err = LoadDirectory(p)
		} else {
			got, err = LoadFile(p)
		}
		if err != nil {
			return nil, err
		}
		pages = append(pages, got...)
	}
	return pages, nil
}

// LoadDirectory reads all supported files from a directory.
func LoadDirectory(dir string) ([]Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %q: %w", dir, err)
	}

	var pages []Page
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		ext := strings.ToLower(filepath.Ext(entry.Name()))

		switch {
		case ext == ".pdf":
			got, err := loadPDF(path)
			if err != nil {
				// Log and skip PDFs that can't be read
				fmt.Fprintf(os.Stderr, "warning: skipping PDF %q: %v\n", path, err)
				continue
			}
			pages = append(pages, got...)
		case imageTypes[ext] != "":
			page, err := loadImage(path)
			if err != nil {
				return nil, err
			}
			pages = append(pages, page)
		}
	}
	return pages, nil
}

// LoadFile reads a single image or every image embedded in a PDF.
func LoadFile(path string) ([]Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return loadPDF(path)
	case imageTypes[ext] != "":
		page, err := loadImage(path)
		if err != nil {
			return nil, err
		}
		return []Page{page}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func loadImage(path string) (Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Page{}, fmt.Errorf("read file %q: %w", path, err)
	}
	if len(data) == 0 {
		return Page{}, fmt.Errorf("image %q is empty", path)
	}
	return Page{
		Source: filepath.Base(path),
		Image: extract.Image{
			Data:     data,
			MIMEType: imageTypes[strings.ToLower(filepath.Ext(path))],
		},
	}, nil
}
