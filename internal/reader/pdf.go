package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Saksham338101/menu-scanner1/internal/extract"
)

// loadPDF extracts the embedded images of a PDF menu using pdfcpu. Scanned
// menus carry one image per page.
func loadPDF(path string) ([]Page, error) {
	tmpDir, err := os.MkdirTemp("", "menuscan-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ExtractImagesFile(path, tmpDir, nil, conf); err != nil {
		return nil, fmt.Errorf("extract PDF images from %q: %w", path, err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("read temp dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	base := filepath.Base(path)
	var pages []Page
	for _, name := range names {
		mime := imageTypes[strings.ToLower(filepath.Ext(name))]
		if mime == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil || len(data) == 0 {
			continue
		}
		pages = append(pages, Page{Source: base + "#" + name, Image: extract.Image{Data: data, MIMEType: mime}})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no images found in PDF %q", path)
	}
	return pages, nil
}
