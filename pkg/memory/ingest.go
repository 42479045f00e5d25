// Copyright 2025 The CortexKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// excelCellLimit caps extraction per sheet so spreadsheets cannot flood
// the store.
const excelCellLimit = 1000

// Parser extracts plain text from one document format.
type Parser interface {
	// Extensions returns the lowercase file extensions handled,
	// including the dot.
	Extensions() []string

	// Parse extracts the text content of the file.
	Parse(path string) (string, error)
}

// IngestResult reports one file's outcome.
type IngestResult struct {
	Path     string `json:"path"`
	MemoryID string `json:"memory_id,omitempty"`
	Error    string `json:"error,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
}

// parsers maps extensions to their parser. Plain text formats share one
// parser.
var parsers = buildParserRegistry()

func buildParserRegistry() map[string]Parser {
	registry := make(map[string]Parser)
	for _, p := range []Parser{&pdfParser{}, &docxParser{}, &xlsxParser{}, &textParser{}} {
		for _, ext := range p.Extensions() {
			registry[ext] = p
		}
	}
	return registry
}

// IngestPath stores a file, or every supported file under a directory,
// as semantic memories tagged with the source path. Unsupported files
// are skipped; per-file failures are reported, not fatal.
func (s *Store) IngestPath(ctx context.Context, path string) ([]IngestResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	var files []string
	if info.IsDir() {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			files = append(files, p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
	} else {
		files = []string{path}
	}

	results := make([]IngestResult, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.ingestFile(ctx, file))
	}

	s.audit(ctx, "ingest", fmt.Sprintf("path=%s files=%d", path, len(results)))
	return results, nil
}

func (s *Store) ingestFile(ctx context.Context, path string) IngestResult {
	result := IngestResult{Path: path}

	parser, ok := parsers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		result.Skipped = true
		return result
	}

	content, err := parser.Parse(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if strings.TrimSpace(content) == "" {
		result.Skipped = true
		return result
	}

	id, err := s.Write(ctx, WriteRequest{
		Kind:       KindSemantic,
		Text:       content,
		Tags:       []string{"ingested", filepath.Base(path)},
		Importance: 0.5,
		Consent:    true,
		Privacy:    PrivacyLow,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.MemoryID = id
	return result
}

type pdfParser struct{}

func (p *pdfParser) Extensions() []string { return []string{".pdf"} }

func (p *pdfParser) Parse(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat PDF: %w", err)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	var parts []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

type docxParser struct{}

func (p *docxParser) Extensions() []string { return []string{".docx"} }

func (p *docxParser) Parse(path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open Word document: %w", err)
	}
	defer doc.Close()
	return doc.Editable().GetContent(), nil
}

type xlsxParser struct{}

func (p *xlsxParser) Extensions() []string { return []string{".xlsx"} }

func (p *xlsxParser) Parse(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	var parts []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Sheet %s:\n", sheet)
		cells := 0
		for _, row := range rows {
			if cells >= excelCellLimit {
				break
			}
			var values []string
			for _, cell := range row {
				if text := strings.TrimSpace(cell); text != "" {
					values = append(values, text)
					cells++
				}
				if cells >= excelCellLimit {
					break
				}
			}
			if len(values) > 0 {
				b.WriteString(strings.Join(values, " | "))
				b.WriteByte('\n')
			}
		}
		if cells > 0 {
			parts = append(parts, b.String())
		}
	}
	return strings.Join(parts, "\n"), nil
}

type textParser struct{}

func (p *textParser) Extensions() []string {
	return []string{".txt", ".md", ".markdown", ".rst", ".log"}
}

func (p *textParser) Parse(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}
