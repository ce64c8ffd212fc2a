package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"forecast_agent/pkg/core/logger"
)

// Page is the decoded text of one PDF page.
type Page struct {
	Number int
	Text   string
}

// readPDF returns the text of every page that has any. Files the text reader
// rejects (broken xref tables, owner-password encryption) are rewritten with
// pdfcpu and read once more.
func readPDF(path string) ([]Page, error) {
	pages, err := plainTextPages(path)
	if err == nil {
		return pages, nil
	}

	logger.Log.Debugf("[PDF] %s not readable as is (%v), rewriting with pdfcpu", filepath.Base(path), err)
	rewritten, cleanup, rerr := rewritePDF(path)
	if rerr != nil {
		return nil, errors.Join(err, rerr)
	}
	defer cleanup()

	pages, err = plainTextPages(rewritten)
	if err != nil {
		return nil, fmt.Errorf("failed to read rewritten PDF %s: %w", path, err)
	}
	return pages, nil
}

// plainTextPages decodes each page with its fonts' encodings. The reader
// panics on some malformed streams, so panics become errors here.
func plainTextPages(path string) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("panic during PDF extraction: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer f.Close()

	total := r.NumPage()
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, perr := page.GetPlainText(nil)
		if perr != nil {
			logger.Log.Warnf("[PDF] page %d of %s skipped: %v", i, filepath.Base(path), perr)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, Page{Number: i, Text: text})
		}
	}
	logger.Log.Debugf("[PDF] decoded %d of %d pages from %s", len(pages), total, path)
	return pages, nil
}

// rewritePDF writes a clean copy of path to a temp file: decrypted with the
// empty user password when the file is encrypted, otherwise re-serialized
// with a fresh cross-reference table.
func rewritePDF(path string) (string, func(), error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read PDF %s: %w", path, err)
	}

	dir, err := os.MkdirTemp("", "forecast-pdf-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }
	out := filepath.Join(dir, filepath.Base(path))

	conf := model.NewDefaultConfiguration()
	if pdfCtx.Encrypt != nil {
		err = api.DecryptFile(path, out, conf)
	} else {
		err = api.OptimizeFile(path, out, conf)
	}
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to rewrite PDF %s: %w", path, err)
	}
	return out, cleanup, nil
}
