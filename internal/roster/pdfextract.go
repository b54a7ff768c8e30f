package roster

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	appLog "rostercal/internal/log"
)

// MaxFileBytes caps the size of an input roster document.
const MaxFileBytes = 50 << 20 // 50 MB

// TextExtractor turns a raw document into text lines for the parser. The
// parsing core only ever sees lines, so it can be tested without a real
// PDF library behind it.
type TextExtractor interface {
	ExtractLines(r io.ReaderAt, size int64) ([]string, error)
}

// PDFExtractor extracts text lines from a roster PDF, reconstructing rows
// from positioned glyph runs.
type PDFExtractor struct {
	// MaxBytes overrides MaxFileBytes when positive.
	MaxBytes int64
}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractLines implements TextExtractor.
func (e *PDFExtractor) ExtractLines(r io.ReaderAt, size int64) (lines []string, err error) {
	maxBytes := int64(MaxFileBytes)
	if e.MaxBytes > 0 {
		maxBytes = e.MaxBytes
	}
	if size > maxBytes {
		return nil, fmt.Errorf("roster: file of %d bytes exceeds the %d byte limit", size, maxBytes)
	}

	// The underlying reader panics on malformed xref tables; surface that
	// as a normal error.
	defer func() {
		if p := recover(); p != nil {
			lines = nil
			err = fmt.Errorf("roster: unreadable PDF: %v", p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("roster: unreadable PDF: %w", err)
	}

	total := reader.NumPage()
	for pageNum := 1; pageNum <= total; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageLines, perr := pageToLines(page)
		if perr != nil {
			// A single bad page should not sink the document.
			appLog.Warn("skipping unreadable PDF page", "page", pageNum, "err", perr)
			continue
		}
		lines = append(lines, pageLines...)
	}

	if len(lines) == 0 {
		return nil, &StructureError{Reason: "no text could be extracted from the PDF"}
	}
	return lines, nil
}

// ExtractFile is a convenience wrapper for on-disk documents.
func (e *PDFExtractor) ExtractFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("roster: open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("roster: stat %s: %w", path, err)
	}
	return e.ExtractLines(f, st.Size())
}

// pageToLines groups a page's text runs into rows by their vertical
// position and orders each row left to right.
func pageToLines(page pdf.Page) ([]string, error) {
	content := page.Content()

	rows := make(map[int][]pdf.Text)
	keys := make([]int, 0)
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		y := int(math.Round(t.Y))
		if _, seen := rows[y]; !seen {
			keys = append(keys, y)
		}
		rows[y] = append(rows[y], t)
	}

	// PDF user space has its origin at the bottom left, so higher Y comes
	// first.
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))

	lines := make([]string, 0, len(keys))
	for _, y := range keys {
		runs := rows[y]
		sort.Slice(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

		var b strings.Builder
		lastEnd := math.Inf(-1)
		for _, t := range runs {
			// A horizontal gap between runs is a column boundary.
			if b.Len() > 0 && t.X-lastEnd > 1.0 && !strings.HasSuffix(b.String(), " ") {
				b.WriteByte(' ')
			}
			b.WriteString(t.S)
			lastEnd = t.X + t.W
		}
		lines = append(lines, b.String())
	}
	return lines, nil
}

// ValidateStructure rejects documents that cannot be a roster before any
// row-level parsing happens.
func ValidateStructure(lines []string) error {
	if len(lines) < 3 {
		return &StructureError{Reason: "document has fewer than 3 lines"}
	}
	for _, line := range lines {
		if strings.Contains(line, "C/I") || strings.Contains(line, "C/O") {
			return nil
		}
	}
	return &StructureError{Reason: "no check-in/check-out markers found; not a roster document"}
}
