package extract

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfToText pulls text from every readable page of a PDF. Pages that fail
// individually are skipped with a warning so one corrupt page does not lose
// the rest of the document.
func pdfToText(data []byte) (string, []string, error) {
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty pdf payload", ErrUnsupportedFormat)
	}

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return "", nil, fmt.Errorf("%w: pdf parse: %v", ErrUnsupportedFormat, err)
	}

	var (
		allText  strings.Builder
		warnings []string
		skipped  int
	)
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		pageText, ok := pdfPageText(pdfCtx, pageNr)
		if !ok {
			skipped++
			continue
		}
		if pageText == "" {
			continue
		}
		if allText.Len() > 0 {
			allText.WriteByte('\n')
		}
		allText.WriteString(pageText)
	}

	if skipped > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"%d of %d pdf pages could not be read", skipped, pdfCtx.PageCount))
	}
	return allText.String(), warnings, nil
}

// pdfPageText extracts one page's text via its content stream. The bool is
// false when the page stream itself is unreadable, as opposed to merely
// containing no text.
func pdfPageText(pdfCtx *model.Context, pageNr int) (string, bool) {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil || r == nil {
		return "", false
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", false
	}
	return textFromContentStream(data), true
}

// pdfLiteralRe matches PDF string literals: (text here)
var pdfLiteralRe = regexp.MustCompile(`\(([^)]*)\)`)

// textFromContentStream walks content stream operators, collecting the
// string arguments of the text-showing operators Tj, TJ and '.
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfLiteralRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfLiteralRe.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodePDFLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// decodePDFLiteral resolves backslash escapes, including octal byte codes.
func decodePDFLiteral(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(c)
		default:
			if c >= '0' && c <= '7' {
				val := int(c - '0')
				for j := 0; j < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; j++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}
