// Package pdftest builds small, valid text PDFs for tests.
package pdftest

import (
	"fmt"
	"strings"
)

// Build returns a PDF with one page per entry. Each page draws its lines
// top to bottom in Helvetica 12pt. Byte offsets in the xref table are exact.
func Build(pages ...[]string) []byte {
	var b strings.Builder
	offsets := []int{0} // object 0 is the free-list head

	obj := func(body string) {
		offsets = append(offsets, b.Len())
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", len(offsets)-1, body)
	}

	b.WriteString("%PDF-1.4\n")
	// 1 catalog, 2 page tree, 3 font, then a page and its content per page
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<<\n/Type /Catalog\n/Pages 2 0 R\n>>")
	obj(fmt.Sprintf("<<\n/Type /Pages\n/Kids [%s]\n/Count %d\n>>", strings.Join(kids, " "), len(pages)))
	obj("<<\n/Type /Font\n/Subtype /Type1\n/BaseFont /Helvetica\n>>")
	for i, lines := range pages {
		obj(fmt.Sprintf("<<\n/Type /Page\n/Parent 2 0 R\n/MediaBox [0 0 612 792]\n/Contents %d 0 R\n"+
			"/Resources <<\n/Font <<\n/F1 3 0 R\n>>\n>>\n>>", 5+2*i))
		content := contentStream(lines)
		obj(fmt.Sprintf("<<\n/Length %d\n>>\nstream\n%sendstream", len(content), content))
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(offsets))
	for _, off := range offsets[1:] {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<<\n/Size %d\n/Root 1 0 R\n>>\nstartxref\n%d\n%%%%EOF", len(offsets), xref)
	return []byte(b.String())
}

func contentStream(lines []string) string {
	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n14 TL\n72 740 Td\n")
	for i, l := range lines {
		if i > 0 {
			b.WriteString("T*\n")
		}
		fmt.Fprintf(&b, "(%s) Tj\n", escape(l))
	}
	b.WriteString("ET\n")
	return b.String()
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`).Replace(s)
}
