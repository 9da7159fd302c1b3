package render

import (
	"bytes"

	"github.com/go-pdf/fpdf"
)

const pdfLeftMargin = 15

func renderPDF(doc Document, opts PDFOptions) ([]byte, int, error) {
	opts = opts.withDefaults()
	pages := Layout(WrapLines(documentLines(doc), opts.WrapWidth), opts)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetModificationDate(doc.GeneratedAt)
	pdf.SetCatalogSort(true)
	pdf.SetCompression(true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("GenEx", true)
	pdf.SetProducer("GenEx", true)

	// Core fonts are cp1252; translate from UTF-8.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range pages {
		pdf.AddPage()
		for _, pl := range page.Lines {
			if pl.Style == StyleSpacer || pl.Text == "" {
				continue
			}
			switch pl.Style {
			case StyleTitle:
				pdf.SetFont("Helvetica", "B", 18)
			case StyleHeading:
				pdf.SetFont("Helvetica", "B", 13)
			default:
				pdf.SetFont("Helvetica", "", 11)
			}
			pdf.Text(pdfLeftMargin, pl.Y, tr(pl.Text))
		}
	}
	if len(pages) == 0 {
		pdf.AddPage()
	}

	count := pdf.PageCount()

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), count, nil
}
