package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin     = 20.0
	pdfLineHeight = 5.5
)

// RenderPDF writes d as an A4 PDF. Text is mapped to cp1252 so German
// umlauts and the euro sign render with the core fonts.
func RenderPDF(w io.Writer, d Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(d.title(), true)
	pdf.SetAuthor("FörderScout", true)
	pdf.SetCreator("FörderScout", true)
	if !d.Date.IsZero() {
		pdf.SetCreationDate(d.Date)
	}

	pdf.SetFooterFunc(func() {
		if pdf.PageNo() == 1 {
			return
		}
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s - Seite %d", tr(d.title()), pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	// title page
	pdf.AddPage()
	pdf.Ln(60)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.MultiCell(0, 11, tr(d.title()), "", "C", false)
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 16)
	pdf.MultiCell(0, 8, tr("Förderantrag"), "", "C", false)
	if d.GrantName != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 14)
		pdf.MultiCell(0, 7, tr("Förderprogramm: "+d.GrantName), "", "C", false)
	}
	pdf.Ln(30)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.MultiCell(0, pdfLineHeight, tr("Antragsteller:"), "", "C", false)
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, pdfLineHeight, tr(d.company()), "", "C", false)
	if d.CompanyLocation != "" {
		pdf.MultiCell(0, pdfLineHeight, tr(d.CompanyLocation), "", "C", false)
	}
	pdf.Ln(10)
	pdf.MultiCell(0, pdfLineHeight, tr(d.dateLine()), "", "C", false)

	// table of contents
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr("Inhaltsverzeichnis"), "", "L", false)
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 11)
	for i, s := range d.Sections {
		pdf.MultiCell(0, 7, tr(numberedTitle(i, s.Title)), "", "L", false)
	}

	for i, s := range d.Sections {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 18)
		pdf.MultiCell(0, 9, tr(numberedTitle(i, s.Title)), "", "L", false)
		pdf.Ln(3)
		for _, block := range ParseContent(s.Content) {
			if block.Heading {
				pdf.Ln(2)
				pdf.SetFont("Helvetica", "B", 14)
				pdf.MultiCell(0, 7, tr(block.Text), "", "L", false)
				pdf.Ln(1)
				continue
			}
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, pdfLineHeight, tr(block.Text), "", "J", false)
			pdf.Ln(3)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf failed: %w", err)
	}
	return nil
}
