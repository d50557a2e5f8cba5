package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
	"github.com/gomutex/godocx/wml/ctypes"
	"github.com/gomutex/godocx/wml/stypes"
)

// A4 in twentieths of a point, 2 cm margins.
const (
	a4Width    uint64 = 11906
	a4Height   uint64 = 16838
	pageMargin        = 1134
)

// RenderDOCX writes d as a Word document: title page, table of contents,
// then one page per section.
func RenderDOCX(w io.Writer, d Document) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("create docx failed: %w", err)
	}

	if err := docxTitlePage(doc, d); err != nil {
		return err
	}
	doc.AddPageBreak()

	if _, err := doc.AddHeading("Inhaltsverzeichnis", 1); err != nil {
		return fmt.Errorf("add docx heading failed: %w", err)
	}
	for i, s := range d.Sections {
		doc.AddParagraph(numberedTitle(i, s.Title)).Justification(stypes.JustificationLeft)
	}
	doc.AddPageBreak()

	for i, s := range d.Sections {
		if _, err := doc.AddHeading(numberedTitle(i, s.Title), 1); err != nil {
			return fmt.Errorf("add docx heading failed: %w", err)
		}
		for _, block := range ParseContent(s.Content) {
			if block.Heading {
				if _, err := doc.AddHeading(block.Text, 2); err != nil {
					return fmt.Errorf("add docx heading failed: %w", err)
				}
				continue
			}
			p := doc.AddEmptyParagraph()
			p.Justification(stypes.JustificationBoth)
			addLines(p, block.Text)
		}
		if i < len(d.Sections)-1 {
			doc.AddPageBreak()
		}
	}

	useA4(doc)
	if err := doc.Write(w); err != nil {
		return fmt.Errorf("write docx failed: %w", err)
	}
	return nil
}

func docxTitlePage(doc *docx.RootDoc, d Document) error {
	title, err := doc.AddHeading(d.title(), 0)
	if err != nil {
		return fmt.Errorf("add docx title failed: %w", err)
	}
	title.Justification(stypes.JustificationCenter)
	doc.AddEmptyParagraph()
	doc.AddEmptyParagraph()

	centered(doc, "Förderantrag").Size(16)
	doc.AddEmptyParagraph()
	if d.GrantName != "" {
		centered(doc, "Förderprogramm: "+d.GrantName).Size(14)
	}
	doc.AddEmptyParagraph()
	doc.AddEmptyParagraph()

	applicant := doc.AddEmptyParagraph()
	applicant.AddText("Antragsteller:").Bold(true)
	applicant.AddRun().AddBreak(nil)
	applicant.AddText(d.company())
	if d.CompanyLocation != "" {
		applicant.AddRun().AddBreak(nil)
		applicant.AddText(d.CompanyLocation)
	}
	doc.AddEmptyParagraph()
	centered(doc, d.dateLine())
	return nil
}

func centered(doc *docx.RootDoc, text string) *docx.Run {
	p := doc.AddEmptyParagraph()
	p.Justification(stypes.JustificationCenter)
	return p.AddText(text)
}

// addLines keeps single line breaks inside a paragraph.
func addLines(p *docx.Paragraph, text string) {
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			p.AddRun().AddBreak(nil)
		}
		p.AddText(line)
	}
}

func useA4(doc *docx.RootDoc) {
	body := doc.Document.Body
	if body.SectPr == nil {
		body.SectPr = ctypes.NewSectionProper()
	}
	width, height := a4Width, a4Height
	margin := pageMargin
	body.SectPr.PageSize = &ctypes.PageSize{Width: &width, Height: &height}
	body.SectPr.PageMargin = &ctypes.PageMargin{
		Top:    &margin,
		Right:  &margin,
		Bottom: &margin,
		Left:   &margin,
	}
}
