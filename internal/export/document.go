package export

import (
	"fmt"
	"strings"
	"time"
)

// Document is the render input for a full application export.
type Document struct {
	ProjectTitle    string
	GrantName       string
	CompanyName     string
	CompanyLocation string
	Date            time.Time
	Sections        []Section
}

type Section struct {
	Title   string
	Content string
}

// Block is a paragraph or a sub-heading inside a section.
type Block struct {
	Heading bool
	Text    string
}

// ParseContent splits section text on blank lines. Paragraphs starting with
// "##" become sub-headings.
func ParseContent(content string) []Block {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var blocks []Block
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if strings.HasPrefix(para, "##") {
			blocks = append(blocks, Block{Heading: true, Text: strings.TrimSpace(strings.TrimLeft(para, "#"))})
			continue
		}
		blocks = append(blocks, Block{Text: stripEmphasis(para)})
	}
	return blocks
}

func (d Document) title() string {
	if strings.TrimSpace(d.ProjectTitle) == "" {
		return "Förderantrag"
	}
	return d.ProjectTitle
}

func (d Document) company() string {
	if strings.TrimSpace(d.CompanyName) == "" {
		return "Firma"
	}
	return d.CompanyName
}

func (d Document) dateLine() string {
	date := d.Date
	if date.IsZero() {
		date = time.Now()
	}
	return "Datum: " + date.Format("02.01.2006")
}

func numberedTitle(i int, title string) string {
	return fmt.Sprintf("%d. %s", i+1, title)
}

func stripEmphasis(s string) string {
	return strings.ReplaceAll(s, "**", "")
}
