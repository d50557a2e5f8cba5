package pdfextract

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText reads the entire content of r and extracts plain text from the PDF.
// Returns empty string and nil error if the PDF has no extractable text.
func ExtractText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", nil
	}
	readerAt := bytes.NewReader(b)
	pdfReader, err := pdf.NewReader(readerAt, int64(len(b)))
	if err != nil {
		return "", err
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

var (
	amountSuffix = regexp.MustCompile(`(\d{1,3}(?:\.\d{3})+|\d+)(,\d{1,2})?\s*(?:EUR|Euro|€)`)
	amountPrefix = regexp.MustCompile(`(?:EUR|€)\s*(\d{1,3}(?:\.\d{3})+|\d+)(,\d{1,2})?`)
	fundingWords = []string{"zuwendung", "bewillig", "förder", "zuschuss"}
)

// DetectFundingAmount finds a euro amount in German notation ("123.456,78 EUR",
// "€ 50.000"). Amounts preceded by funding vocabulary win over the largest amount.
func DetectFundingAmount(text string) (float64, bool) {
	type candidate struct {
		value   float64
		keyword bool
	}
	var candidates []candidate

	collect := func(re *regexp.Regexp) {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			integer := text[m[2]:m[3]]
			fraction := ""
			if m[4] >= 0 {
				fraction = text[m[4]+1 : m[5]]
			}
			value, ok := parseGermanAmount(integer, fraction)
			if !ok || value <= 0 {
				continue
			}
			start := m[0] - 120
			if start < 0 {
				start = 0
			}
			context := strings.ToLower(text[start:m[0]])
			keyword := false
			for _, w := range fundingWords {
				if strings.Contains(context, w) {
					keyword = true
					break
				}
			}
			candidates = append(candidates, candidate{value: value, keyword: keyword})
		}
	}
	collect(amountSuffix)
	collect(amountPrefix)

	if len(candidates) == 0 {
		return 0, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		switch {
		case c.keyword && !best.keyword:
			best = c
		case c.keyword == best.keyword && c.value > best.value:
			best = c
		}
	}
	return best.value, true
}

func parseGermanAmount(integer, fraction string) (float64, bool) {
	digits := strings.ReplaceAll(integer, ".", "")
	if fraction != "" {
		digits += "." + fraction
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
