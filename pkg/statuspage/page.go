package statuspage

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// FieldError reports a labeled field that is missing from the status
// page, which usually means a firmware update changed the page layout.
type FieldError struct {
	Label string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q not found on status page", e.Label)
}

// FieldSource supplies raw values from a status page. It exists so the
// label-matching strategy can change without touching the extraction
// logic or the collection loop.
type FieldSource interface {
	// Field returns the cell value following the row labeled label.
	Field(label string) (string, error)
	// UptimeSeconds reports seconds since the device last rebooted.
	UptimeSeconds() (int64, error)
}

// The page's refresh script carries the seconds-since-reboot counter.
var uptimePattern = regexp.MustCompile(`wait = (\d*);`)

// Page is the goquery-backed FieldSource for the Hub One's connection
// information page.
type Page struct {
	doc *goquery.Document
	raw string
}

func NewPage(html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Wrap(err, "parse status page")
	}
	return &Page{doc: doc, raw: html}, nil
}

func (p *Page) Field(label string) (string, error) {
	var value string
	found := false
	p.doc.Find("td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if strings.TrimSpace(cell.Text()) != label {
			return true
		}
		value = strings.TrimSpace(cell.Next().Text())
		found = true
		return false
	})
	if !found {
		return "", &FieldError{Label: label}
	}
	return value, nil
}

func (p *Page) UptimeSeconds() (int64, error) {
	match := uptimePattern.FindStringSubmatch(p.raw)
	if match == nil {
		return 0, &FieldError{Label: "uptime counter"}
	}
	seconds, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse uptime seconds")
	}
	return seconds, nil
}
