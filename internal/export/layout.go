package export

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/font"
	"golang.org/x/text/encoding/charmap"
)

const (
	// Title is the fixed heading of every exported report.
	Title = "Medical Report Analysis"

	// DateLayout renders the generation date as month/day/year.
	DateLayout = "1/2/2006"

	pointsPerMM = 72 / 25.4
)

type paper struct {
	width, height float64
}

var papers = map[string]paper{
	"A4":     {595.28, 841.89},
	"Letter": {612, 792},
}

func mm(v float64) float64 {
	return v * pointsPerMM
}

// Role identifies what a laid out line represents.
type Role string

const (
	RoleTitle Role = "title"
	RoleDate  Role = "date"
	RoleBody  Role = "body"
)

// Line is one positioned line of text. X and Y locate the baseline start in
// points, with Y measured from the top edge of the page.
type Line struct {
	Role Role
	Text string
	X, Y float64
	Size int
}

// Page is one laid out page.
type Page struct {
	Number int
	Lines  []Line
}

// Body returns the body lines of the page.
func (p Page) Body() []string {
	var out []string
	for _, l := range p.Lines {
		if l.Role == RoleBody {
			out = append(out, l.Text)
		}
	}
	return out
}

// Layout positions the title, the generation date and the word-wrapped
// narrative across as many pages as needed.
func (e *Exporter) Layout(text string, date time.Time) ([]Page, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyNarrative
	}
	if err := encodable(text); err != nil {
		return nil, err
	}

	p := papers[e.cfg.Paper]
	margin := mm(e.cfg.MarginMM)
	bottom := p.height - margin
	step := float64(e.cfg.BodySize) * e.cfg.LineHeight

	page := Page{
		Number: 1,
		Lines: []Line{
			{Role: RoleTitle, Text: Title, X: margin, Y: margin, Size: e.cfg.TitleSize},
			{Role: RoleDate, Text: "Generated on: " + date.Format(DateLayout), X: margin, Y: margin + mm(10), Size: e.cfg.DateSize},
		},
	}
	y := margin + mm(20)

	var pages []Page
	for _, line := range e.Wrap(text) {
		if y > bottom {
			pages = append(pages, page)
			page = Page{Number: page.Number + 1}
			y = margin
		}
		page.Lines = append(page.Lines, Line{Role: RoleBody, Text: line, X: margin, Y: y, Size: e.cfg.BodySize})
		y += step
	}
	pages = append(pages, page)

	return pages, nil
}

// Width returns the usable body width in points.
func (e *Exporter) Width() float64 {
	return papers[e.cfg.Paper].width - 2*mm(e.cfg.MarginMM)
}

// Wrap splits text into lines no wider than the body width. Line breaks in
// text are kept; words wider than a full line are split between characters.
func (e *Exporter) Wrap(text string) []string {
	text = strings.TrimRight(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	limit := e.Width()

	var lines []string
	for para := range strings.SplitSeq(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := ""
		for _, word := range words {
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if e.measure(candidate) <= limit {
				current = candidate
				continue
			}

			if current != "" {
				lines = append(lines, current)
			}
			for e.measure(word) > limit {
				head, tail := e.split(word, limit)
				lines = append(lines, head)
				word = tail
			}
			current = word
		}
		lines = append(lines, current)
	}

	return lines
}

func (e *Exporter) measure(s string) float64 {
	return font.TextWidth(s, e.cfg.Font, e.cfg.BodySize)
}

// split returns the longest prefix of word that fits limit, keeping at
// least one character so progress is guaranteed.
func (e *Exporter) split(word string, limit float64) (string, string) {
	_, first := utf8.DecodeRuneInString(word)
	end := first
	for end < len(word) {
		_, w := utf8.DecodeRuneInString(word[end:])
		if e.measure(word[:end+w]) > limit {
			break
		}
		end += w
	}
	return word[:end], word[end:]
}

// encodable reports the characters of text that the core fonts cannot draw.
// Core fonts use WinAnsi (Windows-1252) encoding and the renderer would
// replace anything else with a blank.
func encodable(text string) error {
	var missing []rune
	for _, r := range text {
		if _, ok := charmap.Windows1252.EncodeRune(r); ok || slices.Contains(missing, r) {
			continue
		}
		missing = append(missing, r)
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedCharacters, string(missing))
}
