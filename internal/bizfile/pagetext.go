package bizfile

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

const blockSelector = "p, div, li, tr, td, th, dt, dd, h1, h2, h3, h4, h5, h6, section, article, header, footer, label, table, ul, ol"

// HTMLLines renders an HTML page into its visible, non-empty text lines, one
// per block element.
func HTMLLines(page string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, eris.Wrap(err, "bizfile: parse page html")
	}
	doc.Find("script, style, noscript, template").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.BeforeHtml("\n")
		s.AfterHtml("\n")
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var lines []string
	for _, ln := range strings.Split(root.Text(), "\n") {
		ln = strings.Join(strings.Fields(ln), " ")
		if ln != "" {
			lines = append(lines, ln)
		}
	}
	return lines, nil
}

var agentMarkers = []string{
	"registered agent",
	"agent name",
	"agent authorized",
	"corporate agent",
	"statutory agent",
}

const (
	markerWindow  = 7
	addressWindow = 4
)

// ParsePageText scans rendered page lines for an agent marker followed
// within a few lines by a name, and then by a "CITY, ST" line.
func ParsePageText(lines []string) (Owner, bool) {
	for i, line := range lines {
		if !hasMarker(line) {
			continue
		}
		for j := i + 1; j < len(lines) && j <= i+markerWindow; j++ {
			cand := strings.TrimSpace(lines[j])
			if hasMarker(cand) || !LooksLikeName(cand) {
				continue
			}
			o := Owner{Name: titleCase(cand), State: "CA"}
			for k := j + 1; k < len(lines) && k <= j+addressWindow; k++ {
				if city, st, ok := ParseCityState(lines[k]); ok {
					o.City, o.State = city, st
					break
				}
			}
			return o, true
		}
	}
	return Owner{}, false
}

func hasMarker(line string) bool {
	l := strings.ToLower(line)
	for _, m := range agentMarkers {
		if strings.Contains(l, m) {
			return true
		}
	}
	return false
}
