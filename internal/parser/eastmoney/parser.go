// Package eastmoney parses the fund NAV history payloads served by the
// eastmoney F10 data API, plus the bare HTML table dialect used by mirror
// sources. Parsing is pure and stateless.
package eastmoney

import (
	"fmt"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/realtime-nav-crawler/internal/crawler"
)

// noDataMarker is the placeholder row upstream renders for an empty history.
const noDataMarker = "暂无数据"

var (
	contentPattern = regexp.MustCompile(`content:\s*"((?:[^"\\]|\\.)*)"`)
	recordsPattern = regexp.MustCompile(`records:\s*(\d+)`)
	pagesPattern   = regexp.MustCompile(`pages:\s*(\d+)`)

	jsUnescaper = strings.NewReplacer(`\"`, `"`, `\/`, `/`, `\\`, `\`, `\n`, "\n", `\t`, "\t")
)

// Parser implements crawler.Parser.
type Parser struct{}

// New returns a Parser.
func New() *Parser {
	return &Parser{}
}

// Parse extracts observations from a payload. The envelope form is
//
//	var apidata={ content:"<table>…</table>",records:123,pages:7,curpage:1};
//
// and a bare <table> document is accepted as well. Observations are returned
// without an entity id; the store stamps it.
func (p *Parser) Parse(payload []byte) (crawler.ParsedPage, error) {
	page := crawler.ParsedPage{TotalRecords: -1, TotalPages: -1}
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return page, crawler.ErrNoData
	}

	markup := text
	if isEnvelope(text) {
		page.TotalRecords = intField(recordsPattern, text)
		page.TotalPages = intField(pagesPattern, text)
		if page.TotalRecords == 0 {
			return page, crawler.ErrNoData
		}
		m := contentPattern.FindStringSubmatch(text)
		if m == nil {
			return page, fmt.Errorf("%w: envelope has no content field", crawler.ErrMalformedPayload)
		}
		markup = html.UnescapeString(jsUnescaper.Replace(m[1]))
		if strings.TrimSpace(markup) == "" {
			return page, crawler.ErrNoData
		}
	}

	lower := strings.ToLower(markup)
	if !strings.Contains(lower, "<tr") {
		if strings.Contains(markup, noDataMarker) {
			return page, crawler.ErrNoData
		}
		return page, fmt.Errorf("%w: no table rows", crawler.ErrMalformedPayload)
	}
	if !strings.Contains(lower, "<table") {
		markup = "<table>" + markup + "</table>"
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return page, fmt.Errorf("%w: %w", crawler.ErrMalformedPayload, err)
	}

	noData := false
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 4 {
			if strings.Contains(tr.Text(), noDataMarker) {
				noData = true
			}
			return
		}
		date, err := NormalizeDate(cellText(cells, 0))
		if err != nil {
			page.Skipped++
			return
		}
		page.Observations = append(page.Observations, crawler.Observation{
			Date:       date,
			Value:      ParseNumber(cellText(cells, 1)),
			Cumulative: ParseNumber(cellText(cells, 2)),
			Change:     ParseNumber(cellText(cells, 3)),
		})
	})

	if len(page.Observations) == 0 && page.Skipped == 0 {
		if noData {
			return page, crawler.ErrNoData
		}
		return page, fmt.Errorf("%w: table has no data rows", crawler.ErrMalformedPayload)
	}
	return page, nil
}

func isEnvelope(text string) bool {
	return strings.Contains(text, "apidata") || strings.Contains(text, "content:") ||
		recordsPattern.MatchString(text)
}

func cellText(cells *goquery.Selection, i int) string {
	return strings.TrimSpace(cells.Eq(i).Text())
}

func intField(pattern *regexp.Regexp, text string) int {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}

// ParseNumber converts a NAV cell to a float. Percent signs, thousands
// separators and surrounding space are ignored; placeholders such as "--" and
// anything unparseable yield nil.
func ParseNumber(raw string) *float64 {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || strings.Trim(s, "-") == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
