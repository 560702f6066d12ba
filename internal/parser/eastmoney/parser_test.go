package eastmoney

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-nav-crawler/internal/crawler"
)

const tableHead = "<table class='w782 comm lsjz'><thead><tr><th class='first'>净值日期</th>" +
	"<th>单位净值</th><th>累计净值</th><th>日增长率</th><th>申购状态</th><th>赎回状态</th>" +
	"<th class='tor last'>分红送配</th></tr></thead><tbody>"

func envelope(rows string, records, pages int) []byte {
	return []byte(fmt.Sprintf(
		`var apidata={ content:"%s%s</tbody></table>",records:%d,pages:%d,curpage:1};`,
		tableHead, rows, records, pages,
	))
}

func row(date, nav, cum, change string) string {
	return fmt.Sprintf("<tr><td>%s</td><td class='tor bold'>%s</td><td class='tor bold'>%s</td>"+
		"<td class='tor bold red'>%s</td><td>开放申购</td><td>开放赎回</td><td class='red unbold'></td></tr>",
		date, nav, cum, change)
}

func TestParseEnvelope(t *testing.T) {
	t.Parallel()

	payload := envelope(row("2025-01-02", "1.2345", "1.5000", "0.52%")+row("2024-12-31", "1.2281", "1.4936", "-1.10%"), 57, 3)

	page, err := New().Parse(payload)
	require.NoError(t, err)
	require.Equal(t, 57, page.TotalRecords)
	require.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Observations, 2)
	require.Zero(t, page.Skipped)

	first := page.Observations[0]
	require.Equal(t, "2025-01-02", first.Date)
	require.InDelta(t, 1.2345, *first.Value, 1e-9)
	require.InDelta(t, 1.5, *first.Cumulative, 1e-9)
	require.InDelta(t, 0.52, *first.Change, 1e-9)
	require.InDelta(t, -1.10, *page.Observations[1].Change, 1e-9)
}

func TestParseNullTolerance(t *testing.T) {
	t.Parallel()

	payload := envelope(row("2024-06-18", "1.0000", "1.0000", "--"), 1, 1)

	page, err := New().Parse(payload)
	require.NoError(t, err)
	require.Len(t, page.Observations, 1)
	obs := page.Observations[0]
	require.Nil(t, obs.Change)
	require.NotNil(t, obs.Value)
	require.NotNil(t, obs.Cumulative)
	require.InDelta(t, 1.0, *obs.Value, 1e-9)
}

func TestParseCorruptCellKeepsRow(t *testing.T) {
	t.Parallel()

	payload := envelope(row("2025-01-02", "n/a", "1.5000", "0.10%"), 1, 1)

	page, err := New().Parse(payload)
	require.NoError(t, err)
	require.Len(t, page.Observations, 1)
	require.Nil(t, page.Observations[0].Value)
	require.InDelta(t, 1.5, *page.Observations[0].Cumulative, 1e-9)
	require.InDelta(t, 0.10, *page.Observations[0].Change, 1e-9)
}

func TestParseCorruptRowKeepsPage(t *testing.T) {
	t.Parallel()

	rows := row("2025-01-03", "1.1", "1.2", "0.1%") + row("not-a-date", "1.0", "1.1", "0.2%") + row("2025-01-01", "0.9", "1.0", "0.3%")
	page, err := New().Parse(envelope(rows, 3, 1))
	require.NoError(t, err)
	require.Len(t, page.Observations, 2)
	require.Equal(t, 1, page.Skipped)
	require.Equal(t, "2025-01-01", page.Observations[1].Date)
}

func TestParseEndOfData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{name: "records zero", payload: `var apidata={ content:"` + tableHead +
			`<tr><td colspan='7' align='center'>暂无数据!</td></tr></tbody></table>",records:0,pages:0,curpage:1};`},
		{name: "empty content", payload: `var apidata={ content:"",records:12,pages:1,curpage:2};`},
		{name: "blank body", payload: "   \n"},
		{name: "no data marker only", payload: `<table><tr><td colspan='7'>暂无数据!</td></tr></table>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New().Parse([]byte(tt.payload))
			require.ErrorIs(t, err, crawler.ErrNoData)
			require.False(t, errors.Is(err, crawler.ErrMalformedPayload))
		})
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{name: "html error page", payload: "<html><body><h1>502 Bad Gateway</h1></body></html>"},
		{name: "envelope without content", payload: `var apidata={ records:20,pages:3 };`},
		{name: "table without data rows", payload: `<table><tr><th>date</th></tr></table>`},
		{name: "json", payload: `{"error":"rate limited"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New().Parse([]byte(tt.payload))
			require.ErrorIs(t, err, crawler.ErrMalformedPayload)
			require.False(t, errors.Is(err, crawler.ErrNoData))
		})
	}
}

func TestParseBareTableWithSlashDates(t *testing.T) {
	t.Parallel()

	payload := `<html><body><table id="fundnav">
<tr><th>日期</th><th>单位净值</th><th>累计净值</th><th>涨跌幅</th></tr>
<tr><td> 2025/12/31 </td><td>2.7928</td><td>2.7928</td><td>1.25%</td></tr>
<tr><td>2025/1/2</td><td>1.0010</td><td>1.0010</td><td></td></tr>
</table></body></html>`

	page, err := New().Parse([]byte(payload))
	require.NoError(t, err)
	require.Equal(t, -1, page.TotalRecords)
	require.Len(t, page.Observations, 2)
	require.Equal(t, "2025-12-31", page.Observations[0].Date)
	require.Equal(t, "2025-01-02", page.Observations[1].Date)
	require.Nil(t, page.Observations[1].Change)
}

func TestParseEscapedContent(t *testing.T) {
	t.Parallel()

	content := strings.ReplaceAll(tableHead+row("2025-02-03", "1.0", "1.0", "0.00%")+"</tbody></table>", "'", `\"`)
	payload := []byte(`var apidata={ content:"` + content + `",records:1,pages:1,curpage:1};`)

	page, err := New().Parse(payload)
	require.NoError(t, err)
	require.Len(t, page.Observations, 1)
	require.Equal(t, "2025-02-03", page.Observations[0].Date)
}

func TestNormalizeDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2025-01-02", want: "2025-01-02"},
		{in: "2025-1-2", want: "2025-01-02"},
		{in: "2025/12/31", want: "2025-12-31"},
		{in: "2025/1/2", want: "2025-01-02"},
		{in: "2025.03.04", want: "2025-03-04"},
		{in: "20250506", want: "2025-05-06"},
		{in: "2025年7月8日", want: "2025-07-08"},
		{in: " 2024-02-29 ", want: "2024-02-29"},
		{in: "2025-02-29", wantErr: true},
		{in: "25-01-02", wantErr: true},
		{in: "2025-13-01", wantErr: true},
		{in: "", wantErr: true},
		{in: "--", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeDate(tt.in)
		if tt.wantErr {
			require.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		require.Equal(t, tt.want, got)
	}
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want *float64
	}{
		{in: "1.2345", want: ptr(1.2345)},
		{in: " -0.52% ", want: ptr(-0.52)},
		{in: "1,234.5", want: ptr(1234.5)},
		{in: "--", want: nil},
		{in: "", want: nil},
		{in: "abc", want: nil},
		{in: "NaN", want: nil},
	}
	for _, tt := range tests {
		got := ParseNumber(tt.in)
		if tt.want == nil {
			require.Nil(t, got, "input %q", tt.in)
			continue
		}
		require.NotNil(t, got, "input %q", tt.in)
		require.InDelta(t, *tt.want, *got, 1e-9)
	}
}

func ptr(v float64) *float64 {
	return &v
}
