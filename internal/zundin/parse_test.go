package zundin

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zonePage = `<!DOCTYPE html>
<html><head><title>Rydsvallen</title></head>
<body>
<div id="zoneInfo"><table><tr><td>not this one</td></tr></table></div>
<div id="roundTakeovers">
  <h3>Takeovers this round</h3>
  <table>
    <tr><th>User</th><th>Points</th><th>Duration</th><th>Date</th></tr>
    <tr><td> sprintern </td><td>125</td><td>04:00:00</td>
        <td><script>document.write(formatDate("2024-05-06 14:00:00 UTC"));</script></td></tr>
    <tr><td>lindholmen</td><td>125</td><td>02:00:00</td>
        <td><script>document.write(formatDate("2024-05-05 13:00:00 UTC"));</script></td></tr>
    <tr><td>assistant</td><td>50</td><td>-</td>
        <td>2024-05-05 13:00:00</td></tr>
    <tr><td>marathon</td><td>125</td><td>1d 02:00:00</td>
        <td>2024-05-08 09:30:15</td></tr>
    <tr><td colspan="2">Total</td><td>4</td><td></td></tr>
  </table>
</div>
</body></html>`

func TestParseTakeovers(t *testing.T) {
	records, err := ParseTakeovers(strings.NewReader(zonePage), time.UTC)
	require.NoError(t, err)
	require.Len(t, records, 4)

	// chronological, ties keep page order
	assert.Equal(t, "lindholmen", records[0].Holder)
	assert.Equal(t, "assistant", records[1].Holder)
	assert.Equal(t, "sprintern", records[2].Holder)
	assert.Equal(t, "marathon", records[3].Holder)

	assert.Equal(t, 125, records[0].Points)
	assert.Equal(t, 2*time.Hour, records[0].Duration)
	assert.Equal(t, time.Date(2024, 5, 5, 13, 0, 0, 0, time.UTC), records[0].Timestamp)

	assert.True(t, records[1].IsAssist())
	assert.Equal(t, 50, records[1].Points)

	assert.Equal(t, 26*time.Hour, records[3].Duration)
	assert.Equal(t, time.Date(2024, 5, 8, 9, 30, 15, 0, time.UTC), records[3].Timestamp)
}

func TestParseTakeoversLocation(t *testing.T) {
	cest := time.FixedZone("CEST", 2*60*60)

	records, err := ParseTakeovers(strings.NewReader(zonePage), cest)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 5, 11, 0, 0, 0, time.UTC), records[0].Timestamp.UTC())
}

func TestParseTakeoversNoTable(t *testing.T) {
	records, err := ParseTakeovers(strings.NewReader(`<html><body><p>Unknown zone</p></body></html>`), time.UTC)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestParseTakeoversHeaderAndFooterOnly(t *testing.T) {
	page := `<div id="roundTakeovers"><table>
<tr><th>User</th></tr>
<tr><td>Total</td></tr>
</table></div>`

	records, err := ParseTakeovers(strings.NewReader(page), time.UTC)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseTakeoversBadRow(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"bad points", `<tr><td>a</td><td>many</td><td>01:00:00</td><td>2024-05-05 13:00:00</td></tr>`},
		{"bad duration", `<tr><td>a</td><td>10</td><td>forever</td><td>2024-05-05 13:00:00</td></tr>`},
		{"no timestamp", `<tr><td>a</td><td>10</td><td>01:00:00</td><td>soon</td></tr>`},
		{"missing cells", `<tr><td>a</td><td>10</td></tr>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := `<div id="roundTakeovers"><table><tr><th>h</th></tr>` + tt.row + `<tr><td>f</td></tr></table></div>`
			records, err := ParseTakeovers(strings.NewReader(page), time.UTC)
			assert.Error(t, err)
			assert.Nil(t, records)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"-", 0},
		{"  - ", 0},
		{"04:00:00", 4 * time.Hour},
		{"123:05:09", 123*time.Hour + 5*time.Minute + 9*time.Second},
		{"45:30", 45*time.Minute + 30*time.Second},
		{"2d 01:00:00", 49 * time.Hour},
		{"1d 2h 3m 4s", 26*time.Hour + 3*time.Minute + 4*time.Second},
		{"3h", 3 * time.Hour},
		{"5m 10s", 5*time.Minute + 10*time.Second},
		{"1h30m", 90 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDurationInvalid(t *testing.T) {
	for _, in := range []string{"forever", "1:2:3:4", "10:75", "01:00:00 2d", "3x", "-5:00", "a:b"} {
		_, err := ParseDuration(in)
		assert.Error(t, err, "input %q", in)
	}
}
