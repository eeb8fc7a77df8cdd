package zundin

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"turf-assistant/internal/models"
)

// TimeLayout is the timestamp format used in takeover tables
const TimeLayout = "2006-01-02 15:04:05"

const takeoverTableID = "roundTakeovers"

var (
	timestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)
	unitTokenPattern = regexp.MustCompile(`^(?:\d+[dhms])+$`)
	unitPartPattern  = regexp.MustCompile(`(\d+)([dhms])`)
)

var errBadDuration = errors.New("invalid duration")

// ParseTakeovers extracts the takeover log from a zone page. Timestamps are
// interpreted in loc. A page without a takeover table yields an empty log.
func ParseTakeovers(r io.Reader, loc *time.Location) ([]models.VisitRecord, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	records := []models.VisitRecord{}

	section := findElement(doc, func(n *html.Node) bool { return attr(n, "id") == takeoverTableID })
	if section == nil {
		return records, nil
	}
	table := findElement(section, func(n *html.Node) bool { return n.DataAtom == atom.Table })
	if table == nil {
		return records, nil
	}

	rows := findAll(table, atom.Tr)
	// first row is the header, last row the totals footer
	if len(rows) < 3 {
		return records, nil
	}

	for i, tr := range rows[1 : len(rows)-1] {
		rec, err := parseRow(tr, loc)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}

	slices.SortStableFunc(records, func(a, b models.VisitRecord) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return records, nil
}

func parseRow(tr *html.Node, loc *time.Location) (models.VisitRecord, error) {
	var cells []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Td {
			cells = append(cells, c)
		}
	}
	if len(cells) < 4 {
		return models.VisitRecord{}, fmt.Errorf("expected 4 cells, got %d", len(cells))
	}

	holder := strings.TrimSpace(textOf(cells[0]))

	pointsText := strings.TrimSpace(textOf(cells[1]))
	points := 0
	if pointsText != "" {
		p, err := strconv.Atoi(pointsText)
		if err != nil {
			return models.VisitRecord{}, fmt.Errorf("invalid points %q", pointsText)
		}
		points = p
	}

	duration, err := ParseDuration(textOf(cells[2]))
	if err != nil {
		return models.VisitRecord{}, err
	}

	stamp := timestampPattern.FindString(textOf(cells[3]))
	if stamp == "" {
		return models.VisitRecord{}, fmt.Errorf("no timestamp in %q", strings.TrimSpace(textOf(cells[3])))
	}
	ts, err := time.ParseInLocation(TimeLayout, stamp, loc)
	if err != nil {
		return models.VisitRecord{}, fmt.Errorf("invalid timestamp %q: %w", stamp, err)
	}

	return models.VisitRecord{
		Holder:    holder,
		Points:    points,
		Duration:  duration,
		Timestamp: ts,
	}, nil
}

// ParseDuration reads a hold duration as shown in takeover tables:
// "" or "-" (an assist, zero), "HH:MM:SS", "MM:SS", either optionally
// preceded by "Nd", or unit tokens such as "1d 2h 3m 4s".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, nil
	}

	var total time.Duration
	fields := strings.Fields(s)
	for i, f := range fields {
		switch {
		case strings.Contains(f, ":"):
			if i != len(fields)-1 {
				return 0, fmt.Errorf("%w: %q", errBadDuration, s)
			}
			d, err := parseClock(f)
			if err != nil {
				return 0, fmt.Errorf("%w: %q", errBadDuration, s)
			}
			total += d
		case unitTokenPattern.MatchString(f):
			for _, m := range unitPartPattern.FindAllStringSubmatch(f, -1) {
				n, err := strconv.Atoi(m[1])
				if err != nil {
					return 0, fmt.Errorf("%w: %q", errBadDuration, s)
				}
				total += time.Duration(n) * unitOf(m[2])
			}
		default:
			return 0, fmt.Errorf("%w: %q", errBadDuration, s)
		}
	}
	return total, nil
}

func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, errBadDuration
	}
	values := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, errBadDuration
		}
		if i > 0 && v >= 60 {
			return 0, errBadDuration
		}
		values[i] = v
	}

	if len(values) == 2 {
		return time.Duration(values[0])*time.Minute + time.Duration(values[1])*time.Second, nil
	}
	return time.Duration(values[0])*time.Hour +
		time.Duration(values[1])*time.Minute +
		time.Duration(values[2])*time.Second, nil
}

func unitOf(u string) time.Duration {
	switch u {
	case "d":
		return 24 * time.Hour
	case "h":
		return time.Hour
	case "m":
		return time.Minute
	default:
		return time.Second
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findElement returns the first element below n, in document order, matching pred
func findElement(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && pred(c) {
			return c
		}
		if found := findElement(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == a {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
