package leadstore

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ColumnLetter converts a 1-based column index to its A1 letters
// (1 -> A, 26 -> Z, 27 -> AA).
func ColumnLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// ColumnIndex converts A1 column letters to a 1-based index. It returns 0 for
// invalid input.
func ColumnIndex(letters string) int {
	n := 0
	for _, r := range strings.ToUpper(letters) {
		if r < 'A' || r > 'Z' {
			return 0
		}
		n = n*26 + int(r-'A'+1)
	}
	return n
}

// QuoteTab renders a tab name for use in an A1 range.
func QuoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

// Range joins a tab and a cell reference into an A1 range.
func Range(tab, ref string) string {
	return QuoteTab(tab) + "!" + ref
}

// A1Range is a parsed A1 range. Zero bounds are open: a zero EndRow runs to
// the last row, a zero StartCol starts at column A.
type A1Range struct {
	Tab      string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

var cellRef = regexp.MustCompile(`^([A-Za-z]*)(\d*)$`)

// ParseA1 parses ranges such as "Leads!A1:Z", "'Leads - HVAC'!B:D",
// "Leads!5:5" and "Leads!C7".
func ParseA1(s string) (A1Range, error) {
	i := strings.LastIndex(s, "!")
	if i <= 0 {
		return A1Range{}, eris.Errorf("leadstore: range %q has no tab", s)
	}
	r := A1Range{Tab: unquoteTab(s[:i])}

	refs := strings.SplitN(s[i+1:], ":", 2)
	sc, sr, err := parseRef(refs[0])
	if err != nil {
		return A1Range{}, eris.Wrapf(err, "leadstore: range %q", s)
	}
	r.StartCol, r.StartRow = sc, sr
	if len(refs) == 1 {
		r.EndCol, r.EndRow = sc, sr
		return r, nil
	}
	ec, er, err := parseRef(refs[1])
	if err != nil {
		return A1Range{}, eris.Wrapf(err, "leadstore: range %q", s)
	}
	r.EndCol, r.EndRow = ec, er
	return r, nil
}

func parseRef(ref string) (col, row int, err error) {
	m := cellRef.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil || (m[1] == "" && m[2] == "") {
		return 0, 0, eris.Errorf("invalid cell reference %q", ref)
	}
	if m[1] != "" {
		col = ColumnIndex(m[1])
	}
	if m[2] != "" {
		row, _ = strconv.Atoi(m[2])
	}
	return col, row, nil
}

func unquoteTab(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}

var updatedRow = regexp.MustCompile(`![A-Za-z]+(\d+)`)

// RowFromUpdatedRange extracts the first row number from an append response
// range such as "'Leads'!A12:S12". It returns -1 when none is present.
func RowFromUpdatedRange(rng string) int {
	m := updatedRow.FindStringSubmatch(rng)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}
