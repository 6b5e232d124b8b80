package sheets

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnLetter converts a 1-based column number into A1 letters:
// 1 is A, 26 is Z, 27 is AA, 703 is AAA.
func ColumnLetter(n int) string {
	if n < 1 {
		return ""
	}

	var b []byte
	for n > 0 {
		n--
		b = append(b, byte('A'+n%26))
		n /= 26
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// ColumnIndex converts A1 column letters into a 1-based column number.
func ColumnIndex(letters string) (int, error) {
	letters = strings.ToUpper(strings.TrimSpace(letters))
	if letters == "" {
		return 0, Error.New("empty column letters")
	}

	n := 0
	for _, r := range letters {
		if r < 'A' || r > 'Z' {
			return 0, Error.New("invalid column letters %q", letters)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n, nil
}

// HeaderRange addresses the first row of a sheet.
func HeaderRange(sheet string) string {
	return fmt.Sprintf("%s!1:1", quoteSheet(sheet))
}

// ColumnsRange addresses whole columns 1..width, e.g. Sheet1!A:C.
func ColumnsRange(sheet string, width int) string {
	return fmt.Sprintf("%s!A:%s", quoteSheet(sheet), ColumnLetter(width))
}

// ColumnRange addresses a single whole column, e.g. Sheet1!Z:Z.
func ColumnRange(sheet, letter string) string {
	return fmt.Sprintf("%s!%s:%s", quoteSheet(sheet), letter, letter)
}

// RowRange addresses cells 1..width of a 1-based row, e.g. Sheet1!A5:U5.
func RowRange(sheet string, row, width int) string {
	return fmt.Sprintf("%s!A%d:%s%d", quoteSheet(sheet), row, ColumnLetter(width), row)
}

// quoteSheet wraps names other than plain identifiers in single quotes, with
// embedded quotes doubled: My Sheet becomes 'My Sheet'.
func quoteSheet(name string) string {
	plain := name != ""
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// unquoteSheet reverses quoteSheet.
func unquoteSheet(name string) (string, bool) {
	if !strings.HasPrefix(name, "'") {
		return name, !strings.ContainsAny(name, "'")
	}
	if len(name) < 3 || !strings.HasSuffix(name, "'") {
		return "", false
	}
	inner := name[1 : len(name)-1]
	if strings.Contains(strings.ReplaceAll(inner, "''", ""), "'") {
		return "", false
	}
	return strings.ReplaceAll(inner, "''", "'"), true
}

// Range is a parsed A1 range. Zero bounds are open: a whole-column range has
// no rows and a whole-row range has no columns.
type Range struct {
	Sheet    string
	FirstCol int
	LastCol  int
	FirstRow int
	LastRow  int
}

// ParseRange parses ranges of the forms Sheet!A:C, Sheet!1:1, Sheet!A5:U5,
// Sheet!A5 and Sheet!A:A. The sheet name may be quoted as in 'My Sheet'!A:C.
func ParseRange(a1 string) (Range, error) {
	i := strings.LastIndex(a1, "!")
	if i <= 0 || i == len(a1)-1 {
		return Range{}, Error.New("invalid range %q", a1)
	}
	sheet, ok := unquoteSheet(a1[:i])
	if !ok {
		return Range{}, Error.New("invalid sheet name in range %q", a1)
	}
	cells := a1[i+1:]

	start, end, span := strings.Cut(cells, ":")
	if !span {
		end = start
	}

	r := Range{Sheet: sheet}
	var err error
	if r.FirstCol, r.FirstRow, err = parseCell(start); err != nil {
		return Range{}, Error.New("invalid range %q: %v", a1, err)
	}
	if r.LastCol, r.LastRow, err = parseCell(end); err != nil {
		return Range{}, Error.New("invalid range %q: %v", a1, err)
	}
	return r, nil
}

// parseCell splits a cell reference like AB12 into column and row; either may
// be absent and is then 0.
func parseCell(ref string) (col, row int, err error) {
	i := 0
	for i < len(ref) && (ref[i] >= 'A' && ref[i] <= 'Z' || ref[i] >= 'a' && ref[i] <= 'z') {
		i++
	}
	if i > 0 {
		if col, err = ColumnIndex(ref[:i]); err != nil {
			return 0, 0, err
		}
	}
	if i < len(ref) {
		if row, err = strconv.Atoi(ref[i:]); err != nil || row < 1 {
			return 0, 0, fmt.Errorf("invalid row in %q", ref)
		}
	}
	if col == 0 && row == 0 {
		return 0, 0, fmt.Errorf("empty cell reference")
	}
	return col, row, nil
}
