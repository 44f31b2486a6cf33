package coerce

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Numeric format syntax
//
// Digit placeholders are '0' and '#'. The characters '.' and ',' are
// separators: when both appear, the last one is the decimal separator and the
// other groups thousands. A lone separator is a grouping separator when it is
// preceded by '#' and followed by exactly three placeholders ("#,##0"),
// otherwise it is the decimal separator ("0.00", "0,00"). A format wrapped in
// parentheses renders negatives in accounting style. Every other character
// (currency symbols, codes such as "USD") is a literal symbol that is
// stripped from input before parsing.
//
// Input may always carry a leading or trailing sign and accounting
// parentheses, regardless of the format.
//
//	"0.00"        12.34
//	"$0.00"       $12.34, -$12.34, $-12.34, ($12.34)
//	"#.##0,00 €"  1.234,56 €
//	"(#,##0.00)"  (1,234.56)

// plainNumber matches a cleaned, unsigned decimal literal.
var plainNumber = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

type numberFormat struct {
	prefix     string // format text before the digit body
	suffix     string // format text after the digit body
	symbols    []string
	places     int
	decimal    byte
	group      byte
	grouped    bool
	accounting bool
}

var numberFormats sync.Map // format string -> *numberFormat

func isBodyChar(c byte) bool {
	return c == '0' || c == '#' || c == '.' || c == ','
}

func compileNumberFormat(format string) (*numberFormat, error) {
	if cached, ok := numberFormats.Load(format); ok {
		return cached.(*numberFormat), nil
	}

	nf := &numberFormat{decimal: '.', group: ','}
	f := strings.TrimSpace(format)
	if strings.HasPrefix(f, "(") && strings.HasSuffix(f, ")") {
		nf.accounting = true
		f = f[1 : len(f)-1]
	}

	start, end := strings.IndexAny(f, "0#"), -1
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '0' || f[i] == '#' {
			end = i + 1
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: numeric format %q has no digit placeholder", ErrInvalidFormat, format)
	}
	for start > 0 && isBodyChar(f[start-1]) {
		start--
	}
	for end < len(f) && isBodyChar(f[end]) {
		end++
	}
	body := f[start:end]
	for i := 0; i < len(body); i++ {
		if !isBodyChar(body[i]) {
			return nil, fmt.Errorf("%w: numeric format %q has a split digit body", ErrInvalidFormat, format)
		}
	}
	nf.prefix, nf.suffix = f[:start], f[end:]

	if err := nf.readSeparators(body); err != nil {
		return nil, fmt.Errorf("%w: numeric format %q: %v", ErrInvalidFormat, format, err)
	}

	for _, part := range []string{nf.prefix, nf.suffix} {
		sym := strings.Trim(part, " +- ")
		if sym != "" {
			nf.symbols = append(nf.symbols, sym)
		}
	}
	// Longest first so "US$" is removed before "$".
	sort.Slice(nf.symbols, func(i, j int) bool { return len(nf.symbols[i]) > len(nf.symbols[j]) })

	numberFormats.Store(format, nf)
	return nf, nil
}

func (nf *numberFormat) readSeparators(body string) error {
	dots, commas := strings.Count(body, "."), strings.Count(body, ",")
	last := strings.LastIndexAny(body, ".,")

	switch {
	case dots == 0 && commas == 0:
		return nil
	case dots > 0 && commas > 0:
		nf.decimal = body[last]
		nf.group = otherSeparator(nf.decimal)
		nf.grouped = true
		if strings.Count(body, string(nf.decimal)) > 1 {
			return fmt.Errorf("decimal separator %q appears more than once", nf.decimal)
		}
	case dots > 1 || commas > 1:
		nf.group = body[last]
		nf.decimal = otherSeparator(nf.group)
		nf.grouped = true
		return nil
	default:
		after := len(body) - last - 1
		if strings.HasPrefix(body, "#") && after == 3 {
			nf.group = body[last]
			nf.decimal = otherSeparator(nf.group)
			nf.grouped = true
			return nil
		}
		nf.decimal = body[last]
		nf.group = otherSeparator(nf.decimal)
	}

	nf.places = len(body) - strings.LastIndexByte(body, nf.decimal) - 1
	return nil
}

func otherSeparator(c byte) byte {
	if c == ',' {
		return '.'
	}
	return ','
}

// ParseNumber parses s using format.
func ParseNumber(s, format string) (decimal.Decimal, error) {
	nf, err := compileNumberFormat(format)
	if err != nil {
		return decimal.Zero, err
	}

	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	for _, sym := range nf.symbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)

	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = !negative
		s = s[:len(s)-1]
	}

	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, string(nf.group), "")
	s = strings.ReplaceAll(s, " ", "")
	if nf.decimal == ',' {
		s = strings.Replace(s, ",", ".", 1)
	}

	if !plainNumber.MatchString(s) {
		return decimal.Zero, ErrNumericParse
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrNumericParse, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// FormatNumber renders d in format. Parsing the result with the same format
// yields a value equal to d rounded to the format's decimal places.
func FormatNumber(d decimal.Decimal, format string) (string, error) {
	nf, err := compileNumberFormat(format)
	if err != nil {
		return "", err
	}

	digits := d.Abs().StringFixed(int32(nf.places))
	intPart, fracPart, _ := strings.Cut(digits, ".")
	if nf.grouped {
		intPart = groupThousands(intPart, nf.group)
	}

	var b strings.Builder
	b.WriteString(intPart)
	if nf.places > 0 {
		b.WriteByte(nf.decimal)
		b.WriteString(fracPart)
	}

	out := nf.prefix + b.String() + nf.suffix
	if d.IsNegative() && !d.Round(int32(nf.places)).IsZero() {
		if nf.accounting {
			return "(" + out + ")", nil
		}
		return "-" + out, nil
	}
	return out, nil
}

func groupThousands(digits string, sep byte) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
