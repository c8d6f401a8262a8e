package gcode

import (
	"errors"

	"homefw/standalone"
)

var (
	ErrChecksum   = errors.New("gcode: checksum mismatch")
	ErrLineNumber = errors.New("gcode: unexpected line number")
	ErrNoCommand  = errors.New("gcode: missing command number")
)

// Parser handles G-code parsing
type Parser struct {
	lineBuffer []byte
	lastLine   int // Last accepted N word
	strict     bool
}

// NewParser creates a new G-code parser
func NewParser() *Parser {
	return &Parser{
		lineBuffer: make([]byte, 0, 256),
	}
}

// SetStrictLineNumbers makes numbered lines require N = previous + 1
func (p *Parser) SetStrictLineNumbers(strict bool) {
	p.strict = strict
}

// Feed accumulates bytes and returns a complete line once a newline arrives
func (p *Parser) Feed(b byte) (string, bool) {
	if b == '\n' || b == '\r' {
		if len(p.lineBuffer) == 0 {
			return "", false
		}
		line := string(p.lineBuffer)
		p.lineBuffer = p.lineBuffer[:0]
		return line, true
	}
	if len(p.lineBuffer) < cap(p.lineBuffer) {
		p.lineBuffer = append(p.lineBuffer, b)
	}
	return "", false
}

// ParseLine parses a single line of G-code
func (p *Parser) ParseLine(line string) (*standalone.GCodeCommand, error) {
	if len(line) == 0 {
		return nil, nil
	}

	line, err := p.checkLine(line)
	if err != nil {
		return nil, err
	}

	cmd := &standalone.GCodeCommand{
		Parameters: make(map[byte]float64),
	}

	i := 0
	// Skip whitespace
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}

	if i >= len(line) {
		return nil, nil
	}

	// Check for comment
	if line[i] == ';' || line[i] == '(' {
		cmd.Comment = line[i:]
		return cmd, nil
	}

	// Parse command type (G, M, T)
	if i < len(line) && (line[i] == 'G' || line[i] == 'M' || line[i] == 'T' ||
		line[i] == 'g' || line[i] == 'm' || line[i] == 't') {
		cmd.Type = toUpper(line[i])
		i++

		// Parse command number
		num, newPos := parseInt(line, i)
		if newPos <= i {
			return nil, ErrNoCommand
		}
		cmd.Number = num
		i = newPos
	}

	// Parse parameters
	for i < len(line) {
		// Skip whitespace
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}

		if i >= len(line) {
			break
		}

		// Check for comment
		if line[i] == ';' || line[i] == '(' {
			cmd.Comment = line[i:]
			break
		}

		// Parse parameter letter
		if i < len(line) && isLetter(line[i]) {
			letter := toUpper(line[i])
			i++

			// Parse parameter value
			// A bare letter (G28 X) is recorded as zero
			value, newPos := parseFloat(line, i)
			if newPos > i {
				cmd.Parameters[letter] = value
				i = newPos
			} else {
				cmd.Parameters[letter] = 0
			}
		} else {
			i++
		}
	}

	return cmd, nil
}

// checkLine validates and strips the "N<line> ... *<checksum>" framing
func (p *Parser) checkLine(line string) (string, error) {
	star := -1
	for i := 0; i < len(line); i++ {
		if line[i] == ';' || line[i] == '(' {
			break
		}
		if line[i] == '*' {
			star = i
			break
		}
	}
	if star >= 0 {
		want, end := parseInt(line, star+1)
		if end <= star+1 {
			return "", ErrChecksum
		}
		var sum byte
		for i := 0; i < star; i++ {
			sum ^= line[i]
		}
		if int(sum) != want {
			return "", ErrChecksum
		}
		line = line[:star]
	}

	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	if i < len(line) && (line[i] == 'N' || line[i] == 'n') {
		n, end := parseInt(line, i+1)
		if end <= i+1 {
			return "", ErrLineNumber
		}
		if p.strict && n != p.lastLine+1 {
			return "", ErrLineNumber
		}
		p.lastLine = n
		line = line[end:]
	}
	return line, nil
}

// parseInt parses an integer from the string starting at pos
func parseInt(s string, pos int) (int, int) {
	if pos >= len(s) {
		return 0, pos
	}

	negative := false
	if s[pos] == '-' {
		negative = true
		pos++
	} else if s[pos] == '+' {
		pos++
	}

	start := pos
	value := 0

	for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
		value = value*10 + int(s[pos]-'0')
		pos++
	}

	if pos == start {
		return 0, start - 1 // No digits found
	}

	if negative {
		value = -value
	}

	return value, pos
}

// parseFloat parses a floating-point number from the string starting at pos
func parseFloat(s string, pos int) (float64, int) {
	if pos >= len(s) {
		return 0, pos
	}

	negative := false
	if s[pos] == '-' {
		negative = true
		pos++
	} else if s[pos] == '+' {
		pos++
	}

	start := pos
	intPart := 0
	fracPart := 0.0
	fracDigits := 0

	// Parse integer part
	for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
		intPart = intPart*10 + int(s[pos]-'0')
		pos++
	}

	// Parse fractional part
	if pos < len(s) && s[pos] == '.' {
		pos++
		fracStart := pos
		for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
			fracPart = fracPart*10.0 + float64(s[pos]-'0')
			pos++
		}
		fracDigits = pos - fracStart
	}

	if pos == start || (pos == start+1 && s[start] == '.') {
		return 0, start - 1 // No valid number found
	}

	// Combine integer and fractional parts
	value := float64(intPart)
	if fracDigits > 0 {
		divisor := 1.0
		for i := 0; i < fracDigits; i++ {
			divisor *= 10.0
		}
		value += fracPart / divisor
	}

	if negative {
		value = -value
	}

	return value, pos
}

// isLetter checks if a byte is a letter
func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// toUpper converts a byte to uppercase
func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
