package chain

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClarityTuple decodes the repr form of a Clarity tuple, as printed
// by the extended API, into a Payload. Keys are folded from kebab-case
// to snake_case so both delivery formats agree.
//
// Supported value forms: u123 (uint), "text" (string-ascii/utf8),
// 'SP...[.contract] (principal), true/false, none (omitted) and
// (some <value>) (unwrapped). Nested tuples are not produced by the
// launchpad contracts and are rejected.
func ParseClarityTuple(repr string) (Payload, error) {
	p := newClarityParser(repr)
	payload, err := p.tuple()
	if err != nil {
		return nil, fmt.Errorf("parse clarity tuple: %w", err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("parse clarity tuple: trailing input at offset %d", p.pos)
	}
	return payload, nil
}

type clarityParser struct {
	src string
	pos int
}

func newClarityParser(src string) *clarityParser {
	return &clarityParser{src: strings.TrimSpace(src)}
}

func (p *clarityParser) tuple() (Payload, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.consumeWord("tuple") {
		return nil, fmt.Errorf("expected tuple at offset %d", p.pos)
	}

	payload := Payload{}
	for {
		p.skipSpace()
		if p.peek() == ')' {
			p.pos++
			return payload, nil
		}
		key, value, ok, err := p.entry()
		if err != nil {
			return nil, err
		}
		if ok {
			payload[foldKey(key)] = value
		}
	}
}

// entry parses one (key value) pair. ok is false for none values,
// which are dropped rather than stored.
func (p *clarityParser) entry() (key string, value interface{}, ok bool, err error) {
	if err = p.expect('('); err != nil {
		return "", nil, false, err
	}
	p.skipSpace()
	key = p.word()
	if key == "" {
		return "", nil, false, fmt.Errorf("expected key at offset %d", p.pos)
	}
	p.skipSpace()
	value, ok, err = p.value()
	if err != nil {
		return "", nil, false, err
	}
	p.skipSpace()
	if err = p.expect(')'); err != nil {
		return "", nil, false, err
	}
	return key, value, ok, nil
}

func (p *clarityParser) value() (interface{}, bool, error) {
	switch c := p.peek(); {
	case c == '(':
		p.pos++
		p.skipSpace()
		if !p.consumeWord("some") {
			return nil, false, fmt.Errorf("unsupported composite value at offset %d", p.pos)
		}
		p.skipSpace()
		v, ok, err := p.value()
		if err != nil {
			return nil, false, err
		}
		p.skipSpace()
		if err := p.expect(')'); err != nil {
			return nil, false, err
		}
		return v, ok, nil
	case c == 'u' && p.pos+1 < len(p.src) && isDigit(p.src[p.pos+1]):
		p.pos++
		start := p.pos
		for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			p.pos++
		}
		n, err := strconv.ParseUint(p.src[start:p.pos], 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("uint at offset %d: %w", start, err)
		}
		return n, true, nil
	case c == 'u' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '"':
		// utf8 string, u"text"
		p.pos++
		return p.quoted()
	case c == '"':
		return p.quoted()
	case c == '\'':
		p.pos++
		start := p.pos
		for p.pos < len(p.src) && isPrincipalChar(p.src[p.pos]) {
			p.pos++
		}
		if p.pos == start {
			return nil, false, fmt.Errorf("empty principal at offset %d", start)
		}
		return p.src[start:p.pos], true, nil
	default:
		word := p.word()
		switch word {
		case "true":
			return true, true, nil
		case "false":
			return false, true, nil
		case "none":
			return nil, false, nil
		case "":
			return nil, false, fmt.Errorf("unexpected input at offset %d", p.pos)
		default:
			return nil, false, fmt.Errorf("unsupported value %q at offset %d", word, p.pos)
		}
	}
}

func (p *clarityParser) quoted() (interface{}, bool, error) {
	p.pos++ // opening quote
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != '"' {
		p.pos++
	}
	if p.pos == len(p.src) {
		return nil, false, fmt.Errorf("unterminated string at offset %d", start)
	}
	s := p.src[start:p.pos]
	p.pos++
	return s, true, nil
}

func (p *clarityParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *clarityParser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return fmt.Errorf("expected %q at offset %d", string(c), p.pos)
	}
	p.pos++
	return nil
}

func (p *clarityParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *clarityParser) word() string {
	start := p.pos
	for p.pos < len(p.src) && isWordChar(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *clarityParser) consumeWord(w string) bool {
	save := p.pos
	if p.word() == w {
		return true
	}
	p.pos = save
	return false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || isDigit(c) || c == '-' || c == '_' || c == '?' || c == '!'
}

func isPrincipalChar(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || isDigit(c) || c == '.' || c == '-'
}

// foldKey rewrites the kebab-case keys used in Clarity tuples to the
// snake_case keys Chainhook JSON payloads use.
func foldKey(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}
