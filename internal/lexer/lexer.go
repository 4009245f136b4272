// Package lexer turns RPAL source text into a token stream.
package lexer

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aledsdavies/rpal/internal/token"
	"golang.org/x/text/unicode/norm"
)

// ASCII classification tables, following the same fast-dispatch technique
// the teacher's lexer uses for its mode-transition hot path.
var (
	isWhitespace [128]bool
	isLetter     [128]bool
	isDigit      [128]bool
	isIdentPart  [128]bool
)

func init() {
	for i := 0; i < 128; i++ {
		ch := byte(i)
		isWhitespace[i] = ch == ' ' || ch == '\t' || ch == '\r' || ch == '\f'
		isLetter[i] = ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
		isDigit[i] = '0' <= ch && ch <= '9'
	}
	for i := 0; i < 128; i++ {
		ch := byte(i)
		isIdentPart[i] = isLetter[i] || isDigit[i] || ch == '_'
	}
}

// twoCharOps lists the two-character operators that must be recognized
// before their one-character prefixes (spec.md §4.1 rule 6).
var twoCharOps = map[string]bool{
	"->": true, ">=": true, "<=": true, "==": true, "!=": true, "**": true,
}

// operatorChars is the remaining single-character operator alphabet
// (spec.md §4.1 rule 7).
const operatorChars = "+-*/<>&.@:~|$#!%^_[]{}\"?="

const punctuationChars = "();,"

// Error is a lexical error: an unknown character or an unterminated
// string literal.
type Error struct {
	Message string
	Pos     token.Position
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

var debugLogger = newDebugLogger()

func newDebugLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("RPAL_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// Lexer scans a complete source string into tokens. It holds no
// long-lived mode state: RPAL's grammar needs none of the shell/decorator
// mode-switching the teacher's lexer implements.
type Lexer struct {
	src    string
	pos    int // byte offset of ch
	readPos int
	ch     byte
	line   int
	column int
	logger *slog.Logger
}

// New creates a Lexer over src.
func New(src string) *Lexer {
	l := &Lexer{src: src, line: 1, column: 0, logger: debugLogger}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.src) {
		l.ch = 0
	} else {
		l.ch = l.src[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.src) {
		return 0
	}
	return l.src[l.readPos]
}

func (l *Lexer) here() token.Position {
	return token.Position{Line: l.line, Column: l.column}
}

// Lex runs the full scan and returns the token stream, terminated by a
// single EndOfInput token, or the first lexical error encountered.
func Lex(src string) ([]token.Token, error) {
	l := New(src)
	var tokens []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Category == token.EndOfInput {
			return tokens, nil
		}
	}
}

// Next scans and returns the single next token.
func (l *Lexer) Next() (token.Token, error) {
	for {
		l.skipWhitespaceAndComments()
		if l.ch == 0 {
			return token.Token{Category: token.EndOfInput, Pos: l.here()}, nil
		}
		break
	}

	pos := l.here()

	switch {
	case l.ch == '\'':
		return l.lexString(pos)
	case l.ch < 128 && isLetter[l.ch]:
		return l.lexIdentifier(pos), nil
	case l.ch < 128 && isDigit[l.ch]:
		return l.lexNumber(pos), nil
	default:
		return l.lexSymbol(pos)
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		if l.ch < 128 && isWhitespace[l.ch] {
			l.readChar()
			continue
		}
		if l.ch == '\n' {
			l.readChar()
			continue
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		return
	}
}

func (l *Lexer) lexString(pos token.Position) (token.Token, error) {
	start := l.pos
	l.readChar() // consume opening quote
	for {
		if l.ch == 0 {
			return token.Token{}, &Error{Message: "unterminated string literal", Pos: pos}
		}
		if l.ch == '\'' {
			// closing quote must not be immediately preceded by a backslash
			prevEscaped := l.pos > start+1 && l.src[l.pos-1] == '\\'
			l.readChar()
			if !prevEscaped {
				break
			}
			continue
		}
		l.readChar()
	}
	value := l.src[start:l.pos]
	value = norm.NFC.String(value)
	return token.Token{Category: token.Text, Value: value, Pos: pos}, nil
}

func (l *Lexer) lexIdentifier(pos token.Position) token.Token {
	start := l.pos
	for l.ch < 128 && isIdentPart[l.ch] {
		l.readChar()
	}
	value := l.src[start:l.pos]
	cat := token.Identifier
	if token.Reserved[value] {
		cat = token.Keyword
	}
	return token.Token{Category: cat, Value: value, Pos: pos}
}

func (l *Lexer) lexNumber(pos token.Position) token.Token {
	start := l.pos
	for l.ch < 128 && isDigit[l.ch] {
		l.readChar()
	}
	return token.Token{Category: token.Number, Value: l.src[start:l.pos], Pos: pos}
}

func (l *Lexer) lexSymbol(pos token.Position) (token.Token, error) {
	if l.readPos < len(l.src) {
		two := string(l.ch) + string(l.src[l.readPos])
		if twoCharOps[two] {
			l.readChar()
			l.readChar()
			return token.Token{Category: token.Operator, Value: two, Pos: pos}, nil
		}
	}

	ch := l.ch
	if strings.IndexByte(operatorChars, ch) >= 0 {
		l.readChar()
		return token.Token{Category: token.Operator, Value: string(ch), Pos: pos}, nil
	}
	if strings.IndexByte(punctuationChars, ch) >= 0 {
		l.readChar()
		return token.Token{Category: token.Punctuation, Value: string(ch), Pos: pos}, nil
	}

	l.readChar()
	return token.Token{}, &Error{Message: fmt.Sprintf("unexpected character %q", ch), Pos: pos}
}
