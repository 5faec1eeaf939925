// Package css parses inline CSS declaration lists - highlight style
// descriptors and color scheme definitions supplied by the host.
package css

import (
	"bytes"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Declaration is a single property: value pair from a declaration list.
type Declaration struct {
	Property string
	Value    string
}

// Parser parses inline declaration lists into structured declarations.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new declaration list parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// ParseDeclarations parses an inline style string ("color: red;
// background-color: #ffff00") into declarations. Unparsable input is logged
// at debug level and dropped - a bad style descriptor must never break
// highlight application.
func (p *Parser) ParseDeclarations(src string) []Declaration {
	decls := make([]Declaration, 0, 4)

	input := parse.NewInput(bytes.NewReader([]byte(src)))
	parser := css.NewParser(input, true)

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			// end of input or error
			if parser.Err() != nil && parser.Err().Error() != "EOF" {
				p.log.Debug("CSS parse error", zap.String("input", src), zap.Error(parser.Err()))
			}
			return decls

		case css.DeclarationGrammar:
			value := joinTokens(parser.Values())
			if len(value) > 0 {
				decls = append(decls, Declaration{
					Property: strings.ToLower(string(data)),
					Value:    value,
				})
			}

		case css.CustomPropertyGrammar:
			// CSS custom properties (--var) are of no use for highlight styles
			continue
		}
	}
}

// Inline renders declarations back as a single inline style string suitable
// for a style attribute.
func Inline(decls []Declaration) string {
	var b strings.Builder
	for i, d := range decls {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(d.Property)
		b.WriteString(": ")
		b.WriteString(d.Value)
	}
	return b.String()
}

// joinTokens builds raw value string from CSS tokens collapsing whitespace.
func joinTokens(tokens []css.Token) string {
	var rawParts []string
	for _, t := range tokens {
		if t.TokenType != css.WhitespaceToken {
			rawParts = append(rawParts, string(t.Data))
		} else if len(rawParts) > 0 {
			rawParts = append(rawParts, " ")
		}
	}
	return strings.TrimSpace(strings.Join(rawParts, ""))
}
