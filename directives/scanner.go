package directives

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/goliatone/go-crosspost/core"
)

const (
	ReadPrefix     = "!images:"
	PublishKeyword = "!tumble"
)

type Scanner struct{}

func NewScanner() *Scanner {
	return &Scanner{}
}

type token struct {
	start int
	end   int
	text  string
}

// Scan strips recognized directives and returns them in the order they occur.
// An !images: token whose permalink cannot be parsed is left in the text.
func (s *Scanner) Scan(text string) core.ScanResult {
	var (
		out        strings.Builder
		directives []core.Directive
		publishAt  = -1
		cursor     int
	)
	out.Grow(len(text))

	for _, tok := range tokenize(text) {
		switch {
		case tok.text == PublishKeyword:
			if publishAt < 0 {
				publishAt = len(directives)
				directives = append(directives, core.Directive{
					Kind:     core.DirectivePublish,
					Position: tok.start,
				})
			}
		case strings.HasPrefix(tok.text, ReadPrefix):
			payload, ok := ParsePermalink(tok.text[len(ReadPrefix):])
			if !ok {
				continue
			}
			directives = append(directives, core.Directive{
				Kind:     core.DirectiveRead,
				Position: tok.start,
				Read:     &payload,
			})
		default:
			continue
		}
		out.WriteString(text[cursor:tok.start])
		cursor = tok.end
	}
	out.WriteString(text[cursor:])

	result := core.ScanResult{Text: out.String(), Directives: directives}
	if publishAt >= 0 {
		result.Directives[publishAt].Publish = &core.PublishPayload{BodyText: result.Text}
	}
	return result
}

// ParsePermalink extracts the account host and the post id from a post URL
// such as http://a.tumblr.com/post/123/slug. The post id is the last path
// segment made only of digits.
func ParsePermalink(raw string) (core.ReadPayload, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return core.ReadPayload{}, false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return core.ReadPayload{}, false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return core.ReadPayload{}, false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return core.ReadPayload{}, false
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if isDigits(segments[i]) {
			return core.ReadPayload{AccountIdentifier: host, PostID: segments[i]}, true
		}
	}
	return core.ReadPayload{}, false
}

func tokenize(text string) []token {
	var tokens []token
	start := -1
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, token{start: start, end: i, text: text[start:i]})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
		i += size
	}
	if start >= 0 {
		tokens = append(tokens, token{start: start, end: len(text), text: text[start:]})
	}
	return tokens
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}

var _ core.DirectiveScanner = (*Scanner)(nil)
