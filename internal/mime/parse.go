// Package mime parses raw RFC 2822 messages into the small projection
// rule evaluation needs: addresses, subject, date and a plain-text body.
package mime

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"github.com/jhillyerd/enmime"
	"golang.org/x/text/encoding/ianaindex"
)

// Address is one parsed mailbox address.
type Address struct {
	Name   string
	Email  string
	Domain string
}

// String renders the address the way it appears in a header.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}

// Message is a parsed email message.
type Message struct {
	From     []Address
	To       []Address
	Subject  string
	Date     time.Time
	BodyText string
	BodyHTML string

	// Errors holds non-fatal problems collected while parsing. Real mail
	// is malformed often enough that these never fail the parse.
	Errors []string
}

// Parse decodes a raw RFC 2822 message. Bad headers and charsets are
// tolerated; problems land in Message.Errors instead of failing the
// whole message.
func Parse(raw []byte) (*Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	msg := &Message{
		Subject:  env.GetHeader("Subject"),
		BodyText: ensureUTF8(env.Text),
		BodyHTML: env.HTML,
	}
	msg.Date, _ = parseDate(env.GetHeader("Date"))
	msg.From = parseAddresses(env, "From")
	msg.To = parseAddresses(env, "To")

	for _, e := range env.Errors {
		msg.Errors = append(msg.Errors, e.Error())
	}
	return msg, nil
}

// GetBodyText returns the message body as plain text, falling back to
// stripped HTML when no text part exists.
func (m *Message) GetBodyText() string {
	if strings.TrimSpace(m.BodyText) != "" {
		return m.BodyText
	}
	if m.BodyHTML != "" {
		return StripHTML(m.BodyHTML)
	}
	return ""
}

// GetFirstFrom returns the first From address, or a zero Address when
// the header was missing or unparseable.
func (m *Message) GetFirstFrom() Address {
	if len(m.From) == 0 {
		return Address{}
	}
	return m.From[0]
}

// Preview returns the body collapsed to a single line and truncated to
// limit runes. It stands in for a server snippet when matching against
// full message bodies.
func (m *Message) Preview(limit int) string {
	text := strings.Join(strings.Fields(m.GetBodyText()), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}

// FormatAddressList renders addresses the way they appear in a header,
// for substring matching against from/to conditions.
func FormatAddressList(addrs []Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}

// DecodeSnippet converts a server-provided snippet, which arrives
// HTML-escaped, into plain text for condition matching.
func DecodeSnippet(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

func parseAddresses(env *enmime.Envelope, key string) []Address {
	list, err := env.AddressList(key)
	if err != nil {
		// Group syntax and other oddities; the header is unusable.
		return nil
	}
	out := make([]Address, 0, len(list))
	for _, a := range list {
		out = append(out, Address{
			Name:   a.Name,
			Email:  a.Address,
			Domain: extractDomain(a.Address),
		})
	}
	return out
}

// extractDomain returns the lowercased domain part of an email address,
// or "" when there is no @.
func extractDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// dateFormats covers the Date header shapes seen in real mail, most
// common first. Go's parser accepts one- and two-digit days for the
// non-fixed "2" layouts.
var dateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

// parseDate tolerates the date formats seen in the wild. Unparseable
// input yields a zero time rather than an error; malformed Date headers
// are too common to fail a whole message over.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	// Drop trailing comments like "(PST)" and collapse doubled spaces.
	if i := strings.Index(s, "("); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, nil
}

var (
	scriptRe       = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	styleRe        = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	headRe         = regexp.MustCompile(`(?is)<head\b[^>]*>.*?</head\s*>`)
	brRe           = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockCloseRe   = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|ul|ol|table|tr|blockquote)>`)
	tagRe          = regexp.MustCompile(`(?s)<[^>]*>`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// StripHTML converts an HTML body to readable plain text. Block elements
// become paragraph breaks, <br> becomes a newline, script/style/head
// content is dropped entirely and entities are decoded. Whitespace is
// collapsed, so preformatted content loses its layout.
func StripHTML(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = scriptRe.ReplaceAllString(s, "")
	s = styleRe.ReplaceAllString(s, "")
	s = headRe.ReplaceAllString(s, "")

	s = brRe.ReplaceAllString(s, "\n")
	s = blockCloseRe.ReplaceAllString(s, "\n\n")
	s = tagRe.ReplaceAllString(s, "")

	// Entities decode after tag removal so "&lt;b&gt;" cannot turn into
	// markup.
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	s = strings.Join(lines, "\n")
	s = multiNewlineRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// ensureUTF8 re-decodes text that reached us in a charset the parser
// could not identify from the headers, detecting the encoding from the
// bytes themselves. Valid UTF-8 passes through untouched.
func ensureUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	b := []byte(s)
	det, err := chardet.NewTextDetector().DetectBest(b)
	if err != nil {
		return s
	}
	enc, err := ianaindex.IANA.Encoding(det.Charset)
	if err != nil || enc == nil {
		return s
	}
	decoded, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return s
	}
	return string(decoded)
}
