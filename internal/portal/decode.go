package portal

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DecodeFormValue decodes a submitted form field in two passes: standard
// percent-decoding with '+' as space, then resolution of HTML numeric
// character references (&#NNN; and &#xHHH;) into UTF-8. Browsers that cannot
// represent a character in the form's encoding submit it entity-encoded, so
// both layers can be present at once. Plain ASCII without '%' or '&#' passes
// through unchanged.
func DecodeFormValue(raw string) (string, error) {
	s, err := url.QueryUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("percent decode: %w", err)
	}
	return decodeNumericEntities(s), nil
}

// decodeNumericEntities resolves &#NNN; and &#xHHH; references. Malformed
// references are left as-is rather than rejected, the field is user input.
func decodeNumericEntities(s string) string {
	if !strings.Contains(s, "&#") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		start := strings.Index(s[i:], "&#")
		if start < 0 {
			b.WriteString(s[i:])
			break
		}
		start += i
		b.WriteString(s[i:start])

		end := strings.IndexByte(s[start:], ';')
		if end < 0 {
			b.WriteString(s[start:])
			break
		}
		end += start

		body := s[start+2 : end]
		var code int64
		var err error
		if len(body) > 1 && (body[0] == 'x' || body[0] == 'X') {
			code, err = strconv.ParseInt(body[1:], 16, 32)
		} else {
			code, err = strconv.ParseInt(body, 10, 32)
		}
		if err != nil || code < 0 || code > 0x10FFFF {
			b.WriteString(s[start : end+1])
		} else {
			b.WriteRune(rune(code))
		}
		i = end + 1
	}
	return b.String()
}
