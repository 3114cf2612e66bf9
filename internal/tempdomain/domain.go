package tempdomain

import (
	"bufio"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// MaxDomainLength is the longest accepted domain name in bytes.
const MaxDomainLength = 253

var domainPattern = regexp.MustCompile(`^[a-z0-9]+([-.][a-z0-9]+)*\.[a-z]{2,}$`)

// Normalize lowercases and trims raw and reports whether the result is a
// syntactically valid domain. Non-ASCII input goes through IDNA lookup
// mapping first, which folds compatibility forms such as fullwidth letters
// and ideographic full stops into ASCII. Names that only exist as punycode
// (xn-- labels) do not pass the syntax check and are rejected.
func Normalize(raw string) (string, bool) {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimSuffix(d, ".")
	if d == "" || len(d) > MaxDomainLength*4 {
		return "", false
	}

	if !isASCII(d) {
		ascii, err := idna.Lookup.ToASCII(d)
		if err != nil {
			return "", false
		}
		d = strings.ToLower(ascii)
	}

	if len(d) > MaxDomainLength || !domainPattern.MatchString(d) {
		return "", false
	}
	return d, true
}

// IsValid reports whether raw normalizes to a valid domain.
func IsValid(raw string) bool {
	_, ok := Normalize(raw)
	return ok
}

// ParseList reads a plaintext domain list: one entry per line, blank lines
// and lines starting with "#" or "//" ignored. Entries that do not pass
// Normalize are dropped. The result keeps first-seen order without duplicates.
func ParseList(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	seen := make(map[string]struct{})
	var domains []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		d, ok := Normalize(line)
		if !ok {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return domains, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
