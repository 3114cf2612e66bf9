package tempdomain

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "plain", raw: "mailinator.com", want: "mailinator.com", wantOK: true},
		{name: "upper case", raw: "MAILINATOR.COM", want: "mailinator.com", wantOK: true},
		{name: "surrounding space", raw: "  yopmail.com\t", want: "yopmail.com", wantOK: true},
		{name: "trailing dot", raw: "yopmail.com.", want: "yopmail.com", wantOK: true},
		{name: "hyphen and subdomain", raw: "a-b.mail.temp-mail.org", want: "a-b.mail.temp-mail.org", wantOK: true},
		{name: "digits", raw: "10minutemail.com", want: "10minutemail.com", wantOK: true},
		{name: "fullwidth folds to ascii", raw: "ｍａｉｌｉｎａｔｏｒ．ｃｏｍ", want: "mailinator.com", wantOK: true},
		{name: "idn label rejected", raw: "bücher.de", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
		{name: "spaces", raw: "not a domain", wantOK: false},
		{name: "no tld", raw: "localhost", wantOK: false},
		{name: "one letter tld", raw: "example.c", wantOK: false},
		{name: "numeric tld", raw: "example.123", wantOK: false},
		{name: "leading hyphen", raw: "-bad.com", wantOK: false},
		{name: "double dot", raw: "bad..com", wantOK: false},
		{name: "underscore", raw: "bad_domain.com", wantOK: false},
		{name: "email", raw: "user@example.com", wantOK: false},
		{name: "too long", raw: strings.Repeat("a", 296) + ".com", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNormalize_LengthBoundary(t *testing.T) {
	label := strings.Repeat("a", 60)
	// 4 labels of 60 + 3 dots + ".com" = 247
	d := strings.Join([]string{label, label, label, label}, ".") + ".com"
	require.LessOrEqual(t, len(d), MaxDomainLength)
	assert.True(t, IsValid(d))

	over := strings.Repeat("b", 10) + "." + d
	require.Greater(t, len(over), MaxDomainLength)
	assert.False(t, IsValid(over))
}

func TestParseList(t *testing.T) {
	input := strings.NewReader(strings.Join([]string{
		"# disposable list",
		"// another comment style",
		"",
		"  Mailinator.com  ",
		"yopmail.com",
		"yopmail.com",
		"not a domain",
		"temp-mail.org",
	}, "\n"))

	domains, err := ParseList(input)
	require.NoError(t, err)
	assert.Equal(t, []string{"mailinator.com", "yopmail.com", "temp-mail.org"}, domains)
}

func TestParseList_ReaderError(t *testing.T) {
	_, err := ParseList(iotest.ErrReader(errors.New("scan fail")))
	assert.Error(t, err)
}

func TestParseList_InvalidUTF8(t *testing.T) {
	domains, err := ParseList(strings.NewReader(string([]byte{0xff, 0xfe, 0xfd}) + "\nok.com\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.com"}, domains)
}
