package tempdomain

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainSet_AddContains(t *testing.T) {
	s := NewDomainSet()

	assert.Equal(t, 2, s.Add("mailinator.com", "YOPMAIL.com", "not a domain", ""))
	assert.Equal(t, 0, s.Add("mailinator.com"), "duplicate must not count")
	assert.Equal(t, 1, s.Add("a.io", "a.io"), "duplicates within one call count once")

	assert.True(t, s.Contains("mailinator.com"))
	assert.True(t, s.Contains("MAILINATOR.COM"))
	assert.True(t, s.Contains(" yopmail.com "))
	assert.False(t, s.Contains("gmail.com"))
	assert.False(t, s.Contains("not a domain"))
	assert.False(t, s.Contains(""))
	assert.Equal(t, 3, s.Size())
}

func TestDomainSet_RejectsInvalid(t *testing.T) {
	s := NewDomainSet()

	n := s.Add("not a domain", "", strings.Repeat("x", 300), "-x.com", "x")
	assert.Zero(t, n)
	assert.Zero(t, s.Size())
}

func TestDomainSet_Remove(t *testing.T) {
	s := NewDomainSet("a.com", "b.com", "c.com")

	assert.Equal(t, 2, s.Remove("A.com", "c.com", "missing.com"))
	assert.Equal(t, 0, s.Remove("a.com"))
	assert.Equal(t, []string{"b.com"}, s.All())
}

func TestDomainSet_AllSorted(t *testing.T) {
	s := NewDomainSet("zeta.com", "alpha.com", "mid.org")
	assert.Equal(t, []string{"alpha.com", "mid.org", "zeta.com"}, s.All())
}

func TestDomainSet_Search(t *testing.T) {
	s := NewDomainSet("10minutemail.com", "gmail.com", "temp-mail.org")

	// "10minutemail" spells "utemail", so only one entry holds "temp".
	assert.Equal(t, []string{"temp-mail.org"}, s.Search("temp"))
	assert.Equal(t, []string{"temp-mail.org"}, s.Search("TEMP"))
	assert.Equal(t, []string{"10minutemail.com", "gmail.com", "temp-mail.org"}, s.Search("mail."))
	assert.Empty(t, s.Search("yahoo"))
	assert.NotNil(t, s.Search("yahoo"))
}

func TestDomainSet_Match(t *testing.T) {
	s := NewDomainSet("10minutemail.com", "gmail.com", "temp-mail.org")

	got := s.Match(regexp.MustCompile(`\.org$`))
	assert.Equal(t, []string{"temp-mail.org"}, got)
}

func TestDomainSet_Replace(t *testing.T) {
	s := NewDomainSet("a.com", "b.com")
	s.Replace("c.com", "bad domain")

	assert.Equal(t, []string{"c.com"}, s.All())
}

func TestDomainSet_ConcurrentAccess(t *testing.T) {
	s := NewDomainSet()
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				s.Add(fmt.Sprintf("w%d-%d.com", w, i))
			}
		}(w)
	}

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = s.Contains("w0-1.com")
				_ = s.Size()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1000, s.Size())
}
