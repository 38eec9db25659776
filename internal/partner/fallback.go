package partner

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/whitelist"
)

const fallbackPartnerType = "ORGANIZATION"

// fallbackRecord builds a partner record from the local allow-list. It is
// deterministic for a given email and never fails.
func fallbackRecord(email string, checker *whitelist.Checker) *core.PartnerRecord {
	domain := whitelist.Domain(email)
	if domain == "" || !checker.Matches(domain) {
		record := core.UnknownPartner(email)
		return &record
	}

	name := displayName(email)
	partnerType := fallbackPartnerType

	return &core.PartnerRecord{
		PartnerID: fallbackPartnerID(email),
		Name:      &name,
		Type:      &partnerType,
		Email:     email,
		Verified:  true,
	}
}

// fallbackPartnerID derives a stable BP_nnnn identifier from the email
func fallbackPartnerID(email string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return fmt.Sprintf("BP_%04d", h.Sum32()%10000)
}

// displayName title-cases every run of letters in the text before the first
// '@', so "john.doe" becomes "John.Doe"
func displayName(email string) string {
	local := email
	if idx := strings.Index(email, "@"); idx >= 0 {
		local = email[:idx]
	}

	caser := cases.Title(language.Und)

	var b strings.Builder
	var word []rune
	flush := func() {
		if len(word) > 0 {
			b.WriteString(caser.String(string(word)))
			word = word[:0]
		}
	}

	for _, r := range local {
		if unicode.IsLetter(r) {
			word = append(word, r)
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()

	return b.String()
}
