package bunx

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"time"

	"github.com/btcsuite/btcutil/base58"
)

const caseNumberEntropyBytes = 6

var caseNumberPattern = regexp.MustCompile(`^CR-\d{4}-[1-9A-HJ-NP-Za-km-z]+$`)

// NewCaseNumber generates a public incident identifier of the form CR-<year>-<suffix>.
// The suffix is base58 so it never contains look-alike characters (0, O, I, l).
// Uniqueness is enforced by the incidents.case_number constraint; callers retry on conflict.
func NewCaseNumber(now time.Time) string {
	buf := make([]byte, caseNumberEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("read random bytes for case number: %v", err))
	}
	return fmt.Sprintf("CR-%04d-%s", now.UTC().Year(), base58.Encode(buf))
}

// IsCaseNumber reports whether s has the case number shape.
func IsCaseNumber(s string) bool {
	return caseNumberPattern.MatchString(s)
}
