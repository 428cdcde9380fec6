package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	stableIDPrefix = "imp-"
	stableIDHexLen = 16
)

// StableID derives the import id of a statement row from its own fields.
// date is YYYY-MM-DD, timeOfDay is empty or any H:MM[:SS] form, and amount
// participates as its exact decimal string.
func StableID(date, timeOfDay string, amount decimal.Decimal, merchant string) string {
	payload := strings.Join([]string{
		date,
		PadTime(timeOfDay),
		amount.String(),
		strings.TrimSpace(merchant),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return stableIDPrefix + hex.EncodeToString(sum[:])[:stableIDHexLen]
}

var timeOfDayPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?`)

// PadTime normalizes H:MM or H:MM:SS to HH:MM:SS. Anything else becomes empty.
func PadTime(s string) string {
	m := timeOfDayPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ""
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	sec := 0
	if m[3] != "" {
		sec, _ = strconv.Atoi(m[3])
	}
	if h > 23 || mi > 59 || sec > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, mi, sec)
}
