package ocr

import (
	"regexp"
	"strings"
)

var (
	// "TRANSFER 334456", "TRANSFER#: 334456", "TR-334456"
	labelledID = regexp.MustCompile(`\b(?:TRANSFER|TR)\s*[#:\-]*\s*(\d{5,10})\b`)
	bareID     = regexp.MustCompile(`\b(\d{5,10})\b`)
)

// ExtractTransferID finds a transfer id in OCR text. A number after a
// "TRANSFER" or "TR" label wins over the first bare number of 5 to 10 digits.
func ExtractTransferID(text string) (string, bool) {
	text = strings.ToUpper(text)
	if m := labelledID.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := bareID.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}
