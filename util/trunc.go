package util

import "unicode/utf8"

// TruncateRightWithSuffix keeps the first n runes of text and only append the suffix if truncation happens.
//
// Archive names are displayed in log prefixes so they are truncated to keep the prefix readable.
func TruncateRightWithSuffix(text string, n int, suffix string) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	if n <= 0 {
		return suffix
	}

	rs := make([]rune, 0, n+utf8.RuneCountInString(suffix))
	for _, r := range text {
		if len(rs) == n {
			break
		}

		rs = append(rs, r)
	}

	return string(append(rs, []rune(suffix)...))
}
