package scan

// SanitizeName replaces every path separator byte ('/' and '\\') in the raw file name with placeholder.
//
// Directories are never reconstructed: "path/to/a.txt" becomes "path_to_a.txt" with the default placeholder. All
// other bytes are kept as-is.
func SanitizeName(raw []byte, placeholder byte) string {
	return sanitizeName(raw, placeholder)
}

func sanitizeName(raw []byte, placeholder byte) string {
	b := make([]byte, len(raw))
	for i, c := range raw {
		if isSeparator(c) {
			c = placeholder
		}

		b[i] = c
	}

	return string(b)
}

func isSeparator(c byte) bool {
	return c == '/' || c == '\\'
}
