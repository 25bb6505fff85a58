package generation

// Truncate shortens text to at most max characters without splitting a
// multi-byte rune. It reports whether anything was cut. A non-positive max
// disables truncation.
func Truncate(text string, max int) (string, bool) {
	if max <= 0 || len(text) <= max {
		return text, false
	}

	n := 0
	for i := range text {
		if n == max {
			return text[:i], true
		}
		n++
	}
	return text, false
}
