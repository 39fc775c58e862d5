package app

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var windowsDeviceNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// AllowedFile reports whether name has an extension from allowed.
// Only the text after the last dot is checked, case-insensitively.
func AllowedFile(name string, allowed []string) bool {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return false
	}
	ext := strings.ToLower(name[idx+1:])
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			return true
		}
	}
	return false
}

// SecureFilename returns a flat ASCII filename that is safe to join onto the
// upload directory. It never returns an empty string.
func SecureFilename(name string) string {
	decomposed := norm.NFKD.String(name)

	var ascii strings.Builder
	for _, r := range decomposed {
		if r > unicode.MaxASCII {
			continue
		}
		if r == '/' || r == '\\' {
			r = ' '
		}
		ascii.WriteRune(r)
	}

	joined := strings.Join(strings.Fields(ascii.String()), "_")

	var cleaned strings.Builder
	for _, r := range joined {
		if r == '_' || r == '.' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			cleaned.WriteRune(r)
		}
	}

	out := strings.Trim(cleaned.String(), "._")
	if out == "" {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
		if ext == "" || !isPlainExt(ext) {
			return "upload"
		}
		return "upload." + ext
	}

	stem := strings.ToUpper(strings.SplitN(out, ".", 2)[0])
	if _, reserved := windowsDeviceNames[stem]; reserved {
		out = "_" + out
	}
	return out
}

func isPlainExt(ext string) bool {
	for _, r := range ext {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
