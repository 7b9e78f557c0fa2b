package scratch

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const maxNameLength = 200

var nameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	"..", "_",
	"\x00", "_",
	"\n", "_",
	"\r", "_",
)

// SanitizeName makes a user supplied file name safe to use inside a scratch
// directory. Names longer than 200 characters are truncated, keeping the
// extension.
func SanitizeName(name string) string {
	name = strings.TrimSpace(nameReplacer.Replace(name))
	if name == "" || name == "." {
		name = "file"
	}
	if len(name) > maxNameLength {
		ext := filepath.Ext(name)
		if len(ext) >= maxNameLength {
			ext = ""
		}
		cut := maxNameLength - len(ext)
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut] + ext
	}
	return name
}
