// Package textutil sanitizes names that end up as directory names on the
// scanning filesystem.
package textutil

import "strings"

// folderNameReplacer replaces filesystem-unsafe characters with safe
// alternatives. Slashes, backslashes, colons, and asterisks become dashes;
// the rest are dropped.
var folderNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFolderName makes a book name safe to use as a folder name inside
// the stage directories. Returns an empty string when nothing usable
// remains.
func SanitizeFolderName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(folderNameReplacer.Replace(name))
}
