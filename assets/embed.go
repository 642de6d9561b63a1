// Package assets embeds the default word list and the SQL migrations.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed words.txt sql/*.sql
var FS embed.FS

// Words returns the embedded default word list file contents.
func Words() ([]byte, error) {
	return FS.ReadFile("words.txt")
}

// Migrations returns the embedded migrations rooted at the sql directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}
