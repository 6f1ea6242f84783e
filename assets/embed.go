package assets

import (
	"embed"
	"io/fs"
)

//go:embed bank.json
var bankJSON []byte

//go:embed sql/*.sql
var migrations embed.FS

// BankJSON returns the built-in question bank document.
func BankJSON() []byte {
	return bankJSON
}

// Migrations returns the SQL migration files rooted so names read "sql/NNN_x.sql".
func Migrations() fs.FS {
	return migrations
}
