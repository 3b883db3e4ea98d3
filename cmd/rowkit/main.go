// Command rowkit browses and edits rows of MySQL and PostgreSQL databases.
package main

import (
	"os"

	"github.com/gaborage/go-rowkit/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
