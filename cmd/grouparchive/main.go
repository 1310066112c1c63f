// Command grouparchive archives GroupMe chats and renders them.
package main

import (
	"os"

	// Render timezones must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"

	"github.com/roach88/grouparchive/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
