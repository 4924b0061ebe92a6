// maestro supervises a pool of worker processes on a single host.
package main

import (
	"os"

	"github.com/Iron-Ham/maestro/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
