// cmd/factory/main.go
package main

import (
	"fmt"
	"os"

	"github.com/Corphon/PodcastContentFactory/internal/tui"
)

func main() {
	if err := tui.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
