// Command ecowatch tracks species observations against ambient
// temperature and humidity thresholds.
package main

import (
	"context"
	"os"

	"github.com/roach88/ecowatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
