package version

import (
	"context"
	"fmt"
	"runtime"

	"github.com/paularlott/cli"
)

// Version is set at build time with -ldflags "-X .../cmd/version.Version=..."
var Version = "dev"

func Command() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the version",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("fmcsweep %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
