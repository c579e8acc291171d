// Command creditctl inspects and repairs the report job queue.
//
//	creditctl jobs list --status failed
//	creditctl jobs show <job-id>
//	creditctl retry <job-id>
//	creditctl sweep --older-than 10m
//	creditctl enqueue --user <id> --key <blob-key>
//	creditctl migrate up|version
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
