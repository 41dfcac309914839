// Command coursectl is a terminal client for the coursehub API.
//
// Usage:
//
//	coursectl [-server URL] [-session FILE] <command> [args]
//
// Commands: signup, login, logout, me, courses, course ID, enroll ID,
// unenroll ID, enrolled.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
