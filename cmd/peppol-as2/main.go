// Command peppol-as2 sends PEPPOL business documents over AS2.
//
//	peppol-as2 send --config ap.yaml --receiver 9915:receiver --doctype ... --process ... invoice.xml
//	peppol-as2 lookup 9915:receiver --doctype ...
//	peppol-as2 watch --config ap.yaml
//	peppol-as2 keystore list --config ap.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
