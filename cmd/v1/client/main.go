package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/parley-im/parley/internal/v1/client"
)

// A line-based terminal front end: notifications print as they arrive,
// typed lines become commands.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := client.NewState()
	for _, notice := range state.Notifications() {
		fmt.Println(notice.Text)
	}
	state.SetObserver(func(n client.Notification) {
		fmt.Println(n.Text)
	})

	runner := client.NewRunner(state, nil)
	defer runner.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for ctx.Err() == nil && scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		action, ok := client.ParseCommand(line)
		if !ok {
			state.Push(client.CategoryError, "[-] Invalid command")
			continue
		}

		runner.Apply(ctx, action)
		if _, quit := action.(client.Quit); quit {
			break
		}
	}

	fmt.Println("shutting down client")
}
