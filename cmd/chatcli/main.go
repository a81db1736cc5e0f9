// Package main provides a terminal chat client that talks to the chat
// server over the push transport and falls back to polling when the
// connection degrades.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cloudbridge/chatcore/internal/client"
	"github.com/cloudbridge/chatcore/internal/domain"
)

func wsURL(baseURL string) string {
	addr := strings.TrimSuffix(baseURL, "/")
	addr = strings.Replace(addr, "https://", "wss://", 1)
	addr = strings.Replace(addr, "http://", "ws://", 1)
	return addr + "/chat/ws"
}

func printMessage(msg domain.Message) {
	label := string(msg.Type)
	switch msg.Type {
	case domain.MessageTypeUser:
		label = "you"
	case domain.MessageTypeAssistant:
		label = "assistant"
	}
	fmt.Printf("\n[%s] %s\n", label, msg.Content)
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Chat server base URL")
	user := flag.String("user", "", "User ID (required)")
	mode := flag.String("mode", "push", "Initial transport: push or pull")
	sessionID := flag.String("session", "", "Resume an existing session")
	pollInterval := flag.Duration("poll", 2*time.Second, "Poll interval in pull mode (0 polls only after sends)")
	timeout := flag.Duration("timeout", 30*time.Second, "Per-request timeout")
	flag.Parse()

	log.SetFlags(log.Ltime)

	if *user == "" {
		log.Fatal("-user is required")
	}

	push := client.NewPushTransport(wsURL(*addr), *user, *timeout)
	pull := client.NewPullTransport(*addr, *user, *timeout)

	var preferred, fallback client.Transport = push, pull
	if *mode == string(client.ModePull) {
		preferred, fallback = pull, push
	}

	mgr := client.NewManager(preferred, fallback, client.ManagerConfig{})
	defer mgr.Close()

	if *sessionID != "" {
		mgr.SetSessionID(*sessionID)
	}

	mgr.OnModeChange(func(from, to client.Mode, reason string) {
		fmt.Printf("\n-- transport switched %s -> %s (%s)\n", from, to, reason)
	})

	fmt.Printf("Connected to %s as %s (%s mode)\n", *addr, *user, mgr.Mode())
	fmt.Println("Type a message and press Enter to send.")
	fmt.Println("Commands: /quit to exit, /session to show the session ID")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Drain new transcript entries in the background. In push mode this
	// empties the buffered frames; in pull mode it is the poll loop.
	go func() {
		interval := *pollInterval
		if interval <= 0 {
			interval = time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				msgs, err := mgr.Receive(ctx)
				if err != nil {
					log.Printf("Receive error: %v", err)
					continue
				}
				for _, msg := range msgs {
					if msg.Type == domain.MessageTypeUser {
						continue
					}
					printMessage(msg)
					fmt.Print("> ")
				}
			}
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		fmt.Println("\nInterrupted")
		cancel()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "/quit":
			fmt.Println("Bye!")
			return
		case "/session":
			fmt.Printf("Session: %s\n", mgr.SessionID())
			continue
		}

		result, err := mgr.Submit(ctx, client.SubmitRequest{Content: input})
		if err != nil {
			log.Printf("Send error: %v", err)
			continue
		}
		if !result.Success {
			if result.Retryable {
				log.Printf("Send failed (retryable): %s", result.Error)
			} else {
				log.Printf("Send failed: %s", result.Error)
			}
			continue
		}
	}
}
