// Chat CLI - command line client for the marketplace chat service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/letsssss/naver-real-sub000/clients/go/marketchat"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("CHAT_URL")
	token := os.Getenv("CHAT_TOKEN")
	if token == "" {
		fmt.Fprintln(os.Stderr, "CHAT_TOKEN is required")
		os.Exit(1)
	}

	client := marketchat.NewClient(baseURL, token)
	ctx := context.Background()
	cmd := os.Args[1]

	switch cmd {
	case "open":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: chat open <order-number|post:ID>")
			os.Exit(1)
		}
		orderNumber, postID := anchorArgs(os.Args[2])
		resp, err := client.OpenRoom(ctx, orderNumber, postID)
		exitOnError(err)
		fmt.Printf("room %s with %s (%d unread, %s)\n",
			resp.Room.ID, resp.OtherParty.Nickname, resp.UnreadCount, resp.ConnState)
		for _, msg := range resp.Messages {
			printMessage(msg)
		}

	case "send":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: chat send <room-id> <text>")
			os.Exit(1)
		}
		msg, err := client.Send(ctx, os.Args[2], os.Args[3])
		exitOnError(err)
		fmt.Printf("sent %s\n", msg.ID)

	case "read":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: chat read <room-id>")
			os.Exit(1)
		}
		exitOnError(client.MarkRead(ctx, os.Args[2]))
		fmt.Println("marked read")

	case "unread":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: chat unread <room-id>")
			os.Exit(1)
		}
		count, err := client.Unread(ctx, os.Args[2])
		exitOnError(err)
		fmt.Println(count)

	case "watch":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: chat watch <room-id>")
			os.Exit(1)
		}
		watchCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		exitOnError(client.Feed(watchCtx, os.Args[2], func(ev marketchat.Event) {
			switch ev.Kind {
			case "connection.changed":
				fmt.Printf("-- %s --\n", ev.State)
			case "message.updated":
				fmt.Printf("read: %s\n", ev.Message.ID)
			default:
				printMessage(ev.Message)
			}
		}))

	default:
		usage()
		os.Exit(1)
	}
}

func anchorArgs(arg string) (orderNumber, postID string) {
	if len(arg) > 5 && arg[:5] == "post:" {
		return "", arg[5:]
	}
	return arg, ""
}

func printMessage(msg marketchat.Message) {
	ts := time.UnixMilli(msg.Timestamp).Format("2006-01-02 15:04:05")
	from := msg.SenderID
	if len(from) > 8 {
		from = from[:8]
	}
	status := ""
	if msg.Status != "" && msg.Status != "sent" {
		status = " (" + msg.Status + ")"
	}
	fmt.Printf("[%s] %s: %s%s\n", ts, from, msg.Content, status)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: chat <command> [args]

Commands:
  open <order-number|post:ID>  open the conversation for an order or listing
  send <room-id> <text>        send a message
  read <room-id>               mark the conversation read
  unread <room-id>             print the unread badge count
  watch <room-id>              stream live events`)
}
