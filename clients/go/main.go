// Chat CLI - command line client for the chat API
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/eldtechnologies/chatterbox/clients/go/chatclient"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	client := chatclient.NewClient(os.Getenv("CHAT_URL"))
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health()
		exitOnError(err)
		printJSON(resp)

	case "login":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: chat login <token>")
			os.Exit(1)
		}
		exitOnError(client.SaveToken(os.Args[2]))
		fmt.Println("Token saved")

	case "contacts":
		users, err := client.Contacts()
		exitOnError(err)
		for _, u := range users {
			fmt.Printf("  %s  %s\n", u.ID, u.FullName)
		}

	case "online":
		ids, err := client.Online()
		exitOnError(err)
		for _, id := range ids {
			fmt.Println(" ", id)
		}

	case "hide":
		requireArgs(3, "chat hide <user_id>")
		exitOnError(client.HideContact(os.Args[2]))
		fmt.Println("Contact hidden")

	case "read":
		requireArgs(3, "chat read <user_id>")
		msgs, err := client.History(os.Args[2])
		exitOnError(err)
		for _, msg := range msgs {
			ts := msg.CreatedAt.Local().Format("2006-01-02 15:04:05")
			line := msg.Text
			if url := msg.AttachmentURL(); url != "" {
				line = strings.TrimSpace(line + " [" + url + "]")
			}
			fmt.Printf("[%s] %s %s: %s\n", ts, msg.ID, msg.SenderID, line)
		}

	case "send":
		requireArgs(4, "chat send <user_id> <message>")
		msg, err := client.SendText(os.Args[2], strings.Join(os.Args[3:], " "))
		exitOnError(err)
		fmt.Printf("Sent: %s\n", msg.ID)

	case "upload":
		requireArgs(4, "chat upload <user_id> <file> [message]")
		f, err := os.Open(os.Args[3])
		exitOnError(err)
		defer f.Close()
		name := filepath.Base(os.Args[3])
		msg, err := client.SendFile(os.Args[2], strings.Join(os.Args[4:], " "), name, mime.TypeByExtension(filepath.Ext(name)), f)
		exitOnError(err)
		fmt.Printf("Sent: %s %s\n", msg.ID, msg.AttachmentURL())

	case "delete":
		requireArgs(3, "chat delete <message_id>")
		exitOnError(client.DeleteMessage(os.Args[2]))
		fmt.Println("Deleted")

	case "listen":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		err := client.Listen(ctx, func(ev chatclient.Event) {
			fmt.Printf("%s %s\n", ev.Type, ev.Data)
		})
		if err != nil && ctx.Err() == nil {
			exitOnError(err)
		}

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Chat CLI

Usage: chat <command> [options]

Commands:
  login <token>                    Save a session token
  contacts                         List visible contacts
  online                           List online users
  hide <user_id>                   Hide a contact
  read <user_id>                   Show the conversation with a user
  send <user_id> <message>         Send a text message
  upload <user_id> <file> [text]   Send a file
  delete <message_id>              Delete a message you sent
  listen                           Print realtime events
  health                           Check server health

Environment:
  CHAT_URL      Server URL (default: http://localhost:8080)
  CHAT_CONFIG   Config directory (default: ~/.chatterbox)`)
}

func requireArgs(n int, usageLine string) {
	if len(os.Args) < n {
		fmt.Fprintln(os.Stderr, "Usage:", usageLine)
		os.Exit(1)
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
