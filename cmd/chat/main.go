package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"chatsync/internal/client"
	"chatsync/internal/contacts"
	"chatsync/internal/models"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	apiURL := getEnv("API_URL", "http://localhost:3000")
	relayURL := getEnv("RELAY_URL", "ws://localhost:3000/ws")

	token := os.Getenv("CHAT_TOKEN")
	if token == "" {
		email := os.Getenv("CHAT_EMAIL")
		password := os.Getenv("CHAT_PASSWORD")
		if email == "" || password == "" {
			log.Fatal("Set CHAT_TOKEN, or CHAT_EMAIL and CHAT_PASSWORD")
		}
		var err error
		token, err = login(apiURL, email, password)
		if err != nil {
			log.Fatalf("Login failed: %v", err)
		}
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	directory := contacts.New(apiURL, token, httpClient)

	session := client.New(client.Options{
		RelayURL:   relayURL,
		APIURL:     apiURL,
		Directory:  directory,
		HTTPClient: httpClient,
		OnMessage: func(m models.Message) {
			printMessage(m)
		},
	})

	if err := session.Connect(token); err != nil {
		log.Fatalf("Connect failed: %v", err)
	}
	defer session.Disconnect()

	ctx := context.Background()
	if err := directory.Load(ctx); err != nil {
		log.Printf("Could not load contacts: %v", err)
	}
	directory.StartUnreadPolling(30 * time.Second)
	defer directory.StopUnreadPolling()

	for _, m := range session.Messages() {
		printMessage(m)
	}

	fmt.Println("Connected. Type a message, or /help for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			session.EmitTyping(false)
			session.Send(line)
			continue
		}
		if !runCommand(ctx, session, directory, line) {
			return
		}
	}
}

// runCommand handles a slash command. Returns false to quit.
func runCommand(ctx context.Context, session *client.Session, directory *contacts.Directory, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return false

	case "/help":
		fmt.Println("/contacts            list contacts")
		fmt.Println("/select <contactId>  scope the view to one conversation")
		fmt.Println("/all                 back to the broadcast view")
		fmt.Println("/history             load an older history page")
		fmt.Println("/typing              show who is typing")
		fmt.Println("/quit                exit")

	case "/contacts":
		for _, c := range directory.Contacts() {
			status := " "
			if c.Online {
				status = "*"
			}
			fmt.Printf("%s %-20s %s", status, c.Name, c.ID)
			if c.UnreadCount > 0 {
				fmt.Printf("  (%d unread)", c.UnreadCount)
			}
			fmt.Println()
		}

	case "/select":
		if arg == "" {
			fmt.Println("Usage: /select <contactId>")
			break
		}
		directory.Select(arg)
		if err := session.SelectConversation(arg); err != nil {
			log.Printf("history: %v", err)
		}
		if err := directory.MarkContactRead(ctx, arg); err != nil {
			log.Printf("mark read: %v", err)
		}
		for _, m := range session.Messages() {
			printMessage(m)
		}

	case "/all":
		directory.Unselect()
		if err := session.SelectConversation(""); err != nil {
			log.Printf("history: %v", err)
		}
		for _, m := range session.Messages() {
			printMessage(m)
		}

	case "/history":
		msgs := session.Messages()
		if !session.HasMore() || len(msgs) == 0 {
			fmt.Println("No more history")
			break
		}
		if err := session.LoadMessages(msgs[0].Timestamp); err != nil {
			log.Printf("history: %v", err)
		}

	case "/typing":
		users := session.TypingUsers()
		if len(users) == 0 {
			fmt.Println("Nobody is typing")
		}
		for _, t := range users {
			fmt.Printf("%s is typing...\n", t.Author)
		}

	default:
		fmt.Println("Unknown command, try /help")
	}
	return true
}

func printMessage(m models.Message) {
	ts := time.UnixMilli(m.Timestamp).Format("15:04:05")
	fmt.Printf("[%s] %s: %s (%s)\n", ts, m.Author, m.Text, m.Status)
}

type loginResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
}

func login(apiURL, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(apiURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", err
	}
	if !lr.Success || lr.AccessToken == "" {
		if lr.Error != "" {
			return "", fmt.Errorf("login: %s", lr.Error)
		}
		return "", fmt.Errorf("login: unexpected status %d", resp.StatusCode)
	}
	return lr.AccessToken, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
