// Command client is a terminal tester for the relay server.
// It logs in, opens the WebSocket and turns stdin lines into frames:
//
//	@<user-id> <text>   send a message
//	/typing <user-id>   send a typing signal
//	/stop <user-id>     clear the typing signal
//	/history <user-id>  print the conversation history
//	/unread             print the unread count
//	/quit               leave
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type frame struct {
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type clientFrame struct {
	Action     string `json:"action"`
	ReceiverID string `json:"receiver_id,omitempty"`
	Content    string `json:"content,omitempty"`
	Type       string `json:"type,omitempty"`
}

func main() {
	if err := run(); err != nil {
		color.Red.Printf("Fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var config Config
	if err := envconfig.Process("chat", &config); err != nil {
		return err
	}

	token, err := authenticate(config)
	if err != nil {
		return err
	}

	wsURL, err := toWebsocketURL(config.ServerURL, token)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()
	color.Green.Printf("Connected as %s\n", config.Username)

	go printIncoming(conn)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}
		if err := handleLine(conn, config, token, line); err != nil {
			color.Red.Printf("Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func handleLine(conn *websocket.Conn, config Config, token, line string) error {
	switch {
	case strings.HasPrefix(line, "@"):
		receiver, content, ok := strings.Cut(strings.TrimPrefix(line, "@"), " ")
		if !ok {
			return fmt.Errorf("usage: @<user-id> <text>")
		}
		return conn.WriteJSON(clientFrame{Action: "send_message", ReceiverID: receiver, Content: content})

	case strings.HasPrefix(line, "/typing "):
		return conn.WriteJSON(clientFrame{Action: "typing", ReceiverID: strings.TrimPrefix(line, "/typing ")})

	case strings.HasPrefix(line, "/stop "):
		return conn.WriteJSON(clientFrame{Action: "stop_typing", ReceiverID: strings.TrimPrefix(line, "/stop ")})

	case strings.HasPrefix(line, "/history "):
		return printHistory(config, token, strings.TrimPrefix(line, "/history "))

	case line == "/unread":
		return printUnread(config, token)

	default:
		return fmt.Errorf("unknown command %q", line)
	}
}

func authenticate(config Config) (string, error) {
	path := "/login"
	if config.Register {
		path = "/register"
	}

	body, _ := json.Marshal(map[string]string{
		"username": config.Username,
		"password": config.Password,
	})
	resp, err := http.Post(config.ServerURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s failed with status %d", path, resp.StatusCode)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	return payload.Token, nil
}

func toWebsocketURL(serverURL, token string) (string, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path = "/ws"
	parsed.RawQuery = url.Values{"token": {token}}.Encode()
	return parsed.String(), nil
}

func printIncoming(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			color.Yellow.Println("Connection closed")
			return
		}

		switch f.Event {
		case "message":
			var m struct {
				SenderID string `json:"sender_id"`
				Content  string `json:"content"`
			}
			_ = json.Unmarshal(f.Data, &m)
			color.Green.Printf("[%s] %s\n", m.SenderID, m.Content)
		case "message_sent":
			var m struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			}
			_ = json.Unmarshal(f.Data, &m)
			color.Gray.Printf("sent %s (%s)\n", m.ID, m.Status)
		case "presence", "presence_state":
			color.Yellow.Printf("presence: %s\n", string(f.Data))
		case "typing":
			var t struct {
				SenderID string `json:"sender_id"`
			}
			_ = json.Unmarshal(f.Data, &t)
			color.Cyan.Printf("%s is typing...\n", t.SenderID)
		case "stop_typing":
			var t struct {
				SenderID string `json:"sender_id"`
			}
			_ = json.Unmarshal(f.Data, &t)
			color.Cyan.Printf("%s stopped typing\n", t.SenderID)
		case "error":
			color.Red.Printf("error: %s\n", string(f.Data))
		default:
			fmt.Printf("%s: %s\n", f.Event, string(f.Data))
		}
	}
}

func printHistory(config Config, token, peer string) error {
	messages, err := fetchHistory(config, token, peer)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "From", "Status", "Content"})
	for _, m := range messages {
		table.Append([]string{m.CreatedAt, m.SenderID, m.Status, m.Content})
	}
	table.Render()
	return nil
}

type historyMessage struct {
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func fetchHistory(config Config, token, peer string) ([]historyMessage, error) {
	req, err := http.NewRequest(http.MethodGet,
		config.ServerURL+"/messages?peer="+url.QueryEscape(peer), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Messages []historyMessage `json:"messages"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Messages, nil
}

func printUnread(config Config, token string) error {
	req, err := http.NewRequest(http.MethodGet, config.ServerURL+"/unread", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var payload struct {
		Count int `json:"count"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}
	color.Yellow.Printf("%d unread message(s)\n", payload.Count)
	return nil
}
