package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kayesmahmud/Speaky/pkg/auth"
	"github.com/kayesmahmud/Speaky/pkg/chat"
	"github.com/kayesmahmud/Speaky/pkg/logger"
	"github.com/kayesmahmud/Speaky/pkg/model"
	"go.uber.org/zap"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "gateway service address")
	token := flag.String("token", "", "bearer token (minted from -user and -secret when empty)")
	userID := flag.Int64("user", 0, "user id to mint a token for")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "JWT secret used to mint a token")
	connectionID := flag.Int64("conn", 0, "connection id to chat in")
	flag.Parse()

	log := logger.New("info", "client")
	defer log.Sync()

	if *connectionID <= 0 {
		log.Fatal("-conn is required")
	}
	if *token == "" {
		if *userID <= 0 || *secret == "" {
			log.Fatal("either -token or -user with -secret is required")
		}
		t, err := auth.NewJWT(*secret).GenerateToken(*userID, 24*time.Hour)
		if err != nil {
			log.Fatal("failed to mint token", zap.Error(err))
		}
		*token = t
	}

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws/chat"}
	log.Info("connecting", zap.String("url", u.String()))

	header := http.Header{}
	header.Add("Authorization", "Bearer "+*token)
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		log.Fatal("dial failed", zap.Int("status", status), zap.Error(err))
	}
	defer c.Close()

	send := func(kind chat.Kind, data interface{}) error {
		raw, err := chat.Encode(kind.String(), data)
		if err != nil {
			return err
		}
		return c.WriteMessage(websocket.TextMessage, raw)
	}

	if err := send(chat.KindJoinRoom, chat.JoinRoom{ConnectionID: *connectionID}); err != nil {
		log.Fatal("join failed", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Info("read closed", zap.Error(err))
				return
			}
			printFrame(message)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			var err error
			switch text {
			case "":
			case "/quit":
				interrupt <- os.Interrupt
				return
			case "/typing":
				err = send(chat.KindTyping, chat.Typing{ConnectionID: *connectionID, IsTyping: true})
			case "/stop":
				err = send(chat.KindTyping, chat.Typing{ConnectionID: *connectionID, IsTyping: false})
			case "/read":
				err = send(chat.KindMarkRead, chat.MarkRead{ConnectionID: *connectionID})
			case "/leave":
				err = send(chat.KindLeaveRoom, chat.LeaveRoom{ConnectionID: *connectionID})
			default:
				err = send(chat.KindSendMessage, chat.SendMessage{ConnectionID: *connectionID, Content: text, Type: string(model.TypeText)})
			}
			if err != nil {
				log.Error("write failed", zap.Error(err))
				return
			}
			fmt.Print("> ")
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		// Cleanly close the connection by sending a close message and then
		// waiting (with timeout) for the server to close the connection.
		err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Warn("write close", zap.Error(err))
			return
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func printFrame(raw []byte) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		fmt.Printf("\r%s\n> ", raw)
		return
	}
	switch f.Event {
	case chat.EventNewMessage:
		var m model.MessagePayload
		json.Unmarshal(f.Data, &m)
		fmt.Printf("\r[%d] user %d: %s\n> ", m.ID, m.SenderID, m.Content)
	case chat.EventUserTyping:
		var t model.TypingPayload
		json.Unmarshal(f.Data, &t)
		if t.IsTyping {
			fmt.Printf("\ruser %d is typing...\n> ", t.UserID)
		}
	case chat.EventMessagesRead:
		var r model.ReadReceiptPayload
		json.Unmarshal(f.Data, &r)
		fmt.Printf("\ruser %d read %d message(s)\n> ", r.ReadBy, len(r.MessageIDs))
	case chat.EventError:
		var e model.ErrorPayload
		json.Unmarshal(f.Data, &e)
		fmt.Printf("\rerror: %s\n> ", e.Message)
	default:
		fmt.Printf("\r%s: %s\n> ", f.Event, f.Data)
	}
}
