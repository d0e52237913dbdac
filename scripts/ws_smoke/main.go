package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:8080", "server base URL")
	email := flag.String("email", "tester@example.com", "login email")
	password := flag.String("password", "password123", "login password")
	room := flag.String("room", "", "room UUID")
	text := flag.String("text", "hello from smoke test", "message text to send")
	tail := flag.Bool("tail", false, "keep printing frames instead of exiting after the echo")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run (ignored with -tail)")
	flag.Parse()

	if *room == "" {
		return fmt.Errorf("-room is required")
	}

	ctx := context.Background()
	if !*tail {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	var login struct {
		Token string `json:"token"`
	}
	if err := call(ctx, http.MethodPost, *base+"/api/login", "", map[string]string{
		"email":    *email,
		"password": *password,
	}, &login); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var admission proto.AdmissionTokenResponse
	if err := call(ctx, http.MethodGet, *base+"/ws/issue-token/rooms/"+url.PathEscape(*room), login.Token, nil, &admission); err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	wsURL := strings.Replace(*base, "http", "ws", 1) + "/ws/rooms/" + url.PathEscape(*room) +
		"?" + proto.QueryToken + "=" + url.QueryEscape(admission.Token)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	var posted proto.MessageFrame
	if err := call(ctx, http.MethodPost, *base+"/api/messages/"+url.PathEscape(*room), login.Token, map[string]string{
		"messageType": "text",
		"content":     *text,
	}, &posted); err != nil {
		return fmt.Errorf("post message: %w", err)
	}

	for {
		var frame proto.MessageFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		fmt.Printf("[%s] %s (%s): %s\n", frame.SentAt, frame.Sender, frame.MessageType, frame.Content)

		if !*tail && frame.ID == posted.ID {
			fmt.Println("smoke test ok")
			return nil
		}
	}
}

func call(ctx context.Context, method, target, token string, body, out any) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %s", method, target, resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
