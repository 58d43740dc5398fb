//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	wsmsg "github.com/gokatarajesh/literacy-games/pkg/http/ws"
)

type guestInfo struct {
	ID           string
	DisplayName  string
	AccessToken  string
	RefreshToken string
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func createGuest(t *testing.T, baseURL, displayName string) guestInfo {
	t.Helper()

	payload := map[string]string{
		"display_name": fmt.Sprintf("%s %d", displayName, time.Now().UnixNano()%10000),
	}
	resp := makeAuthenticatedRequest(t, http.MethodPost, fmt.Sprintf("%s/v1/players/guest", baseURL), "", payload)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected guest response status: %d", resp.StatusCode)
	}

	var out struct {
		PlayerID     string `json:"player_id"`
		DisplayName  string `json:"display_name"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode guest response failed: %v", err)
	}
	if out.AccessToken == "" {
		t.Fatalf("empty access token in guest response")
	}

	return guestInfo{
		ID:           out.PlayerID,
		DisplayName:  out.DisplayName,
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
	}
}

func makeAuthenticatedRequest(t *testing.T, method, target, token string, payload interface{}) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, target, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, target, err)
	}
	return resp
}

func dialPlayWS(t *testing.T, wsBase, token string) *websocket.Conn {
	t.Helper()

	u, err := url.Parse(wsBase)
	if err != nil {
		t.Fatalf("invalid WS url: %v", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	return conn
}

func sendMessage(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()

	msg := wsmsg.Message{Type: msgType}
	if payload != nil {
		var err error
		if msg, err = wsmsg.NewMessage(msgType, payload); err != nil {
			t.Fatalf("encode %s: %v", msgType, err)
		}
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("send %s: %v", msgType, err)
	}
}

// waitFor reads until a message of msgType arrives, decoding its payload into dst.
func waitFor(t *testing.T, conn *websocket.Conn, msgType string, dst interface{}, timeout time.Duration) wsmsg.Message {
	t.Helper()

	deadline := time.Now().Add(timeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	for {
		var msg wsmsg.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if msg.Type == wsmsg.TypeError && msgType != wsmsg.TypeError {
			t.Fatalf("server error while waiting for %s: %s", msgType, msg.Payload)
		}
		if msg.Type != msgType {
			continue
		}
		if dst != nil {
			if err := json.Unmarshal(msg.Payload, dst); err != nil {
				t.Fatalf("decode %s payload: %v", msgType, err)
			}
		}
		return msg
	}
}
