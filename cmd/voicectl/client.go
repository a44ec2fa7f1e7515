package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/infrastructure/circuitbreaker"
)

// Client talks to a running assistant as one logged-in user.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	log     *zap.Logger
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    circuitbreaker.NewInstrumentedClient(15 * time.Second),
		log:     log,
	}
}

type loginResponse struct {
	Tokens struct {
		AccessToken string `json:"accessToken"`
	} `json:"tokens"`
	Error string `json:"error"`
}

func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	var out loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login: %s (%d)", out.Error, resp.StatusCode)
	}

	c.token = out.Tokens.AccessToken
	c.log.Info("Logged in", zap.String("email", email))
	return nil
}

func (c *Client) wsURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	query.Set("token", c.token)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func (c *Client) dial(path string, query url.Values) (*websocket.Conn, error) {
	target, err := c.wsURL(path, query)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	c.log.Debug("Connected", zap.String("path", path))
	return conn, nil
}

// OpenVoice opens a turn stream. Audio frames are sent in format.
func (c *Client) OpenVoice(format string) (*VoiceSession, error) {
	query := url.Values{}
	if format != "" {
		query.Set("format", format)
	}
	conn, err := c.dial("/ws/voice", query)
	if err != nil {
		return nil, err
	}
	return &VoiceSession{conn: conn}, nil
}

// WatchEvents prints each recorded turn as one JSON line until ctx ends.
func (c *Client) WatchEvents(ctx context.Context, w io.Writer) error {
	conn, err := c.dial("/ws/events", url.Values{})
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var event domain.TurnRecorded
		if err := json.Unmarshal(data, &event); err != nil {
			c.log.Warn("Skipping malformed event", zap.Error(err))
			continue
		}
		fmt.Fprintf(w, "%s %s %s %s\n", event.TurnID, event.State, event.Outcome, event.Response)
	}
}

// Reply is one server answer on the voice stream.
type Reply struct {
	domain.TurnOutcome
	Error string `json:"error,omitempty"`
}

// VoiceSession is an open /ws/voice connection. Turns are strictly
// request/reply.
type VoiceSession struct {
	conn *websocket.Conn
}

func (s *VoiceSession) SendText(text string) (*Reply, error) {
	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	return s.roundTrip(websocket.TextMessage, data)
}

func (s *VoiceSession) SendAudio(audio []byte) (*Reply, error) {
	return s.roundTrip(websocket.BinaryMessage, audio)
}

func (s *VoiceSession) roundTrip(messageType int, data []byte) (*Reply, error) {
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		return nil, err
	}
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var reply Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &reply, nil
}

func (s *VoiceSession) Close() error {
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
