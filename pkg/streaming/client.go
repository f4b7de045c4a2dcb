package streaming

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client subscribes to a master's build event feed over a websocket and hands
// every frame to the configured handler. It keeps reconnecting until the
// context is cancelled.
type Client struct {
	Host    string // master base URL, e.g. http://localhost:8080
	Handler func(frame EventFrame)

	backoff backoff.BackOff
}

func (c *Client) Run(ctx context.Context) {
	c.backoff = backoff.NewExponentialBackOff()

	for {
		if ctx.Err() != nil {
			return
		}

		u := webSocketURL(c.Host)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			logrus.Errorf("dial:%s", err.Error())
			c.wait(ctx)
			continue
		}

		logrus.Info("Connected to the build event feed")
		c.backoff.Reset()

		if err := c.subscribe(conn); err != nil {
			logrus.Errorf("subscribe: %s", err)
			conn.Close()
			c.wait(ctx)
			continue
		}

		c.readLoop(ctx, conn)
		conn.Close()
		logrus.Info("Disconnected from the build event feed")
	}
}

func (c *Client) subscribe(conn *websocket.Conn) error {
	sub := Subscription{
		Type:       "subscribe",
		Collection: CollectionBuilds,
		Kinds:      []string{KindNew, KindFinished},
	}
	serialized, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, serialized)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				logrus.Println("read:", err)
				return
			}

			var frame EventFrame
			if err := json.Unmarshal(message, &frame); err != nil {
				logrus.Warnf("cannot decode event frame: %s", err)
				continue
			}
			if frame.Build == nil {
				continue
			}
			c.Handler(frame)
		}
	}()

	select {
	case <-ctx.Done():
		conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	case <-done:
	}
}

func (c *Client) wait(ctx context.Context) {
	next := c.backoff.NextBackOff()
	if next == backoff.Stop {
		c.backoff.Reset()
		next = c.backoff.NextBackOff()
	}
	select {
	case <-ctx.Done():
	case <-time.After(next):
	}
}

func webSocketURL(host string) url.URL {
	hostWithoutScheme := host
	if urlSlice := strings.Split(host, "//"); len(urlSlice) == 2 {
		hostWithoutScheme = urlSlice[1]
	}

	scheme := "ws"
	if strings.HasPrefix(host, "https") {
		scheme = "wss"
	}

	return url.URL{Scheme: scheme, Host: hostWithoutScheme, Path: "/ws/events"}
}
