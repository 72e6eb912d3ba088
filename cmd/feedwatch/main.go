// Command feedwatch signs in, opens one or more live feeds for a profile and
// prints every event it receives. With -watchers > 1 it doubles as a
// connection load test for the feed hub.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"askbox/internal/events"
	"askbox/internal/middleware"

	"github.com/gorilla/websocket"
)

// Metrics tracks connection and delivery counts across watchers.
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	EventsReceived       int64
	ServerCloses         int64
}

var (
	metrics Metrics
	log     = middleware.Logger
)

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	email := flag.String("email", "", "Account email")
	password := flag.String("password", "", "Account password")
	profileID := flag.String("profile", "", "Profile id to watch (must be managed by the account)")
	watchers := flag.Int("watchers", 1, "Number of concurrent feed connections")
	duration := flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	flag.Parse()

	if *email == "" || *password == "" || *profileID == "" {
		flag.Usage()
		os.Exit(2)
	}

	token, err := login(*host, *email, *password)
	if err != nil {
		log.Error("Login failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})
	for i := 0; i < *watchers; i++ {
		wg.Add(1)
		go watch(*host, token, *profileID, i, *watchers == 1, stopChan, &wg)
		if *watchers > 1 {
			// Stagger connections so ticket issuance stays under the rate limit.
			time.Sleep(50 * time.Millisecond)
		}
	}

	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-timeout:
	case <-interrupt:
	case <-done:
	}
	close(stopChan)
	wg.Wait()

	log.Info("feedwatch finished",
		slog.Int64("attempted", atomic.LoadInt64(&metrics.ConnectionsAttempted)),
		slog.Int64("connected", atomic.LoadInt64(&metrics.ConnectionsSuccess)),
		slog.Int64("failed", atomic.LoadInt64(&metrics.ConnectionsFailed)),
		slog.Int64("events", atomic.LoadInt64(&metrics.EventsReceived)),
		slog.Int64("server_closes", atomic.LoadInt64(&metrics.ServerCloses)),
	)
}

func postJSON(target, token string, payload any, out any) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(http.MethodPost, target, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", target, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func login(host, email, password string) (string, error) {
	var result struct {
		Token string `json:"token"`
	}
	err := postJSON(fmt.Sprintf("http://%s/api/auth/login", host), "",
		map[string]string{"email": email, "password": password}, &result)
	return result.Token, err
}

func getTicket(host, token string) (string, error) {
	var result struct {
		Ticket string `json:"ticket"`
	}
	err := postJSON(fmt.Sprintf("http://%s/api/ws/ticket", host), token, nil, &result)
	return result.Ticket, err
}

func watch(host, token, profileID string, id int, verbose bool, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	ticket, err := getTicket(host, token)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		log.Warn("ticket issuance failed", slog.Int("watcher", id), slog.String("error", err.Error()))
		return
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws/profiles/" + profileID, RawQuery: "ticket=" + ticket}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		log.Warn("dial failed", slog.Int("watcher", id), slog.String("error", err.Error()))
		return
	}
	defer func() { _ = c.Close() }()
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			var ev events.Event
			if err := c.ReadJSON(&ev); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					atomic.AddInt64(&metrics.ServerCloses, 1)
					log.Info("feed closed by server", slog.Int("watcher", id))
				}
				return
			}
			atomic.AddInt64(&metrics.EventsReceived, 1)
			if verbose {
				log.Info("event",
					slog.String("type", string(ev.Type)),
					slog.String("profile", ev.ProfileID),
					slog.String("actor", ev.ActorID),
					slog.Time("at", ev.OccurredAt),
					slog.Any("payload", ev.Payload))
			}
		}
	}()

	select {
	case <-stopChan:
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-readDone:
		case <-time.After(time.Second):
		}
	case <-readDone:
	}
}
