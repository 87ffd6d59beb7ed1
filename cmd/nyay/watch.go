package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Nit2312/NyaySarthi/internal/jobs"
)

// eventsURL turns the API base URL into the websocket address of
// /jobs/events, with the token in the query as well as the header.
func eventsURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/jobs/events"
	u.RawQuery = url.Values{"access_token": {token}}.Encode()
	return u.String(), nil
}

func watchJobs(ctx context.Context, client *apiClient, out io.Writer) error {
	addr, err := eventsURL(client.baseURL, client.token)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+client.token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, addr, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("server returned %d on websocket upgrade", resp.StatusCode)
		}
		return fmt.Errorf("server not reachable, is nyay serve running? (%w)", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	printStep("Watching job events (Ctrl-C to stop)")
	for {
		var ev jobs.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading event: %w", err)
		}
		printEvent(out, ev)
	}
}

func printEvent(w io.Writer, ev jobs.Event) {
	ts := ev.At.Local().Format("15:04:05")
	if ev.Removed {
		fmt.Fprintf(w, "%s  %s  %s  %s\n", ts, colorize(colorCyan, ev.JobID), colorize(colorRed, "removed"), ev.Job.Filename)
		return
	}
	from := string(ev.From)
	if from == "" {
		from = "new"
	}
	fmt.Fprintf(w, "%s  %s  %s → %s  %s\n", ts, colorize(colorCyan, ev.JobID), from,
		colorize(jobStatusColor(ev.To), string(ev.To)), ev.Job.Filename)
	if ev.Job.LastError != "" {
		fmt.Fprintf(w, "          %s\n", ev.Job.LastError)
	}
}
