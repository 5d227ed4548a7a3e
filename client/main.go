package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const playerHeader = "X-Player-ID"

type api struct {
	base string
	http *http.Client
}

// call sends body as JSON and decodes the response into out. Non-2xx responses are errors.
func (a *api) call(method, path, player string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, a.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if player != "" {
		req.Header.Set(playerHeader, player)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, data)
	}
	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}

type ref struct {
	ID string `json:"id"`
}

// main plays the two-player scenario: B finds A on the first try and wins.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "game server base URL")
	flag.Parse()

	a := &api{base: *addr, http: &http.Client{Timeout: 10 * time.Second}}
	must := func(err error) {
		if err != nil {
			log.Fatalf("scenario failed: %v", err)
		}
	}

	var game ref
	must(a.call("POST", "/games", "", map[string]any{"name": "smoke"}, &game))
	log.Printf("Created game %s", game.ID)
	base := "/games/" + game.ID

	must(a.call("PATCH", base, "", map[string]any{
		"zone": map[string]any{"lat": 0, "lng": 0, "radiusMeters": 500},
	}, nil))

	var hider, seeker ref
	must(a.call("POST", base+"/players", "", map[string]any{"name": "A"}, &hider))
	must(a.call("POST", base+"/players", "", map[string]any{"name": "B"}, &seeker))
	must(a.call("PATCH", base, "", map[string]any{"phase": "hiding"}, nil))

	var hidePhoto ref
	must(a.call("POST", "/photos", "", map[string]any{
		"url": "https://example.invalid/a.jpg", "lat": 0, "lng": 0, "accuracyMeters": 5,
	}, &hidePhoto))
	must(a.call("PUT", base+"/players/"+hider.ID+"/hiding-photo", hider.ID, map[string]any{"photoId": hidePhoto.ID}, nil))
	must(a.call("PATCH", base, "", map[string]any{"phase": "seeking"}, nil))
	log.Printf("Seeking started")

	var shot ref
	must(a.call("POST", "/photos", "", map[string]any{
		"url": "https://example.invalid/b.jpg", "lat": 0, "lng": 0.00003, "accuracyMeters": 5,
	}, &shot))

	var result struct {
		Submission struct {
			Status string `json:"status"`
		} `json:"submission"`
		Won bool `json:"won"`
	}
	must(a.call("POST", base+"/submissions", seeker.ID, map[string]any{"hiderId": hider.ID, "photoId": shot.ID}, &result))
	log.Printf("Submission %s, won=%v", result.Submission.Status, result.Won)

	var view struct {
		Game struct {
			Phase    string `json:"phase"`
			WinnerID string `json:"winnerId"`
		} `json:"game"`
	}
	must(a.call("GET", base, "", nil, &view))
	if view.Game.Phase != "completed" || view.Game.WinnerID != seeker.ID {
		log.Fatalf("unexpected final state: phase=%s winner=%s", view.Game.Phase, view.Game.WinnerID)
	}
	log.Printf("Game completed, winner %s", view.Game.WinnerID)
}
