package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Simulates hosts creating and heartbeating lobbies plus guests browsing and
// joining them, against a running lobby server.

var hostPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
}

func playerName(idx int) string {
	prefixIdx := idx % len(hostPrefixes)
	suffix := idx/len(hostPrefixes) + 1
	return fmt.Sprintf("%s%d", hostPrefixes[prefixIdx], suffix)
}

type lobbyRecord struct {
	LobbyID string `json:"lobby_id"`
}

type stats struct {
	created    atomic.Int64
	heartbeats atomic.Int64
	joins      atomic.Int64
	errs       atomic.Int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the lobby server")
	hosts := flag.Int("hosts", 20, "Number of concurrent simulated hosts")
	heartbeatEvery := flag.Duration("heartbeat", 5*time.Second, "Heartbeat period per host")
	joinRate := flag.Int("join-rate", 5, "Guest join attempts per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = until interrupted)")
	dropRate := flag.Float64("drop-rate", 0.1, "Fraction of hosts that silently stop heartbeating")
	flag.Parse()

	log.Printf("lobby loadgen: url=%s hosts=%d heartbeat=%s join-rate=%d drop-rate=%.2f",
		*baseURL, *hosts, *heartbeatEvery, *joinRate, *dropRate)

	client := &http.Client{Timeout: 10 * time.Second}
	st := &stats{}

	stop := make(chan struct{})
	var wg sync.WaitGroup

	// Hosts: create a lobby, then heartbeat it. A fraction of hosts "crash"
	// after a while so the server's cleanup sweep has something to reap.
	for i := 0; i < *hosts; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			runHost(client, *baseURL, idx, *heartbeatEvery, *dropRate, st, stop)
		}(i)
	}

	// Guests: browse the public list and join a random waiting lobby.
	wg.Add(1)
	go func() {
		defer wg.Done()
		runGuests(client, *baseURL, *joinRate, st, stop)
	}()

	// Stats ticker
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				log.Printf("created=%d heartbeats=%d joins=%d errors=%d",
					st.created.Load(), st.heartbeats.Load(), st.joins.Load(), st.errs.Load())
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if *duration > 0 {
		select {
		case <-quit:
		case <-time.After(*duration):
		}
	} else {
		<-quit
	}

	close(stop)
	wg.Wait()

	log.Printf("done: created=%d heartbeats=%d joins=%d errors=%d",
		st.created.Load(), st.heartbeats.Load(), st.joins.Load(), st.errs.Load())
}

func runHost(client *http.Client, baseURL string, idx int, heartbeatEvery time.Duration, dropRate float64, st *stats, stop chan struct{}) {
	playerID := fmt.Sprintf("host-%d", idx)
	name := playerName(idx)

	body := map[string]interface{}{
		"player_id":    playerID,
		"display_name": name,
		"visibility":   "public",
		"game_settings": map[string]interface{}{
			"time_control": "10+0",
			"variant":      "standard",
			"rated":        idx%2 == 0,
		},
		"connection_info": map[string]interface{}{
			"mode":    "direct",
			"address": fmt.Sprintf("203.0.113.%d:7777", idx%250+1),
		},
		"max_players": 2,
	}

	var lobby lobbyRecord
	if err := postJSON(client, baseURL+"/api/v1/lobbies", body, &lobby); err != nil {
		log.Printf("host %s: create failed: %v", playerID, err)
		st.errs.Add(1)
		return
	}
	st.created.Add(1)

	// Some hosts go silent so expiry has work to do
	drops := rand.Float64() < dropRate
	dropAfter := time.Duration(rand.Intn(60)+30) * time.Second
	started := time.Now()

	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()

	hb := map[string]string{"player_id": playerID}
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if drops && time.Since(started) > dropAfter {
				return
			}
			url := fmt.Sprintf("%s/api/v1/lobbies/%s/heartbeat", baseURL, lobby.LobbyID)
			if err := postJSON(client, url, hb, nil); err != nil {
				st.errs.Add(1)
				return
			}
			st.heartbeats.Add(1)
		}
	}
}

func runGuests(client *http.Client, baseURL string, joinRate int, st *stats, stop chan struct{}) {
	if joinRate <= 0 {
		return
	}
	ticker := time.NewTicker(time.Second / time.Duration(joinRate))
	defer ticker.Stop()

	guestSeq := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			resp, err := client.Get(baseURL + "/api/v1/lobbies?status=waiting_for_opponent&visibility=public")
			if err != nil {
				st.errs.Add(1)
				continue
			}
			var lobbies []lobbyRecord
			err = json.NewDecoder(resp.Body).Decode(&lobbies)
			resp.Body.Close()
			if err != nil || len(lobbies) == 0 {
				continue
			}

			guestSeq++
			target := lobbies[rand.Intn(len(lobbies))]
			url := fmt.Sprintf("%s/api/v1/lobbies/%s/join", baseURL, target.LobbyID)
			join := map[string]string{
				"player_id":    fmt.Sprintf("guest-%d", guestSeq),
				"display_name": playerName(guestSeq + 1000),
			}
			// Full or already-started lobbies are expected misses here
			if err := postJSON(client, url, join, nil); err == nil {
				st.joins.Add(1)
			}
		}
	}
}

func postJSON(client *http.Client, url string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
