package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var prompts = []string{
	"Explain gravity",
	"What is a derivative?",
	"Prove Pythagorean theorem",
	"How do vectors add?",
	"Why is the sky blue?",
}

func main() {
	gateway := flag.String("gateway", "http://localhost:8000", "gateway base URL")
	concurrency := flag.Int("concurrency", 10, "number of concurrent students")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	videoRatio := flag.Float64("video-ratio", 0.2, "fraction of turns sent in video mode")
	pollTimeout := flag.Duration("poll-timeout", 3*time.Minute, "how long to wait for a video before giving up")
	pollEvery := flag.Duration("poll-interval", 2*time.Second, "session poll interval")
	flag.Parse()

	fmt.Printf("Load test: %d concurrent students for %s\n", *concurrency, *duration)
	fmt.Printf("Gateway: %s | Video ratio: %.2f\n\n", *gateway, *videoRatio)

	client := &http.Client{Timeout: 2 * time.Minute}
	var mu sync.Mutex
	var results []turnResult
	var wg sync.WaitGroup

	deadline := time.Now().Add(*duration)

	for range *concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()

			sessionID := uuid.NewString()
			for time.Now().Before(deadline) {
				video := rand.Float64() < *videoRatio
				r := runTurn(client, *gateway, sessionID, video)
				if r.success && r.videoGenerating {
					r.videoMs, r.videoReady = waitVideo(client, *gateway, r.sessionID, *pollEvery, *pollTimeout)
				}
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	printSummary(results)
}

type turnResult struct {
	success         bool
	video           bool
	videoGenerating bool
	videoReady      bool
	sessionID       string
	parts           int
	turnMs          float64
	videoMs         float64
	err             string
}

type chatResponse struct {
	Messages        []json.RawMessage `json:"messages"`
	SessionID       string            `json:"sessionId"`
	VideoGenerating bool              `json:"videoGenerating"`
}

func runTurn(client *http.Client, gateway, sessionID string, video bool) turnResult {
	body, _ := json.Marshal(map[string]any{
		"message":   prompts[rand.Intn(len(prompts))],
		"videoMode": video,
		"sessionId": sessionID,
	})

	start := time.Now()
	resp, err := client.Post(gateway+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return turnResult{video: video, err: fmt.Sprintf("post: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return turnResult{video: video, err: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	var cr chatResponse
	if err = json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return turnResult{video: video, err: fmt.Sprintf("decode: %v", err)}
	}
	return turnResult{
		success:         true,
		video:           video,
		videoGenerating: cr.VideoGenerating,
		sessionID:       cr.SessionID,
		parts:           len(cr.Messages),
		turnMs:          float64(time.Since(start).Milliseconds()),
	}
}

// waitVideo polls the session until its video is delivered or timeout passes.
func waitVideo(client *http.Client, gateway, sessionID string, every, timeout time.Duration) (float64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	start := time.Now()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if pollOnce(ctx, client, gateway, sessionID) {
			return float64(time.Since(start).Milliseconds()), true
		}
		select {
		case <-ctx.Done():
			return 0, false
		case <-ticker.C:
		}
	}
}

func pollOnce(ctx context.Context, client *http.Client, gateway, sessionID string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gateway+"/api/sessions/"+sessionID, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	var body struct {
		Ready bool `json:"ready"`
	}
	if json.NewDecoder(resp.Body).Decode(&body) != nil {
		return false
	}
	return body.Ready
}

func printSummary(results []turnResult) {
	var succeeded, failed, videos, videosReady int
	var plainAll, videoTurnAll, videoReadyAll []float64
	errs := map[string]int{}

	for _, r := range results {
		if !r.success {
			failed++
			errs[r.err]++
			continue
		}
		succeeded++
		if !r.video {
			plainAll = append(plainAll, r.turnMs)
			continue
		}
		videos++
		videoTurnAll = append(videoTurnAll, r.turnMs)
		if r.videoReady {
			videosReady++
			videoReadyAll = append(videoReadyAll, r.videoMs)
		}
	}

	fmt.Printf("\n=== Load Test Results ===\n")
	fmt.Printf("Turns completed: %d\n", succeeded)
	fmt.Printf("Turns failed:    %d\n", failed)
	fmt.Printf("Videos ready:    %d/%d\n", videosReady, videos)
	for msg, n := range errs {
		fmt.Fprintf(os.Stderr, "  %4d x %s\n", n, msg)
	}

	if succeeded == 0 {
		fmt.Println("No successful turns to report metrics")
		return
	}

	fmt.Printf("\n%-10s %8s %8s %8s\n", "Stage", "p50", "p95", "p99")
	printRow("Plain", plainAll)
	printRow("VideoTurn", videoTurnAll)
	printRow("VideoReady", videoReadyAll)
}

func printRow(label string, data []float64) {
	if len(data) == 0 {
		return
	}
	fmt.Printf("%-10s %8.0fms %8.0fms %8.0fms\n", label, percentile(data, 50), percentile(data, 95), percentile(data, 99))
}

func percentile(data []float64, pct float64) float64 {
	sort.Float64s(data)
	idx := int(math.Ceil(pct/100*float64(len(data)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(data) {
		idx = len(data) - 1
	}
	return data[idx]
}
