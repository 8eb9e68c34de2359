// Package main - agitator
// Load generator: a crowd of WebSocket bots playing the ER at once.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/engine"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/network"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/logger"
)

// Config for the agitator
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	Output         string
}

// Stats tracks performance metrics
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	Errors           int64
	Cures            int64
	Rejected         int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

func (s *Stats) addLatency(d time.Duration) {
	s.mu.Lock()
	s.Latencies = append(s.Latencies, d)
	s.mu.Unlock()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	config := Config{}
	cmd := &cobra.Command{
		Use:          "agitator",
		Short:        "Stress the ER server with concurrent WebSocket players",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), config)
		},
	}
	cmd.Flags().StringVar(&config.ServerURL, "url", "ws://localhost:8085/ws", "WebSocket server URL")
	cmd.Flags().IntVar(&config.NumClients, "clients", 20, "Number of concurrent clients")
	cmd.Flags().DurationVar(&config.ActionInterval, "interval", 200*time.Millisecond, "Action interval per client")
	cmd.Flags().DurationVar(&config.TestDuration, "duration", 60*time.Second, "Test duration")
	cmd.Flags().StringVar(&config.Output, "output", "stress_test_results.json", "Results file")
	return cmd
}

func run(parent context.Context, config Config) error {
	log := logger.NewLogger().With("component", "agitator")

	fmt.Println("=========================================")
	fmt.Println("🚑 AGITATOR - ER Stress Test Tool")
	fmt.Println("=========================================")
	fmt.Printf("Server: %s\n", config.ServerURL)
	fmt.Printf("Clients: %d\n", config.NumClients)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(parent, config.TestDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stats := runStressTest(ctx, config, log)
	return printResults(stats, config)
}

func runStressTest(ctx context.Context, config Config, log *logger.Logger) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	var wg sync.WaitGroup

	fmt.Println("\n🚀 Starting clients...")

	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			runClient(ctx, clientID, config, stats, log.With("client", fmt.Sprint(clientID)))
		}(i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}

	fmt.Printf("✅ All %d clients started\n\n", config.NumClients)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("📊 Progress: Sent=%d Recv=%d Cures=%d Errors=%d\n",
					atomic.LoadInt64(&stats.MessagesSent),
					atomic.LoadInt64(&stats.MessagesReceived),
					atomic.LoadInt64(&stats.Cures),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()
	return stats
}

// player keeps the last state it saw and the send time of the pending action.
type player struct {
	mu      sync.Mutex
	view    *engine.GameView
	pending time.Time
}

func (p *player) setView(v engine.GameView) {
	p.mu.Lock()
	p.view = &v
	p.mu.Unlock()
}

func (p *player) snapshot() *engine.GameView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

func (p *player) sent() {
	p.mu.Lock()
	p.pending = time.Now()
	p.mu.Unlock()
}

func (p *player) answered() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending.IsZero() {
		return 0, false
	}
	d := time.Since(p.pending)
	p.pending = time.Time{}
	return d, true
}

func runClient(ctx context.Context, clientID int, config Config, stats *Stats, log *logger.Logger) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Error("Connection failed", err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	p := &player{}
	go receive(conn, p, stats)

	// Client 0 opens the shift. The others join whatever session is running.
	if clientID == 0 {
		if err := send(conn, p, stats, network.Action{Type: "START"}); err != nil {
			return
		}
	}

	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			next := network.Action{Type: "POLL"}
			if v := p.snapshot(); v != nil {
				if !v.IsRunning && clientID == 0 {
					next = network.Action{Type: "START"}
				} else if move, ok := pickMove(*v); ok {
					next = move
				}
			}
			if err := send(conn, p, stats, next); err != nil {
				log.Warn("Write failed: " + err.Error())
				return
			}
		}
	}
}

func send(conn *websocket.Conn, p *player, stats *Stats, a network.Action) error {
	p.sent()
	if err := conn.WriteJSON(a); err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return err
	}
	atomic.AddInt64(&stats.MessagesSent, 1)
	return nil
}

func receive(conn *websocket.Conn, p *player, stats *Stats) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		atomic.AddInt64(&stats.MessagesReceived, 1)

		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			atomic.AddInt64(&stats.Errors, 1)
			continue
		}
		switch f.Type {
		case network.FrameState:
			var v engine.GameView
			if json.Unmarshal(f.Data, &v) == nil {
				p.setView(v)
			}
		case network.FrameResult:
			if d, ok := p.answered(); ok {
				stats.addLatency(d)
			}
			var r network.Response
			if json.Unmarshal(f.Data, &r) != nil {
				continue
			}
			switch {
			case r.Cure != nil:
				atomic.AddInt64(&stats.Cures, 1)
			case r.Status == network.StatusError:
				atomic.AddInt64(&stats.Rejected, 1)
			}
		}
	}
}

func printResults(stats *Stats, config Config) error {
	fmt.Println("\n=========================================")
	fmt.Println("📊 STRESS TEST RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	errs := atomic.LoadInt64(&stats.Errors)
	cures := atomic.LoadInt64(&stats.Cures)
	rejected := atomic.LoadInt64(&stats.Rejected)

	fmt.Printf("Messages Sent:     %d\n", sent)
	fmt.Printf("Messages Received: %d\n", recv)
	fmt.Printf("Patients Cured:    %d\n", cures)
	fmt.Printf("Rejected Actions:  %d\n", rejected)
	fmt.Printf("Errors:            %d\n", errs)
	fmt.Printf("Error Rate:        %.2f%%\n", float64(errs)/float64(sent+1)*100)

	throughput := float64(sent) / config.TestDuration.Seconds()
	fmt.Printf("Throughput:        %.2f msg/sec\n", throughput)

	lat := summarize(stats.Latencies)
	if lat.Count > 0 {
		fmt.Printf("\nRound trip:\n")
		fmt.Printf("  Min: %v\n", lat.Min)
		fmt.Printf("  Avg: %v\n", lat.Avg)
		fmt.Printf("  Max: %v\n", lat.Max)
	}

	fmt.Println("\n-----------------------------------------")
	switch {
	case errs == 0:
		fmt.Println("✅ TEST PASSED: System handled the load")
	case float64(errs)/float64(sent+1) < 0.05:
		fmt.Println("⚠️ TEST WARNING: Some errors detected")
	default:
		fmt.Println("❌ TEST FAILED: High error rate")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"messages_sent":      sent,
		"messages_received":  recv,
		"patients_cured":     cures,
		"rejected_actions":   rejected,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"latency_ms": map[string]float64{
			"min": ms(lat.Min),
			"avg": ms(lat.Avg),
			"max": ms(lat.Max),
		},
		"config": map[string]interface{}{
			"clients":  config.NumClients,
			"interval": config.ActionInterval.String(),
			"duration": config.TestDuration.String(),
		},
	}

	jsonData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(config.Output, jsonData, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	fmt.Printf("\n📁 Results saved to %s\n", config.Output)
	return nil
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
