// ChartDeck CLI
//
// Talks to a chartdeck server from the command line:
//
//	deck-cli folders            list deck folders
//	deck-cli load -folder X     run the progressive deck load and watch it fill
//	deck-cli stats -folder X    show round accuracy for a folder
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/chartdeck/chartdeck/internal/config"
	"github.com/chartdeck/chartdeck/internal/deck"
	"github.com/chartdeck/chartdeck/internal/events"
	"github.com/chartdeck/chartdeck/internal/fetch"
	"github.com/chartdeck/chartdeck/internal/loader"
	"github.com/chartdeck/chartdeck/internal/logging"
	"github.com/chartdeck/chartdeck/internal/manifest"
	"github.com/chartdeck/chartdeck/internal/planner"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "folders":
		cmdFolders(os.Args[2:])
	case "load":
		cmdLoad(os.Args[2:])
	case "stats":
		cmdStats(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: deck-cli <folders|load|stats> [flags]")
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func newClient(cfg *config.Config, serverURL, token string) *fetch.Client {
	if serverURL == "" {
		serverURL = cfg.ServerURL
	}
	if token == "" {
		token = cfg.AuthToken
	}
	return fetch.NewClient(fetch.Config{
		BaseURL:   serverURL,
		AuthToken: token,
	})
}

func cmdFolders(args []string) {
	fs := flag.NewFlagSet("folders", flag.ExitOnError)
	serverURL := fs.String("server", "", "Server URL (default $CHARTDECK_SERVER_URL)")
	token := fs.String("token", "", "JWT authentication token (default $CHARTDECK_TOKEN)")
	fs.Parse(args)

	cfg := loadConfig()
	client := newClient(cfg, *serverURL, *token)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	folders, err := client.FetchFolders(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FOLDER\tFILES\tTICKERS")
	for _, f := range folders {
		tickers := make(map[string]struct{})
		for _, fd := range f.Files {
			if t := fd.Ticker(); t != "" {
				tickers[t] = struct{}{}
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%d\n", f.Name, len(f.Files), len(tickers))
	}
	w.Flush()
}

func cmdLoad(args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	folder := fs.String("folder", "", "Folder to load (required)")
	serverURL := fs.String("server", "", "Server URL (default $CHARTDECK_SERVER_URL)")
	token := fs.String("token", "", "JWT authentication token (default $CHARTDECK_TOKEN)")
	verbose := fs.Bool("v", false, "Debug logging")
	fs.Parse(args)

	if *folder == "" {
		fmt.Fprintln(os.Stderr, "Error: -folder is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadConfig()
	level := "warn"
	if *verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: "console"})
	defer logging.Sync()

	client := newClient(cfg, *serverURL, *token)
	ess := deck.NewEssentials(cfg.EssentialFiles)
	p := planner.New(ess, cfg.PointsFile, cfg.AfterFile, cfg.MaxHistoryPerTicker)
	cache := manifest.New(client, cfg.ManifestTTL)
	batcher := fetch.NewBatcher(client, cfg.FetchConcurrency, p.ChartFile)

	ctrl := loader.New(client, cache, p, batcher, loader.Options{
		Essentials:          ess,
		ReadyMinFiles:       cfg.ReadyMinFiles,
		QuickBatchSize:      cfg.QuickBatchSize,
		BackgroundBatchSize: cfg.BackgroundBatchSize,
		LoadTimeout:         cfg.LoadTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		ctrl.Cleanup()
		cancel()
	}()

	ch := ctrl.Events().Subscribe()
	defer ctrl.Events().Unsubscribe(ch)

	start := time.Now()
	if err := ctrl.FetchFlashcards(ctx, *folder); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("deck presentable after %s (%d cards)\n",
		time.Since(start).Round(time.Millisecond), len(ctrl.Cards()))

	for ev := range ch {
		switch ev.Type {
		case events.EventCardsUpdated:
			fmt.Printf("  ... %d cards, %d files\n", ev.Cards, ev.Files)
		case events.EventDone:
			fmt.Printf("load complete: %d cards, %d ready, %d files in %s\n",
				ev.Cards, ev.Ready, ev.Files, time.Since(start).Round(time.Millisecond))
			printCards(ctrl.Cards())
			return
		case events.EventError:
			fmt.Fprintf(os.Stderr, "Error: %s\n", ev.Message)
			os.Exit(1)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func printCards(cards []*deck.Flashcard) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tFILES\tREADY")
	for _, c := range cards {
		fmt.Fprintf(w, "%s\t%d\t%v\n", c.ID, len(c.Files), c.IsReady)
	}
	w.Flush()
}

func cmdStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	folder := fs.String("folder", "", "Folder to summarize (empty = all)")
	serverURL := fs.String("server", "", "Server URL (default $CHARTDECK_SERVER_URL)")
	token := fs.String("token", "", "JWT authentication token (default $CHARTDECK_TOKEN)")
	fs.Parse(args)

	cfg := loadConfig()
	base := *serverURL
	if base == "" {
		base = cfg.ServerURL
	}
	tok := *token
	if tok == "" {
		tok = cfg.AuthToken
	}

	url := base + "/api/v1/stats"
	if *folder != "" {
		url += "?folder=" + *folder
	}
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Rounds   int     `json:"rounds"`
			Correct  int     `json:"correct"`
			Accuracy float64 `json:"accuracy"`
			Score    int     `json:"score"`
		} `json:"data"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !body.Success {
		fmt.Fprintf(os.Stderr, "Error: %s\n", body.Message)
		os.Exit(1)
	}

	fmt.Printf("rounds:   %d\n", body.Data.Rounds)
	fmt.Printf("correct:  %d\n", body.Data.Correct)
	fmt.Printf("accuracy: %.1f%%\n", body.Data.Accuracy*100)
	fmt.Printf("score:    %d\n", body.Data.Score)
}
