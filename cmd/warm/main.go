package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"offeragg/internal/aggregate"
	"offeragg/internal/app"
	"offeragg/internal/config"
	"offeragg/internal/provider"
	"offeragg/internal/provider/ratelimit"
)

// record is one NDJSON output line.
type record struct {
	Address provider.Address `json:"address"`
	Offers  []provider.Offer `json:"offers"`
	Error   string           `json:"error,omitempty"`
}

func main() {
	var (
		addrFile    string
		outPath     string
		cfgPath     string
		concurrency int
		timeoutSec  int
		rpm         int
	)
	flag.StringVar(&addrFile, "addresses", "addresses.json", "JSON array of addresses")
	flag.StringVar(&outPath, "out", "offers.ndjson", "output NDJSON path, - for stdout")
	flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json or config.yaml (optional)")
	flag.IntVar(&concurrency, "concurrency", 2, "addresses searched in parallel")
	flag.IntVar(&timeoutSec, "timeout", 120, "per-address timeout seconds")
	flag.IntVar(&rpm, "rpm", 0, "max addresses started per minute (0 = unlimited)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	addrs, err := readAddresses(addrFile)
	if err != nil {
		log.Fatalf("read addresses: %v", err)
	}
	if len(addrs) == 0 {
		log.Fatal("no addresses found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer a.Close()

	var out io.Writer = os.Stdout
	if outPath != "-" {
		f, err := os.Create(outPath)
		if err != nil {
			log.Fatalf("create out: %v", err)
		}
		defer f.Close()
		out = f
	}
	bw := bufio.NewWriterSize(out, 1<<20)

	var tb *ratelimit.TokenBucket
	if rpm > 0 {
		tb = ratelimit.PerMinute(rpm)
	}
	n, failed := warm(ctx, a.Engine, addrs, bw, concurrency, time.Duration(timeoutSec)*time.Second, tb)
	if err := bw.Flush(); err != nil {
		log.Fatalf("flush: %v", err)
	}
	a.Log.Info("warm done", "addresses", len(addrs), "written", n, "failed", failed, "out", outPath)
}

// warm searches every address on a fixed pool of workers and writes one
// record per address in completion order. It returns the number of
// records written and how many searches failed.
func warm(ctx context.Context, e *aggregate.Engine, addrs []provider.Address, w io.Writer, workers int, timeout time.Duration, tb *ratelimit.TokenBucket) (written, failed int) {
	if workers <= 0 {
		workers = 1
	}
	jobs := make(chan provider.Address, workers*2)
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		enc = json.NewEncoder(w)
	)
	enc.SetEscapeHTML(false)

	worker := func() {
		defer wg.Done()
		for addr := range jobs {
			if tb != nil {
				if err := tb.Wait(ctx); err != nil {
					return
				}
			}
			actx, cancel := context.WithTimeout(ctx, timeout)
			offers, err := e.Aggregate(actx, addr)
			cancel()

			rec := record{Address: addr, Offers: offers}
			if err != nil {
				rec.Error = err.Error()
				rec.Offers = []provider.Offer{}
			}
			mu.Lock()
			if err != nil {
				failed++
			}
			if enc.Encode(rec) == nil {
				written++
			}
			mu.Unlock()
		}
	}
	for range workers {
		wg.Add(1)
		go worker()
	}

enqueue:
	for _, addr := range addrs {
		select {
		case jobs <- addr:
		case <-ctx.Done():
			break enqueue
		}
	}
	close(jobs)
	wg.Wait()
	return written, failed
}

func readAddresses(path string) ([]provider.Address, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var addrs []provider.Address
	if err := json.Unmarshal(b, &addrs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return addrs, nil
}
