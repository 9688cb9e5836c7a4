package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"offeragg/internal/app"
	"offeragg/internal/config"
	"offeragg/internal/filter"
	"offeragg/internal/provider"
	"offeragg/internal/report"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fl := flag.NewFlagSet("fetch", flag.ContinueOnError)
	var (
		addr        provider.Address
		configPath  string
		output      string
		sortKey     string
		timeout     int
		minSpeed    int
		maxDuration int
		minLimit    int
		age         int
		tv          string
		unlimited   bool
		install     bool
		connections string
		providers   string
	)
	fl.StringVar(&addr.Street, "street", getenv("STREET", ""), "street name")
	fl.StringVar(&addr.HouseNumber, "house", getenv("HOUSE_NUMBER", ""), "house number")
	fl.StringVar(&addr.PostalCode, "plz", getenv("PLZ", ""), "postal code")
	fl.StringVar(&addr.City, "city", getenv("CITY", ""), "city")
	fl.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json or config.yaml (optional)")
	fl.StringVar(&output, "o", "table", "output format: table or json")
	fl.StringVar(&sortKey, "sort", "cost_first_years", "cost_first_years, cost_later_years, speed or none")
	fl.IntVar(&timeout, "timeout", 0, "overall timeout in seconds (default from config)")
	fl.IntVar(&minSpeed, "min-speed", 0, "minimum speed in Mbit/s")
	fl.IntVar(&maxDuration, "max-duration", 0, "maximum contract duration in months")
	fl.IntVar(&minLimit, "min-limit", 0, "minimum data limit in GB (unlimited offers always pass)")
	fl.IntVar(&age, "age", 0, "customer age; drops offers with a lower age cap")
	fl.StringVar(&tv, "tv", "", "yes to require TV, no to exclude it")
	fl.BoolVar(&unlimited, "unlimited", false, "only offers without a data limit")
	fl.BoolVar(&install, "installation", false, "only offers with installation included")
	fl.StringVar(&connections, "connection", "", "comma-separated connection types (dsl,cable,fiber,...)")
	fl.StringVar(&providers, "providers", "", "comma-separated provider names")
	if err := fl.Parse(args); err != nil {
		return err
	}

	if err := addr.Validate(); err != nil {
		fl.Usage()
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if timeout <= 0 {
		timeout = cfg.Server.RequestTimeoutSec
	}

	var c filter.Criteria
	if minSpeed > 0 {
		c.MinSpeed = &minSpeed
	}
	if maxDuration > 0 {
		c.MaxDuration = &maxDuration
	}
	if minLimit > 0 {
		c.MinLimitGB = &minLimit
	}
	if age > 0 {
		c.Age = &age
	}
	if tv != "" {
		c.TV = provider.Ptr(filter.ParseBool(tv))
	}
	c.UnlimitedOnly = unlimited
	c.InstallationRequired = install
	c.ConnectionTypes = splitCSV(connections)
	for _, name := range splitCSV(providers) {
		id, ok := provider.ParseID(name)
		if !ok {
			return fmt.Errorf("unknown provider %q", name)
		}
		c.Providers = append(c.Providers, id)
	}
	key, err := filter.ParseSortKey(sortKey)
	if err != nil {
		return err
	}
	if output != "table" && output != "json" {
		return fmt.Errorf("unknown output format %q", output)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	offers, err := a.Engine.Search(ctx, addr, c, key)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if output == "json" {
		return report.JSON(os.Stdout, offers)
	}
	return report.Table(os.Stdout, offers)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
