// Command rrdcached-demo exercises the collector host-callback surface
// end to end against a real RRA engine binary, the way cmd/snellerd
// wires a daemon's flags, logger, and signal handling together in one
// small main package.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tsbridge/rrdcache"
	"github.com/tsbridge/rrdcache/collector"
	"github.com/tsbridge/rrdcache/config"
	"github.com/tsbridge/rrdcache/engine"
)

func main() {
	cmd := flag.NewFlagSet("rrdcached-demo", flag.ExitOnError)
	bin := cmd.String("engine", "rrdtool", "RRA engine binary to exec for create/update")
	dataDir := cmd.String("data-dir", ".", "directory archive files are written under")
	interval := cmd.Int("interval", 10, "collector global interval, seconds")
	cacheTimeout := cmd.Int("cache-timeout", 300, "cache_timeout, seconds")
	configFile := cmd.String("config", "", "optional YAML config file loaded before flags")

	if err := cmd.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	logger := log.New(os.Stderr, "", log.Lshortfile)

	cfg := config.New()
	if *configFile != "" {
		if err := cfg.LoadFile(*configFile); err != nil {
			logger.Fatal(err)
		}
	}
	if err := cfg.Set("Interval", strconv.Itoa(*interval)); err != nil {
		logger.Fatal(err)
	}
	if err := cfg.Set("CacheTimeout", strconv.Itoa(*cacheTimeout)); err != nil {
		logger.Fatal(err)
	}
	if err := cfg.Set("DataDir", *dataDir); err != nil {
		logger.Fatal(err)
	}
	cfg.Resolve(logger)

	runner := engine.NewRunner(*bin, logger)
	col, err := collector.Init(cfg, runner, logger)
	if err != nil {
		logger.Fatal(err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Printf("shutting down")
		col.Shutdown()
		os.Exit(0)
	}()

	id := rrdcache.Identity{
		Host:   hostname(),
		Plugin: "demo",
		Type:   "gauge",
		Schema: []rrdcache.DataSource{
			{Name: "value", Kind: rrdcache.Gauge, Min: rrdcache.Unknown, Max: rrdcache.Unknown},
		},
	}

	ticker := time.NewTicker(time.Duration(*interval) * time.Second)
	defer ticker.Stop()
	var n float64
	for t := range ticker.C {
		n++
		err := col.Write(id, rrdcache.Sample{Values: []float64{n}, ValueTime: t.Unix()})
		if err != nil {
			logger.Printf("write: %v", err)
		}
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return h
}

