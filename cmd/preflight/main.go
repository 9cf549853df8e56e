// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/hamed0406/statuspulse/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	if err := godotenv.Load(); err == nil {
		ok(".env loaded")
	}

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		fail(err.Error())
	}

	ok("API_ADDR=" + cfg.Addr)
	ok("STORE_DRIVER=" + cfg.StoreDriver)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		warn("STORE_DRIVER=memory: sites and history are lost on restart.")
	case config.DriverSQLite:
		ok("SQLITE_PATH=" + cfg.SQLitePath)
	case config.DriverPostgres:
		ok("DATABASE_URL present")
	}
	ok(fmt.Sprintf("CHECK_INTERVAL=%s PROBE_TIMEOUT=%s SWEEP_CONCURRENCY=%d",
		cfg.CheckInterval, cfg.ProbeTimeout, cfg.SweepConcurrency))
	if cfg.ProbeTimeout >= cfg.CheckInterval {
		warn("PROBE_TIMEOUT is not shorter than CHECK_INTERVAL; slow sites will cause skipped sweeps.")
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		warn("ALLOWED_ORIGINS=* allows any browser origin.")
	} else {
		ok(fmt.Sprintf("ALLOWED_ORIGINS=%v", cfg.AllowedOrigins))
	}
	if cfg.RateLimitRPM == 0 {
		warn("RATE_LIMIT_RPM=0: rate limiting disabled.")
	}

	ok("preflight passed")
}
