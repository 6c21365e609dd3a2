package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/foundry/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (optional, defaults to ~/.config/foundry/config.toml)")
	prefsPath := flag.String("prefs", "", "preferences file path (optional)")
	envPath := flag.String("env", "", "dotenv file to load (optional, defaults to ./.env when present)")
	pollSeconds := flag.Int("poll", 0, "task status poll interval in seconds (optional, defaults to 5s)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("foundry", app.Version)
		return 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{ConfigPath: *configPath, PrefsPath: *prefsPath, EnvPath: *envPath}
	if poll := *pollSeconds; poll > 0 {
		opts.PollEvery = poll
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "foundry: %v\n", err)
		return 1
	}
	return 0
}
