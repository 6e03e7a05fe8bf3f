// cartpole-sweep trains a PPO agent on CartPole and measures how its return
// changes as the simulation interval is scaled.
//
// Usage:
//
//	cartpole-sweep train [--config=<yaml>] [--checkpoint=<path>]
//	cartpole-sweep test  [--config=<yaml>] [--checkpoint=<path>] [--save]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	for _, envFile := range []string{
		".env",
		"../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
