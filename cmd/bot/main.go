package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/qdice/internal/bot"
)

func main() {
	url := flag.String("url", "http://localhost:8009", "server base URL")
	tag := flag.String("table", "Melchor", "table tag to join")
	name := flag.String("name", "RemoteBot", "dev login name")
	strategyName := flag.String("strategy", "RandomCareful", "bot strategy")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	strategies, err := bot.ParseLineup(*strategyName)
	if err != nil || len(strategies) != 1 {
		log.Fatal().Err(err).Str("strategy", *strategyName).Msg("Invalid strategy")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Received shutdown signal")
		cancel()
	}()

	player := bot.NewRemotePlayer(bot.NewClient(*name, *url), *tag, strategies[0])
	if err := player.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Remote bot failed")
	}
	log.Info().Msg("Remote bot stopped")
}
