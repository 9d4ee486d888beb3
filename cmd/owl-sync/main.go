// Command owl-sync refreshes every project channel once and posts the digest.
//
//	owl-sync              refresh + post digest to each channel
//	owl-sync -dry-run     refresh only
//	owl-sync -join C123   add the bot to a channel, then exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/hvac-owl/internal/bootstrap"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "refresh analyses without posting to Slack")
	join := flag.String("join", "", "channel ID to join")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	bootstrap.Logger(cfg)

	if cfg.Slack.BotToken == "" {
		log.Fatal().Msg("SLACK_BOT_TOKEN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	svc := bootstrap.ChannelService(cfg, bootstrap.AI(cfg), bootstrap.Slack(cfg), store)

	if *join != "" {
		ch, err := svc.Join(ctx, *join)
		if err != nil {
			log.Fatal().Err(err).Str("channel", *join).Msg("join failed")
		}
		log.Info().Str("channel", ch.ID).Str("name", ch.Name).Msg("joined channel")
		return
	}

	if len(svc.Projects) == 0 {
		log.Fatal().Msg("no project channels configured (PROJECT_CHANNELS)")
	}
	log.Info().Int("projects", len(svc.Projects)).Bool("post", !*dryRun).Msg("starting sync")
	if err := svc.SyncAll(ctx, !*dryRun); err != nil {
		log.Error().Err(err).Msg("sync finished with errors")
		store.Close()
		os.Exit(1)
	}
	log.Info().Msg("sync complete")
}
