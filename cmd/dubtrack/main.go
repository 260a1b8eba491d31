// Command dubtrack connects to a room and tails its event stream.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	dubtrack "github.com/DaniilShev/dubtrack-go"
	"github.com/DaniilShev/dubtrack-go/option"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.Must(zap.NewProduction()).Sugar()
	if cfg.Debug {
		logger = zap.Must(zap.NewDevelopment()).Sugar()
	}
	defer logger.Sync()

	opts := []option.RequestOption{
		option.WithLogger(logger),
		option.WithCredentials(cfg.Username, cfg.Password),
		option.WithAutoLogin(cfg.Username != ""),
		option.WithAutoJoin(cfg.AutoJoin),
		option.WithRooms(cfg.Rooms...),
		option.WithOnlyFirstMatch(cfg.OnlyFirstMatch),
		option.WithRaw(cfg.Raw),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := dubtrack.NewClient(opts...)
	defer client.Close()

	client.On(dubtrack.EventChatMessage, func(ev *dubtrack.Event) {
		username := "?"
		if ev.User != nil {
			username = ev.User.Username
		}
		logger.Infow("chat", "from", username, "message", ev.Fields["message"])
	})
	client.On(dubtrack.EventUserJoin, func(ev *dubtrack.Event) {
		if ev.User != nil {
			logger.Infow("user joined", "username", ev.User.Username)
		}
	})
	client.On(dubtrack.EventUserLeave, func(ev *dubtrack.Event) {
		if ev.User != nil {
			logger.Infow("user left", "username", ev.User.Username)
		}
	})
	client.On(dubtrack.EventPlaylistUpdate, func(ev *dubtrack.Event) {
		if ev.Song != nil {
			logger.Infow("now playing", "song", ev.Song.Name, "type", ev.Song.Type)
		}
	})
	client.On(dubtrack.EventError, func(ev *dubtrack.Event) {
		logger.Warnw("background error", "error", ev.Fields["error"])
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		logger.Fatalw("connect failed", "error", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
}
