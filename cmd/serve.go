package cmd

import (
	"context"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ftl/ecgscope/config"
	"github.com/ftl/ecgscope/playback"
	"github.com/ftl/ecgscope/server"
	"github.com/ftl/ecgscope/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the HTTP API and the websocket stream of a playback session",
	Long: `Serve the HTTP API and the websocket stream of a playback session.

Changes of the playback settings in the configuration file are applied to the running session.`,
	Args: cobra.NoArgs,
	RunE: runWithCtx(runServe),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("address", "localhost:8080", "listening address of the HTTP server")
	addBeatFlags(serveCmd)
	addPlaybackFlags(serveCmd)
}

func runServe(ctx context.Context, env *environment, _ *cobra.Command, _ []string) error {
	cfg := env.Config()

	var sinks playback.Sinks
	session := newSession(env, &sinks)

	hub := stream.NewHub(session, env.log.Named("ws"))
	defer hub.Close()
	sinks = append(sinks, hub)

	outputs, closeOutputs, err := openOutputs(env, session)
	if err != nil {
		return err
	}
	defer closeOutputs()
	sinks = append(sinks, outputs...)

	err = applyPlaybackConfig(session, config.PlaybackConfig{}, cfg.Playback, env.log)
	if err != nil {
		return err
	}

	session.Start()
	defer session.Stop()

	reloadLock := &sync.Mutex{}
	applied := cfg.Playback
	if env.config.Watch(func(reloaded config.Config) {
		reloadLock.Lock()
		defer reloadLock.Unlock()
		err := applyPlaybackConfig(session, applied, reloaded.Playback, env.log)
		if err != nil {
			env.log.Error("cannot apply the playback configuration", zap.Error(err))
		}
		applied = reloaded.Playback
	}) {
		env.log.Info("watching the configuration file", zap.String("file", env.config.ConfigFile()))
	}

	api := server.New(session, hub, cfg.Server.CORSOrigins, env.log.Named("http"))
	return api.ListenAndServe(ctx, cfg.Server.Address)
}
