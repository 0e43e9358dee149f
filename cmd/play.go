package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ftl/ecgscope/config"
	"github.com/ftl/ecgscope/playback"
	"github.com/ftl/ecgscope/stream"
	"github.com/ftl/ecgscope/telnet"
)

var playFlags = struct {
	once bool
}{}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "play back a strip of synthesized beats, controlled through the telnet console",
	Args:  cobra.NoArgs,
	RunE:  runWithCtx(runPlay),
}

func init() {
	rootCmd.AddCommand(playCmd)

	addBeatFlags(playCmd)
	addPlaybackFlags(playCmd)
	playCmd.Flags().BoolVar(&playFlags.once, "once", false, "exit when the playback is complete")
}

// addPlaybackFlags defines the flags of a running playback session and its outputs.
func addPlaybackFlags(cmd *cobra.Command) {
	cmd.Flags().Int("beats", 20, "the number of beats in the strip")
	cmd.Flags().String("speed", string(playback.NormalSpeed), "the playback speed: slow, normal or fast")
	cmd.Flags().String("telnet", "", "listening address of the telnet console (default: no console)")
	cmd.Flags().String("nats", "", "the NATS server url to publish the frames (default: no NATS)")
	cmd.Flags().String("nats_subject", stream.DefaultSubject, "the NATS subject prefix, the session id is appended")
}

func runPlay(ctx context.Context, env *environment, cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sinks playback.Sinks
	session := newSession(env, &sinks)

	outputs, closeOutputs, err := openOutputs(env, session)
	if err != nil {
		return err
	}
	defer closeOutputs()
	sinks = append(sinks, outputs...)

	onComplete := func() {}
	if playFlags.once {
		onComplete = cancel
	}
	sinks = append(sinks, newStatusPrinter(cmd.OutOrStdout(), onComplete))

	err = applyPlaybackConfig(session, config.PlaybackConfig{}, env.Config().Playback, env.log)
	if err != nil {
		return err
	}

	session.Start()
	defer session.Stop()
	session.Play()

	<-ctx.Done()
	return nil
}

// openOutputs opens the configured outputs of the session: the scope, the telnet console and NATS.
func openOutputs(env *environment, session telnet.Controller) (playback.Sinks, func(), error) {
	cfg := env.Config()
	result := playback.Sinks{env.scope}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Telnet.Address != "" {
		console, err := telnet.NewServer(cfg.Telnet.Address, session, formatVersion(), env.log.Named("telnet"))
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("cannot start telnet console: %w", err)
		}
		closers = append(closers, console.Stop)
		result = append(result, console)
	}

	if cfg.NATS.URL != "" {
		conn, err := stream.Connect(cfg.NATS.URL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, conn.Close)
		publisher := stream.NewNATSPublisher(conn, cfg.NATS.Subject, env.log.Named("nats"))
		env.log.Info("publishing frames to NATS", zap.String("url", cfg.NATS.URL), zap.String("subject", cfg.NATS.Subject))
		result = append(result, publisher)
	}

	return result, closeAll, nil
}

// newStatusPrinter writes a line for every change of the playback status.
func newStatusPrinter(w io.Writer, onComplete func()) playback.Sink {
	announced := false
	var last playback.Status
	return playback.SinkFunc(func(frame playback.Frame) {
		if announced && frame.Status == last {
			return
		}
		announced = true
		last = frame.Status

		fmt.Fprintf(w, "%s %s at %s speed, frame %d\n", frame.Timestamp.Format("15:04:05"), frame.Status, frame.Speed, frame.Frame)
		if frame.Status == playback.Complete {
			onComplete()
		}
	})
}
