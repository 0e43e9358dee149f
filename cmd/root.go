package cmd

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ftl/ecgscope/config"
	"github.com/ftl/ecgscope/logging"
	"github.com/ftl/ecgscope/scope"
	"github.com/ftl/ecgscope/trace"
)

var (
	version   string = "develop"
	gitCommit string = "-"
	buildTime string = "-"
)

var rootFlags = struct {
	pprof        bool
	debug        bool
	configFile   string
	scope        bool
	scopeAddress string
	trace        string
	traceTo      string
}{}

// configFlags maps configuration keys to the names of the flags that override them.
// A command binds only the flags it defines.
var configFlags = map[string]string{
	"scope.enabled":        "scope",
	"scope.address":        "scope-address",
	"server.address":       "address",
	"telnet.address":       "telnet",
	"nats.url":             "nats",
	"nats.subject":         "nats_subject",
	"playback.dataset":     "dataset",
	"playback.class":       "class",
	"playback.speed":       "speed",
	"playback.beat_length": "length",
	"playback.beats":       "beats",
}

var rootCmd = &cobra.Command{
	Use:          "ecgscope",
	Short:        "ECGScope - synthesize ECG beats, detect their fiducial points and play them back",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootFlags.pprof, "pprof", false, "enable pprof")
	rootCmd.PersistentFlags().BoolVar(&rootFlags.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rootFlags.configFile, "config", "", "the configuration file (default ./config.yaml if present)")
	rootCmd.PersistentFlags().BoolVar(&rootFlags.scope, "scope", false, "enable the scope server that streams the playback frames over gRPC")
	rootCmd.PersistentFlags().StringVar(&rootFlags.scopeAddress, "scope-address", "localhost:5051", "listening address of the scope server")
	rootCmd.PersistentFlags().StringVar(&rootFlags.trace, "trace", "", "the trace context: ticks or fiducials")
	rootCmd.PersistentFlags().StringVar(&rootFlags.traceTo, "trace_to", "", "the trace destination: file:<filename> or udp:<host:port>")

	rootCmd.PersistentFlags().MarkHidden("pprof")
	rootCmd.PersistentFlags().MarkHidden("trace")
	rootCmd.PersistentFlags().MarkHidden("trace_to")
}

// environment is what every command gets to work with.
type environment struct {
	log    *zap.Logger
	config *config.Loader
	scope  scope.Scope
	tracer trace.Tracer
}

func (e *environment) Config() config.Config {
	return e.config.Current()
}

func runWithCtx(f func(ctx context.Context, env *environment, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		loader := config.NewLoader(nil)
		for key, name := range configFlags {
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				continue
			}
			if err := loader.BindFlag(key, flag); err != nil {
				return err
			}
		}
		cfg, err := loader.Load(rootFlags.configFile)
		if err != nil {
			return err
		}

		log, err := logging.New(cfg.Logging, rootFlags.debug)
		if err != nil {
			return err
		}
		defer log.Sync()
		loader.SetLogger(log.Named("config"))

		log.Info("ECGScope", zap.String("version", formatVersion()))

		if rootFlags.pprof {
			go func() {
				log.Info("starting pprof on http://localhost:6060/debug/pprof")
				log.Warn("pprof stopped", zap.Error(http.ListenAndServe("localhost:6060", nil)))
			}()
		}

		tracer, err := trace.New(rootFlags.trace, rootFlags.traceTo, log.Named("trace"))
		if err != nil {
			return err
		}

		var scopeServer *scope.Server
		var s scope.Scope = scope.NewNullScope()
		if cfg.Scope.Enabled {
			scopeServer = scope.NewServer(cfg.Scope.Address, log.Named("scope"))
			err := scopeServer.Start()
			if err != nil {
				return fmt.Errorf("cannot start scope server: %w", err)
			}
			s = scopeServer
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		defer func() {
			signal.Stop(signals)
			close(signals)
		}()
		go handleCancelation(signals, cancel, log)

		err = f(ctx, &environment{log: log, config: loader, scope: s, tracer: tracer}, cmd, args)

		if scopeServer != nil {
			scopeServer.Stop()
		}
		return err
	}
}

func formatVersion() string {
	if gitCommit == "-" && buildTime == "-" {
		return version
	}
	return fmt.Sprintf("%s_%s_%s", version, gitCommit, buildTime)
}

func handleCancelation(signals <-chan os.Signal, cancel context.CancelFunc, log *zap.Logger) {
	count := 0
	for range signals {
		count++
		if count == 1 {
			cancel()
		} else {
			log.Fatal("hard shutdown")
		}
	}
}
