package cmd

import (
	"errors"

	"go.uber.org/zap"

	"github.com/ftl/ecgscope/config"
	"github.com/ftl/ecgscope/ecg"
	"github.com/ftl/ecgscope/playback"
)

// playbackTarget is the part of a session that follows the playback configuration.
type playbackTarget interface {
	SetBeatLayout(beatLength int, beatCount int) error
	SetSpeed(speed playback.Speed)
	Select(dataset ecg.Dataset, class ecg.Class) error
}

// newSession creates a session that publishes to the given sinks. The sinks slice may
// be extended until the session is started.
func newSession(env *environment, sinks *playback.Sinks) *playback.Session {
	session := playback.NewSession("", env.log.Named("playback"), playback.WallClock, playback.SinkFunc(func(frame playback.Frame) {
		sinks.Publish(frame)
	}))
	session.SetTracer(env.tracer)
	return session
}

// applyPlaybackConfig brings the target from one playback configuration to the next.
// Only what changed is applied, a new beat layout or selection loads a new strip.
// With a zero from, everything is applied.
func applyPlaybackConfig(target playbackTarget, from, to config.PlaybackConfig, log *zap.Logger) error {
	var errs []error

	if from.Speed != to.Speed {
		speed, err := playback.ParseSpeed(to.Speed)
		if err != nil {
			errs = append(errs, err)
		} else {
			target.SetSpeed(speed)
			log.Info("playback speed changed", zap.Stringer("speed", speed))
		}
	}

	layoutChanged := from.BeatLength != to.BeatLength || from.Beats != to.Beats
	if layoutChanged {
		if err := target.SetBeatLayout(to.BeatLength, to.Beats); err != nil {
			return errors.Join(append(errs, err)...)
		}
	}

	if layoutChanged || from.Dataset != to.Dataset || from.Class != to.Class {
		dataset, class, err := resolveSelection(to.Dataset, to.Class)
		if err == nil {
			err = target.Select(dataset, class)
		}
		if err != nil {
			errs = append(errs, err)
		} else {
			log.Info("strip selected", zap.Stringer("dataset", dataset), zap.Stringer("class", class))
		}
	}

	return errors.Join(errs...)
}
