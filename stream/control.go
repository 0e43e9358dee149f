package stream

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ftl/ecgscope/ecg"
	"github.com/ftl/ecgscope/playback"
)

var ErrUnknownAction = errors.New("unknown action")

// Controller is controlled by the viewers. *playback.Session implements it.
type Controller interface {
	Play()
	Pause()
	Toggle()
	Reset()
	SetSpeed(speed playback.Speed)
	Select(dataset ecg.Dataset, class ecg.Class) error
}

const (
	PlayAction   = "play"
	PauseAction  = "pause"
	ToggleAction = "toggle"
	ResetAction  = "reset"
	SpeedAction  = "speed"
	SelectAction = "select"
)

// ControlMessage is sent by a viewer to control the playback.
type ControlMessage struct {
	Action  string `json:"action"`
	Speed   string `json:"speed,omitempty"`
	Dataset string `json:"dataset,omitempty"`
	Class   string `json:"class,omitempty"`
}

// Dispatch executes the control message on the controller.
func Dispatch(controller Controller, message ControlMessage) error {
	switch strings.ToLower(strings.TrimSpace(message.Action)) {
	case PlayAction:
		controller.Play()
	case PauseAction:
		controller.Pause()
	case ToggleAction:
		controller.Toggle()
	case ResetAction:
		controller.Reset()
	case SpeedAction:
		speed, err := playback.ParseSpeed(message.Speed)
		if err != nil {
			return err
		}
		controller.SetSpeed(speed)
	case SelectAction:
		dataset, err := ecg.ParseDataset(message.Dataset)
		if err != nil {
			return err
		}
		return controller.Select(dataset, ecg.ResolveClass(dataset, message.Class))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, message.Action)
	}
	return nil
}

var errNoController = errors.New("playback cannot be controlled")
