package telnet

import (
	"fmt"
	"strings"

	"github.com/ftl/ecgscope/ecg"
	"github.com/ftl/ecgscope/playback"
)

const prompt = "ecg> "

// Controller is controlled through the console. *playback.Session implements it.
type Controller interface {
	Play()
	Pause()
	Toggle()
	Reset()
	SetSpeed(speed playback.Speed)
	Select(dataset ecg.Dataset, class ecg.Class) error
	Snapshot() playback.Snapshot
}

const help = `commands:
  play                      start or resume the playback
  pause                     pause the playback
  toggle                    toggle between play and pause
  reset                     rewind to the beginning
  speed <slow|normal|fast>  change the playback speed
  select <dataset> [class]  load a new strip, e.g. select mitbih V
  status                    show the playback status
  help                      show this help
`

// Execute runs one command line against the controller and returns the response.
func Execute(controller Controller, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	command := strings.ToLower(fields[0])
	args := fields[1:]

	if controller == nil && command != "help" {
		return "error: playback cannot be controlled\n"
	}

	switch command {
	case "help", "?":
		return help
	case "play":
		controller.Play()
	case "pause":
		controller.Pause()
	case "toggle":
		controller.Toggle()
	case "reset":
		controller.Reset()
	case "speed":
		if len(args) != 1 {
			return "usage: speed <slow|normal|fast>\n"
		}
		speed, err := playback.ParseSpeed(args[0])
		if err != nil {
			return fmt.Sprintf("error: %v\n", err)
		}
		controller.SetSpeed(speed)
	case "select":
		if len(args) == 0 {
			return "usage: select <dataset> [class]\n"
		}
		dataset, err := ecg.ParseDataset(args[0])
		if err != nil {
			return fmt.Sprintf("error: %v\n", err)
		}
		err = controller.Select(dataset, ecg.ResolveClass(dataset, strings.Join(args[1:], " ")))
		if err != nil {
			return fmt.Sprintf("error: %v\n", err)
		}
	case "status":
		return formatStatus(controller.Snapshot())
	default:
		return fmt.Sprintf("unknown command %q, try help\n", fields[0])
	}
	return formatStatus(controller.Snapshot())
}

func formatStatus(snapshot playback.Snapshot) string {
	if snapshot.Total == 0 {
		return fmt.Sprintf("%s, no strip selected\n", snapshot.Status)
	}
	return fmt.Sprintf("%s %s: %s at %s speed, frame %d of %d, viewport %d-%d\n",
		snapshot.Dataset, snapshot.Class, snapshot.Status, snapshot.Speed,
		snapshot.Frame, snapshot.Total, snapshot.Viewport.Start, snapshot.Viewport.End)
}
