package scope

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ftl/ecgscope/playback"
)

const (
	timestampField = "timestamp"
	secondsField   = "seconds"
	nanosField     = "nanos"
)

// EncodeFrame converts a playback frame into its wire format. The timestamp is carried
// in the protobuf representation of seconds and nanoseconds.
func EncodeFrame(frame playback.Frame) (*structpb.Struct, error) {
	timestamp := timestamppb.New(frame.Timestamp)
	if err := timestamp.CheckValid(); err != nil {
		return nil, fmt.Errorf("invalid frame timestamp: %w", err)
	}

	fields, err := toMap(frame)
	if err != nil {
		return nil, err
	}
	fields[timestampField] = map[string]any{
		secondsField: float64(timestamp.Seconds),
		nanosField:   float64(timestamp.Nanos),
	}

	return structpb.NewStruct(fields)
}

// DecodeFrame converts the wire format back into a playback frame.
func DecodeFrame(message *structpb.Struct) (playback.Frame, error) {
	var result playback.Frame
	fields := message.AsMap()

	var timestamp timestamppb.Timestamp
	if raw, ok := fields[timestampField].(map[string]any); ok {
		seconds, _ := raw[secondsField].(float64)
		nanos, _ := raw[nanosField].(float64)
		timestamp.Seconds = int64(seconds)
		timestamp.Nanos = int32(nanos)
	}
	delete(fields, timestampField)

	bytes, err := json.Marshal(fields)
	if err != nil {
		return result, fmt.Errorf("cannot read frame: %w", err)
	}
	err = json.Unmarshal(bytes, &result)
	if err != nil {
		return result, fmt.Errorf("cannot read frame: %w", err)
	}
	result.Timestamp = timestamp.AsTime()

	return result, nil
}

func toMap(v any) (map[string]any, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cannot write frame: %w", err)
	}
	var result map[string]any
	err = json.Unmarshal(bytes, &result)
	if err != nil {
		return nil, fmt.Errorf("cannot write frame: %w", err)
	}
	return result, nil
}
