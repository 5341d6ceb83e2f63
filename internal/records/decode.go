package records

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DecodeJob converts a raw job document into a JobRecord.
func DecodeJob(raw map[string]any) (JobRecord, error) {
	var job JobRecord
	if err := decode(raw, &job); err != nil {
		return JobRecord{}, fmt.Errorf("decoding job: %w", err)
	}
	return job, nil
}

// DecodeHelper converts a raw helper document into a HelperRecord.
func DecodeHelper(raw map[string]any) (HelperRecord, error) {
	var helper HelperRecord
	if err := decode(raw, &helper); err != nil {
		return HelperRecord{}, fmt.Errorf("decoding helper: %w", err)
	}
	return helper, nil
}

// DecodeSnapshot converts a raw decision snapshot into a Snapshot.
func DecodeSnapshot(raw map[string]any) (Snapshot, error) {
	var snapshot Snapshot
	if err := decode(raw, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snapshot, nil
}

func decode(raw map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToTimeHook,
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// timeLayouts are tried in order. Dates of birth are usually stored date-only.
var timeLayouts = []string{time.RFC3339, time.DateOnly}

func stringToTimeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}

	value := data.(string)
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
