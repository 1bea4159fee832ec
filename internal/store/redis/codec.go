package redis

import (
	"encoding/json"
	"fmt"

	"srsignals/internal/model"
)

func unmarshalResult(data []byte, r *model.SignalResult) error {
	if err := json.Unmarshal(data, r); err != nil {
		return fmt.Errorf("decode signal: %w", err)
	}
	if !r.Signal.Valid() {
		return fmt.Errorf("decode signal: invalid value %d", r.Signal)
	}
	return nil
}
