package pipeline

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/marketintel/internal/apperr"
	"github.com/aristath/marketintel/internal/modules/indicators"
)

// snapshotState is the on-disk shape PipelineRuntime persists every 60
// seconds: enough per-ticker row history to rebuild accumulator state via
// Engine.Restore. Accumulators themselves aren't serialized.
type snapshotState struct {
	Windows map[string][]indicators.Row `msgpack:"windows"`
}

// saveSnapshot encodes state and writes it atomically (write-to-temp then
// rename) so a crash mid-write never leaves a half-written snapshot file.
func saveSnapshot(path string, state snapshotState) error {
	buf, err := msgpack.Marshal(state)
	if err != nil {
		return fmt.Errorf("pipeline: encode snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("pipeline: write snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("pipeline: rename snapshot into place: %w", err)
	}
	return nil
}

// loadSnapshot reads and decodes path, returning an empty state if the file
// doesn't exist yet. A decode failure or a bounds/index inconsistency in the
// decoded rows (a row's ticker not matching its window key) is reported as
// apperr.ErrSnapshotCorrupt; Runtime.Recover discards the snapshot on this
// error rather than propagating it.
func loadSnapshot(path string) (state snapshotState, err error) {
	buf, readErr := os.ReadFile(path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return snapshotState{Windows: make(map[string][]indicators.Row)}, nil
		}
		return snapshotState{}, fmt.Errorf("pipeline: read snapshot file: %w", readErr)
	}

	defer func() {
		if r := recover(); r != nil {
			state = snapshotState{}
			err = fmt.Errorf("%w: decode panic: %v", apperr.ErrSnapshotCorrupt, r)
		}
	}()

	if decodeErr := msgpack.Unmarshal(buf, &state); decodeErr != nil {
		return snapshotState{}, fmt.Errorf("%w: %v", apperr.ErrSnapshotCorrupt, decodeErr)
	}
	for ticker, rows := range state.Windows {
		for _, row := range rows {
			if row.Ticker != ticker {
				return snapshotState{}, fmt.Errorf("%w: row ticker %q under window key %q", apperr.ErrSnapshotCorrupt, row.Ticker, ticker)
			}
		}
	}
	return state, nil
}
