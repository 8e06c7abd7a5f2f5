package coverage

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/pkg/logger"
)

func newOrdered[V any]() *orderedmap.OrderedMap[string, V] {
	return orderedmap.New[string, V]()
}

// keysOf lists the keys oldest first.
func keysOf[V any](m *orderedmap.OrderedMap[string, V]) []string {
	keys := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// decodeEntries decodes every value on its own so one drifted entry only drops itself.
func decodeEntries[T any](file string, raw *orderedmap.OrderedMap[string, json.RawMessage]) *orderedmap.OrderedMap[string, T] {
	out := newOrdered[T]()
	if raw == nil {
		return out
	}

	skipped := 0
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		var v T
		if err := json.Unmarshal(pair.Value, &v); err != nil {
			skipped++
			logger.Debug("Skipping dataset entry",
				zap.String("file", file),
				zap.String("id", pair.Key),
				zap.Error(err),
			)
			continue
		}
		out.Set(pair.Key, v)
	}
	if skipped > 0 {
		logger.Warn("Dataset entries skipped", zap.String("file", file), zap.Int("skipped", skipped))
	}
	return out
}
