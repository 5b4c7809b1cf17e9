package docstore

import "fmt"

// Migrate copies every bound collection of a running store into another data
// directory. This works for:
// - Moving a deployment to a new volume
// - Taking a consistent offline backup
func Migrate(src *MemStore, dst *Persistence) error {
	for _, name := range src.Collections() {
		coll, err := src.Lookup(name)
		if err != nil {
			return fmt.Errorf("failed to look up collection %s: %w", name, err)
		}
		mc := coll.(*memCollection)

		mc.mu.RLock()
		snapshot := mc.snapshot()
		mc.mu.RUnlock()

		if err := dst.SaveCollection(name, snapshot); err != nil {
			return fmt.Errorf("failed to save collection %s: %w", name, err)
		}
	}
	return nil
}
