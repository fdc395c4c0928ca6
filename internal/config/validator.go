package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for:
//   - Duplicate task IDs and duplicate child edges
//   - Required fields
//   - Sensible tuning values
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	if cfg.Aggregation.LostFollowerRetryLimit < 0 {
		errs = append(errs, "aggregation.lost_follower_retry_limit must not be negative")
	}

	ids := make(map[string]struct{})
	for i, task := range cfg.Tasks {
		if task.ID == "" {
			errs = append(errs, fmt.Sprintf("tasks[%d]: id is required", i))
			continue
		}
		if _, ok := ids[task.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate task id %q", task.ID))
		} else {
			ids[task.ID] = struct{}{}
		}
		children := make(map[string]struct{}, len(task.Children))
		for _, child := range task.Children {
			if child == "" {
				errs = append(errs, fmt.Sprintf("task %s: empty child id", task.ID))
				continue
			}
			if _, ok := children[child]; ok {
				errs = append(errs, fmt.Sprintf("task %s: duplicate edge to %q", task.ID, child))
			} else {
				children[child] = struct{}{}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
