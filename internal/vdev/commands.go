package vdev

import (
	"context"
	"time"
)

// CommandExact is the action verb for writing an explicit value rather
// than a symbolic one. All other verbs ("on", "off", "stop", "open",
// "close", "up", "down"...) write themselves as the level metric.
const CommandExact = "exact"

// Argument keys understood by PerformCommand for exact actions.
const (
	ArgLevel  = "level"
	ArgChange = "change"
	ArgRed    = "red"
	ArgGreen  = "green"
	ArgBlue   = "blue"
)

// Action is an abstract command in the registry's vocabulary, produced
// by the command translator and applied via PerformCommand.
type Action struct {
	// Command is either CommandExact or a plain verb.
	Command string

	// Args carries per-verb arguments: level, change token or RGB
	// components. Nil for plain verbs.
	Args map[string]any
}

// PerformCommand applies an abstract action to a device by writing its
// metrics. Plain verbs write the verb itself as a symbolic level.
// Exact actions dispatch on their arguments:
//
//   - a "change" token writes the token as the level
//   - red, green and blue together write the colour metric
//   - a "level" argument writes that value as the level
//
// An exact action carrying none of the above is a no-op.
//
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) PerformCommand(ctx context.Context, id string, action Action) error {
	if action.Command != CommandExact {
		return r.SetLevel(ctx, id, action.Command)
	}

	if token, ok := action.Args[ArgChange]; ok {
		return r.SetLevel(ctx, id, token)
	}

	red, hasRed := action.Args[ArgRed]
	green, hasGreen := action.Args[ArgGreen]
	blue, hasBlue := action.Args[ArgBlue]
	if hasRed && hasGreen && hasBlue {
		return r.setColor(ctx, id, red, green, blue)
	}

	if level, ok := action.Args[ArgLevel]; ok {
		return r.SetLevel(ctx, id, level)
	}

	r.logger.Debug("exact action without arguments ignored", "id", id)
	return nil
}

// setColor writes the colour metric of a device.
// Colour writes do not fire level events.
func (r *Registry) setColor(ctx context.Context, id string, red, green, blue any) error {
	r.cacheMu.Lock()
	cached, ok := r.cache[id]
	if !ok {
		r.cacheMu.Unlock()
		device, err := r.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		r.cacheMu.Lock()
		if existing, found := r.cache[id]; found {
			cached = existing
		} else {
			cached = device.DeepCopy()
			r.cache[id] = cached
		}
	}
	defer r.cacheMu.Unlock()

	updated := cached.DeepCopy()
	if updated.Metrics == nil {
		updated.Metrics = make(Metrics)
	}

	now := time.Now().UTC()
	updated.Metrics[MetricColor] = map[string]any{
		"r": red,
		"g": green,
		"b": blue,
	}
	updated.UpdateTime = now.Unix()
	updated.ModificationTime = now.Unix()
	updated.UpdatedAt = now

	if err := r.repo.UpdateMetrics(ctx, id, updated.Metrics, updated.UpdateTime, updated.ModificationTime); err != nil {
		return err
	}
	r.cache[id] = updated

	r.logger.Debug("colour metric written", "id", id)
	return nil
}
