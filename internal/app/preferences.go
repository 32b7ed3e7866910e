package app

import (
	"context"
	"fmt"

	"epicshelf/pkg/domain"
	"epicshelf/pkg/settings"
)

// GetSettings returns the device's reading preferences, defaults when
// nothing has been saved yet.
func (a *App) GetSettings(deviceID string) (settings.Settings, error) {
	return a.settings.Get(deviceID)
}

// UpdateSettings persists new preferences for a device and re-styles every
// open reader session bound to it, without reloading any document.
func (a *App) UpdateSettings(deviceID string, s settings.Settings) (settings.Settings, error) {
	if err := a.settings.Put(deviceID, s); err != nil {
		return settings.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	for _, open := range a.sessions.forDevice(deviceID) {
		open.session.ApplyStyles(s)
	}
	return s, nil
}

// LookupWord resolves a dictionary definition through the cache.
func (a *App) LookupWord(ctx context.Context, word string) (domain.Definition, error) {
	if a.dictionary == nil {
		return domain.Definition{}, fmt.Errorf("dictionary not configured")
	}
	return a.dictionary.Lookup(ctx, word)
}
