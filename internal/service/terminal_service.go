// internal/service/terminal_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fallrisk/super-serial/internal/link"
	"github.com/fallrisk/super-serial/internal/linkerr"
	"github.com/fallrisk/super-serial/internal/profile"
	"github.com/fallrisk/super-serial/internal/serialcfg"
	"github.com/fallrisk/super-serial/internal/transport"
	"github.com/fallrisk/super-serial/internal/utils"
)

// LinkStatus is a snapshot of the link
type LinkStatus struct {
	State       link.State              `json:"state"`
	LinkID      *uuid.UUID              `json:"link_id,omitempty"`
	Config      *serialcfg.SerialConfig `json:"config,omitempty"`
	Description string                  `json:"description,omitempty"`
}

// TerminalService serializes concurrent callers onto one link manager and
// keeps the profile set in memory, persisting every change.
type TerminalService struct {
	mu sync.Mutex

	manager      *link.Manager
	store        *profile.Store
	profilesPath string
	profiles     *profile.Collection
	listPorts    func() ([]transport.PortInfo, error)

	logger *utils.ServiceLogger
}

// NewTerminalService creates a terminal service. The profile set starts
// empty until LoadProfiles is called.
func NewTerminalService(
	manager *link.Manager,
	store *profile.Store,
	profilesPath string,
	logger *zap.Logger,
) *TerminalService {
	return &TerminalService{
		manager:      manager,
		store:        store,
		profilesPath: profilesPath,
		profiles:     profile.NewCollection(nil),
		listPorts:    transport.ListPorts,
		logger:       utils.NewServiceLogger(logger, "terminal"),
	}
}

// LoadProfiles replaces the in-memory set with the profile file's contents.
// On failure the previous set is kept.
func (ts *TerminalService) LoadProfiles() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	loaded, err := ts.store.Load(ts.profilesPath)
	if err != nil {
		ts.logger.Warn("Keeping previous profiles", zap.Error(err), zap.Int("count", ts.profiles.Len()))
		return err
	}

	ts.profiles = profile.NewCollection(loaded)
	return nil
}

// Profiles returns the profiles in file order
func (ts *TerminalService) Profiles() []profile.Profile {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	return ts.profiles.List()
}

// Profile returns the profile called name
func (ts *TerminalService) Profile(name string) (profile.Profile, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	p, ok := ts.profiles.Get(strings.TrimSpace(name))
	if !ok {
		return profile.Profile{}, fmt.Errorf("%w: %s", profile.ErrNotFound, name)
	}
	return p, nil
}

// SaveProfile validates raw, stores it under name and writes the file.
// An existing profile with the same name is replaced.
func (ts *TerminalService) SaveProfile(name string, raw serialcfg.RawConfig) (profile.Profile, error) {
	p, err := profile.New(name, raw)
	if err != nil {
		return profile.Profile{}, err
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	next := profile.NewCollection(ts.profiles.List())
	next.Put(p)
	if err := ts.commit(next); err != nil {
		return profile.Profile{}, err
	}

	ts.logger.Info("Profile saved", zap.String("profile", p.Name))
	return p, nil
}

// DeleteProfile removes the profile called name and writes the file.
func (ts *TerminalService) DeleteProfile(name string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	next := profile.NewCollection(ts.profiles.List())
	if !next.Delete(name) {
		return fmt.Errorf("%w: %s", profile.ErrNotFound, name)
	}
	if err := ts.commit(next); err != nil {
		return err
	}

	ts.logger.Info("Profile deleted", zap.String("profile", name))
	return nil
}

// RenameProfile renames a profile in place and writes the file.
func (ts *TerminalService) RenameProfile(from, to string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	next := profile.NewCollection(ts.profiles.List())
	if err := next.Rename(from, to); err != nil {
		return err
	}
	if err := ts.commit(next); err != nil {
		return err
	}

	ts.logger.Info("Profile renamed", zap.String("from", from), zap.String("to", to))
	return nil
}

// commit writes next and adopts it only if the write succeeded.
func (ts *TerminalService) commit(next *profile.Collection) error {
	if err := ts.store.Save(next.List(), ts.profilesPath); err != nil {
		utils.LogError(ts.logger.Logger, "Failed to save profiles", err, zap.String("path", ts.profilesPath))
		return err
	}
	ts.profiles = next
	return nil
}

// Open opens the link with raw
func (ts *TerminalService) Open(ctx context.Context, raw serialcfg.RawConfig) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	return ts.open(ctx, raw)
}

// OpenProfile opens the link with the named profile's configuration.
func (ts *TerminalService) OpenProfile(ctx context.Context, name string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	p, ok := ts.profiles.Get(strings.TrimSpace(name))
	if !ok {
		return fmt.Errorf("%w: %s", profile.ErrNotFound, name)
	}
	return ts.open(ctx, p.Raw())
}

func (ts *TerminalService) open(ctx context.Context, raw serialcfg.RawConfig) error {
	linkLogger := utils.NewLinkLogger(ts.logger.Logger, raw.Port)

	if err := ts.manager.Open(ctx, raw); err != nil {
		linkLogger.LogConnection("open", false, err)
		return err
	}

	linkLogger.LogConnection("open", true, nil)
	return nil
}

// Close closes the link. Closing a closed link is not an error.
func (ts *TerminalService) Close() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	return ts.manager.Close()
}

// Write sends p over the link
func (ts *TerminalService) Write(p []byte) (int, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	n, err := ts.manager.Write(p)
	if err != nil {
		return n, err
	}

	if cfg, ok := ts.manager.Config(); ok {
		utils.NewLinkLogger(ts.logger.Logger, cfg.Port).LogTraffic("tx", n)
	}
	return n, nil
}

// Status returns the current link state and, once a configuration has been
// applied, that configuration.
func (ts *TerminalService) Status() LinkStatus {
	status := LinkStatus{
		State:       ts.manager.State(),
		Description: ts.manager.ConfigDescription(),
	}
	if cfg, ok := ts.manager.Config(); ok {
		status.Config = &cfg
	}
	if id := ts.manager.LinkID(); id != uuid.Nil && status.State != link.Disconnected {
		status.LinkID = &id
	}
	return status
}

// Ports lists the serial ports present on the system
func (ts *TerminalService) Ports() ([]transport.PortInfo, error) {
	ports, err := ts.listPorts()
	if err != nil {
		return nil, linkerr.Wrap(linkerr.PortUnavailable, "failed to list serial ports", err)
	}
	return ports, nil
}
