package directory

import (
	"context"
	"time"

	"crafterDirectory/services/warcraft"

	"github.com/rs/zerolog/log"
)

// RefreshServers replaces the list of legal servers. On failure the previous
// list stays in place.
func (s *Store) RefreshServers(ctx context.Context) error {
	text, err := s.gateway.FetchServerListJSON(ctx)
	if err != nil {
		return err
	}
	servers, err := warcraft.ParseServerList(text)
	if err != nil {
		return err
	}
	s.servers.Store(servers)
	log.Info().Int("servers", servers.Size()).Msg("server list refreshed")
	return nil
}

// RefreshRoster replaces the guild roster. On failure the previous roster
// stays in place.
func (s *Store) RefreshRoster(ctx context.Context) error {
	text, err := s.gateway.FetchRosterJSON(ctx)
	if err != nil {
		return err
	}
	roster, err := warcraft.ParseRoster(text)
	if err != nil {
		return err
	}
	s.roster.Store(roster)
	log.Info().Int("members", roster.Size()).Msg("guild roster refreshed")
	return nil
}

// StartSchedules runs the server list, roster and rebuild refreshes on
// their own tickers until ctx ends or the store is closed. Calling it again
// restarts the schedules.
func (s *Store) StartSchedules(ctx context.Context) {
	s.scheduleMu.Lock()
	defer s.scheduleMu.Unlock()
	if s.stopSchedules != nil {
		s.stopSchedules()
		s.scheduleGroup.Wait()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.stopSchedules = cancel

	s.every(ctx, "servers", s.opts.Schedules.Servers, s.RefreshServers)
	s.every(ctx, "roster", s.opts.Schedules.Roster, s.RefreshRoster)
	s.every(ctx, "rebuild", s.opts.Schedules.Rebuild, s.RebuildAll)
}

// every calls run once per interval. Failures are logged and retried at the
// next tick.
func (s *Store) every(ctx context.Context, name string, interval time.Duration, run func(context.Context) error) {
	s.scheduleGroup.Add(1)
	go func() {
		defer s.scheduleGroup.Done()
		ticker := s.clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if err := run(ctx); err != nil && ctx.Err() == nil {
					log.Error().Err(err).Str("schedule", name).Msg("scheduled refresh failed")
				}
			}
		}
	}()
}
