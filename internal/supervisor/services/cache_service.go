// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package services

import (
	"context"

	"github.com/tomtom215/teleshow/internal/logging"
)

// ListenerManager is the lifecycle surface of livecache.Manager.
type ListenerManager interface {
	ShutdownAllListeners()
	Size() int
}

// CacheManagerService ties the live cache to the supervisor tree. The
// manager starts listeners on demand, so Serve only waits; when the tree
// stops, every listener is shut down and the cache cleared.
type CacheManagerService struct {
	manager ListenerManager
	name    string
}

// NewCacheManagerService wraps manager.
func NewCacheManagerService(manager ListenerManager) *CacheManagerService {
	return &CacheManagerService{
		manager: manager,
		name:    "live-cache",
	}
}

// Serve implements suture.Service.
func (s *CacheManagerService) Serve(ctx context.Context) error {
	logging.Info().Msg("Live cache ready")

	<-ctx.Done()

	n := s.manager.Size()
	s.manager.ShutdownAllListeners()
	logging.Info().Int("listeners", n).Msg("Live cache listeners shut down")
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *CacheManagerService) String() string {
	return s.name
}
