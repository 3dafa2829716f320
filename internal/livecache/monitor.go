// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package livecache

import (
	"context"
	"time"

	"github.com/tomtom215/teleshow/internal/docstore"
	"github.com/tomtom215/teleshow/internal/logging"
	"github.com/tomtom215/teleshow/internal/metrics"
)

// HealthReport summarizes one health monitor pass.
type HealthReport struct {
	Evicted      int `json:"evicted"`
	Repaired     int `json:"repaired"`
	RepairFailed int `json:"repair_failed"`
}

// RunHealthCheck runs one monitor pass: subscriptions idle longer than
// StalenessThreshold are evicted, then every remaining subscription whose
// stream reports closed is re-created in place. Re-subscribing happens
// without holding the registry lock.
func (m *Manager) RunHealthCheck() HealthReport {
	metrics.HealthChecks.Inc()
	var report HealthReport

	m.mu.Lock()
	now := m.clock.Now()
	keys := sortedKeys(m.subs)

	var detached []*subscription
	for _, key := range keys {
		sub, ok := m.subs[key]
		if !ok {
			continue
		}
		if idle := now.Sub(sub.lastActive); idle > m.cfg.StalenessThreshold {
			logging.Info().
				Str("key", key.String()).
				Dur("idle", idle).
				Msg("Evicting stale listener")
			d := m.detachLocked(key, "stale")
			report.Evicted += len(d)
			detached = append(detached, d...)
		}
	}

	var closed []repairTarget
	for _, key := range keys {
		sub, ok := m.subs[key]
		if !ok || !sub.stream.IsClosed() {
			continue
		}
		closed = append(closed, repairTarget{sub: sub, gen: sub.gen, stream: sub.stream})
	}
	m.mu.Unlock()

	m.unsubscribe(detached)

	for _, rt := range closed {
		swapped, err := m.repair(rt)
		switch {
		case err != nil:
			report.RepairFailed++
		case swapped:
			report.Repaired++
		}
	}
	return report
}

// repairTarget is a closed subscription as seen under the registry lock.
type repairTarget struct {
	sub    *subscription
	gen    uint64
	stream docstore.Stream
}

// repair opens a fresh stream from the stored restart function and swaps
// it in if the subscription is still registered with the same generation.
// Key, state and cache entry are kept. On failure the closed stream stays
// in place and the next pass retries. swapped is false when the
// subscription was detached or repaired by someone else meanwhile.
func (m *Manager) repair(rt repairTarget) (swapped bool, err error) {
	sub := rt.sub
	kind := string(sub.key.Kind)
	logging.Warn().Str("key", sub.key.String()).Msg("Listener closed unexpectedly, restarting")

	if err := rt.stream.Unsubscribe(); err != nil {
		logging.Debug().Err(err).Str("key", sub.key.String()).Msg("Unsubscribe of closed stream failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SnapshotTimeout)
	defer cancel()

	stream, err := sub.restart(ctx)
	metrics.RecordRepair(kind, err)
	if err != nil {
		logging.Error().Err(err).Str("key", sub.key.String()).Msg("Listener restart failed")
		return false, err
	}

	m.mu.Lock()
	if cur, ok := m.subs[sub.key]; !ok || cur != sub || sub.gen != rt.gen {
		m.mu.Unlock()
		if err := stream.Unsubscribe(); err != nil {
			logging.Debug().Err(err).Str("key", sub.key.String()).Msg("Unsubscribe of unused stream failed")
		}
		logging.Debug().Str("key", sub.key.String()).Msg("Listener changed during restart, discarding new stream")
		return false, nil
	}
	m.gen++
	sub.gen = m.gen
	sub.stream = stream
	go m.consume(sub.gen, sub.key, stream)
	m.mu.Unlock()

	logging.Info().Str("key", sub.key.String()).Msg("Restarted listener")
	return true, nil
}

// ensureMonitor starts the monitor goroutine unless it is running. It
// reports whether a new goroutine was started.
func (m *Manager) ensureMonitor() bool {
	m.monitorMu.Lock()
	defer m.monitorMu.Unlock()

	if m.monitorStop != nil {
		return false
	}
	m.monitorStop = make(chan struct{})
	m.monitorDone = make(chan struct{})
	go m.monitor(m.monitorStop, m.monitorDone)
	return true
}

// MonitorRunning reports whether the health monitor goroutine is running.
func (m *Manager) MonitorRunning() bool {
	m.monitorMu.Lock()
	defer m.monitorMu.Unlock()
	return m.monitorStop != nil
}

func (m *Manager) monitor(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	log := logging.WithComponent("health-monitor")
	log.Info().
		Dur("interval", m.cfg.HealthCheckInterval).
		Dur("staleness", m.cfg.StalenessThreshold).
		Msg("Started listener health monitor")

	for {
		select {
		case <-stop:
			log.Info().Msg("Listener health monitor stopped")
			return
		case <-m.clock.After(m.cfg.HealthCheckInterval):
		}

		report := m.RunHealthCheck()
		if report != (HealthReport{}) {
			log.Info().
				Int("evicted", report.Evicted).
				Int("repaired", report.Repaired).
				Int("repair_failed", report.RepairFailed).
				Msg("Health check complete")
		}
	}
}

// stopMonitor signals the monitor and waits up to MonitorJoinTimeout.
func (m *Manager) stopMonitor() {
	m.joinMonitor(m.signalMonitor())
}

// signalMonitor tells a running monitor to stop and returns the channel
// closed when it exits, or nil. A later ensureMonitor starts a new loop.
func (m *Manager) signalMonitor() <-chan struct{} {
	m.monitorMu.Lock()
	defer m.monitorMu.Unlock()

	stop, done := m.monitorStop, m.monitorDone
	m.monitorStop, m.monitorDone = nil, nil
	if stop == nil {
		return nil
	}
	close(stop)
	return done
}

func (m *Manager) joinMonitor(done <-chan struct{}) {
	if done == nil {
		return
	}

	// Real time: the join bound guards against a stuck goroutine, not
	// against domain time.
	t := time.NewTimer(m.cfg.MonitorJoinTimeout)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		logging.Warn().Dur("timeout", m.cfg.MonitorJoinTimeout).Msg("Health monitor did not stop in time")
	}
}
