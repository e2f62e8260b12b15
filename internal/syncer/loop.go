package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/retailbill/billsync/internal/schema"
)

// Start loads the recorded last sync and runs the periodic push and the
// connectivity watch until ctx ends or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)

	if err := o.LoadLastSync(ctx); err != nil {
		o.log.WithError(err).Warn("failed to load last sync")
	}

	o.wg.Add(2)
	go o.timerLoop(ctx)
	go o.watchConnectivity(ctx)

	o.log.WithField("interval", o.Interval().String()).Info("sync orchestrator started")
}

// Stop ends the background loops. A run in flight completes first.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.log.Info("sync orchestrator stopped")
}

// LoadLastSync reads the last_sync setting into the status snapshot.
func (o *Orchestrator) LoadLastSync(ctx context.Context) error {
	v, err := o.local.GetSetting(ctx, schema.SettingLastSync, "")
	if err != nil || v == "" {
		return err
	}
	at, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return err
	}
	o.update(func(s *Status) { s.LastSync = at })
	return nil
}

// Interval returns the periodic push interval.
func (o *Orchestrator) Interval() time.Duration {
	return time.Duration(o.interval.Load())
}

// SetInterval changes the periodic push interval, restarting the timer.
func (o *Orchestrator) SetInterval(d time.Duration) {
	if d <= 0 || d == o.Interval() {
		return
	}
	o.interval.Store(int64(d))
	select {
	case o.resetCh <- struct{}{}:
	default:
	}
	o.log.WithField("interval", d.String()).Info("sync interval changed")
}

func (o *Orchestrator) timerLoop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.resetCh:
			ticker.Reset(o.Interval())
		case <-ticker.C:
			if o.running.Load() || !o.signal.Online() {
				continue
			}
			o.log.Debug("auto-sync triggered")
			o.background(ctx, "timer")
		}
	}
}

func (o *Orchestrator) watchConnectivity(ctx context.Context) {
	defer o.wg.Done()

	changes := o.signal.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-changes:
			if !ok {
				return
			}
			if !online {
				o.log.Info("connection lost")
				o.update(func(s *Status) {
					s.Online = false
					if s.State != Syncing {
						s.State = Offline
					}
				})
				continue
			}

			o.log.Info("connection restored")
			o.update(func(s *Status) {
				s.Online = true
				if s.State == Offline {
					s.State = Idle
				}
			})
			o.background(ctx, "reconnect")
		}
	}
}

// background pushes on behalf of a loop. Its errors are already logged and in
// the status; a concurrent run is not an error here.
func (o *Orchestrator) background(ctx context.Context, trigger string) {
	_, err := o.Push(ctx)
	if err != nil && !errors.Is(err, ErrAlreadySyncing) && !errors.Is(err, ErrOffline) {
		o.log.WithError(err).WithField("trigger", trigger).Debug("background push failed")
	}
}
