package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/retailbill/billsync/internal/connectivity"
	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/upsert"
)

// Local is the client-side store.
type Local interface {
	Export(ctx context.Context) (*schema.Payload, error)
	Import(ctx context.Context, p *schema.Payload) (upsert.Summary, error)
	GetSetting(ctx context.Context, key, def string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Transport moves payloads to and from the authoritative store.
type Transport interface {
	Push(ctx context.Context, p *schema.Payload) error
	Pull(ctx context.Context) (*schema.Payload, error)
}

// ConfirmFunc asks the user a yes/no question before a user-initiated run.
type ConfirmFunc func(ctx context.Context, question string) (bool, error)

// Prompts asked through ConfirmFunc.
const (
	PromptSync     = "Do you want to sync data with the server?"
	PromptUpload   = "Upload local changes to server?"
	PromptDownload = "Download server data to local?"
)

// Config holds orchestrator configuration
type Config struct {
	// Interval of the periodic push (default: 5m)
	Interval time.Duration

	// Logger (default: logrus standard logger)
	Logger logrus.FieldLogger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{Interval: 5 * time.Minute}
}

// Orchestrator runs sync attempts and owns their exclusion flag and state.
type Orchestrator struct {
	local     Local
	transport Transport
	signal    connectivity.Signal
	log       logrus.FieldLogger
	now       func() time.Time

	running  atomic.Bool
	interval atomic.Int64
	resetCh  chan struct{}

	mu     sync.Mutex
	status Status
	subs   []func(Status)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an orchestrator. If signal is nil the link is assumed up.
func New(local Local, transport Transport, signal connectivity.Signal, config *Config) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if signal == nil {
		signal = connectivity.NewStatic(true)
	}

	o := &Orchestrator{
		local:     local,
		transport: transport,
		signal:    signal,
		log:       logger.WithField("component", "syncer"),
		now:       time.Now,
		resetCh:   make(chan struct{}, 1),
	}
	o.interval.Store(int64(config.Interval))
	o.status.Online = signal.Online()
	if !o.status.Online {
		o.status.State = Offline
	}
	return o
}

// Status returns a snapshot of the current state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// OnStatus registers fn to receive every status change. fn runs on the
// goroutine that changed the state and must not block.
func (o *Orchestrator) OnStatus(fn func(Status)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subs = append(o.subs, fn)
}

func (o *Orchestrator) update(fn func(*Status)) {
	o.mu.Lock()
	fn(&o.status)
	st := o.status
	subs := append([]func(Status){}, o.subs...)
	o.mu.Unlock()

	for _, sub := range subs {
		sub(st)
	}
}

// Sync runs the first-sync or push-then-pull policy.
func (o *Orchestrator) Sync(ctx context.Context) (Result, error) {
	return o.run(ctx, ModeAuto, nil)
}

// SyncInteractive is Sync with questions asked through confirm: one before
// the run, and one per step once a sync has been recorded. Declining the
// first returns ErrDeclined; declining a step skips it.
func (o *Orchestrator) SyncInteractive(ctx context.Context, confirm ConfirmFunc) (Result, error) {
	if o.running.Load() {
		return Result{}, ErrAlreadySyncing
	}
	ok, err := confirm(ctx, PromptSync)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, ErrDeclined
	}
	return o.run(ctx, ModeAuto, confirm)
}

// Push sends the whole local payload.
func (o *Orchestrator) Push(ctx context.Context) (Result, error) {
	return o.run(ctx, ModePush, nil)
}

// Pull imports the whole authoritative store into the local store.
func (o *Orchestrator) Pull(ctx context.Context) (Result, error) {
	return o.run(ctx, ModePull, nil)
}

func (o *Orchestrator) run(ctx context.Context, mode Mode, confirm ConfirmFunc) (Result, error) {
	if !o.signal.Online() {
		o.update(func(s *Status) {
			s.Online = false
			if s.State != Syncing {
				s.State = Offline
			}
		})
		return Result{Mode: mode}, ErrOffline
	}
	if !o.running.CompareAndSwap(false, true) {
		o.log.WithField("mode", mode).Debug("sync already in progress")
		return Result{}, ErrAlreadySyncing
	}
	defer o.running.Store(false)

	ctx = context.WithoutCancel(ctx)
	res := Result{Mode: mode, StartedAt: o.now()}
	o.update(func(s *Status) { s.State = Syncing })

	push, pull := mode != ModePull, mode != ModePush
	if mode == ModeAuto {
		last, err := o.local.GetSetting(ctx, schema.SettingLastSync, "")
		if err != nil {
			return o.finish(res, fmt.Errorf("failed to read last sync: %w", err))
		}
		pull = last != ""
	}

	if push && confirm != nil && pull {
		push, res.PushErr = confirm(ctx, PromptUpload)
		res.PushSkipped = !push && res.PushErr == nil
	}
	if push {
		res.PushRecords, res.PushErr = o.push(ctx)
		res.Pushed = res.PushErr == nil
	}

	if pull && confirm != nil {
		pull, res.PullErr = confirm(ctx, PromptDownload)
		res.PullSkipped = !pull && res.PullErr == nil
	}
	if pull {
		res.Imported, res.PullErr = o.pull(ctx)
		res.Pulled = res.PullErr == nil
	}

	return o.finish(res, res.Err())
}

func (o *Orchestrator) push(ctx context.Context) (int, error) {
	p, err := o.local.Export(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to export local data: %w", err)
	}
	if err := o.transport.Push(ctx, p); err != nil {
		return 0, err
	}
	if err := o.recordSync(ctx); err != nil {
		return p.Total(), err
	}
	o.log.WithField("records", p.Total()).Info("push complete")
	return p.Total(), nil
}

func (o *Orchestrator) pull(ctx context.Context) (upsert.Summary, error) {
	p, err := o.transport.Pull(ctx)
	if err != nil {
		return upsert.Summary{}, err
	}
	sum, err := o.local.Import(ctx, p)
	if err != nil {
		return upsert.Summary{}, err
	}
	if err := o.recordSync(ctx); err != nil {
		return sum, err
	}
	o.log.WithField("records", sum.Total()).Info("pull complete")
	return sum, nil
}

func (o *Orchestrator) recordSync(ctx context.Context) error {
	at := o.now().UTC()
	if err := o.local.SetSetting(ctx, schema.SettingLastSync, at.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record last sync: %w", err)
	}
	o.update(func(s *Status) { s.LastSync = at })
	return nil
}

func (o *Orchestrator) finish(res Result, err error) (Result, error) {
	res.FinishedAt = o.now()
	online := o.signal.Online()

	o.update(func(s *Status) {
		r := res
		s.LastResult = &r
		s.Online = online
		switch {
		case err == nil:
			s.State = Idle
			s.LastError = ""
		case schema.IsNetwork(err) && !online:
			s.State = Offline
			s.LastError = err.Error()
		default:
			s.State = Error
			s.LastError = err.Error()
		}
	})

	entry := o.log.WithFields(logrus.Fields{
		"mode":     res.Mode,
		"pushed":   res.Pushed,
		"pulled":   res.Pulled,
		"duration": res.FinishedAt.Sub(res.StartedAt).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("sync failed")
	} else {
		entry.Info("sync complete")
	}
	return res, err
}
