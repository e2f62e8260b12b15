/*
Package syncer reconciles the local store with the authoritative store.

An Orchestrator owns the sync state machine:

	Idle    --connectivity lost-->     Offline
	Offline --connectivity restored--> Idle    (and pushes)
	Idle    --Sync/Push/Pull-->        Syncing
	Syncing --success-->               Idle
	Syncing --failure-->               Error   (Offline if the link is down)

Only one run is in flight at a time. A second call while a run is active
returns ErrAlreadySyncing without touching the transport. Runs are not
cancelable once started: the caller's context is detached and the transport's
own timeout bounds each request.

# Policy

Sync chooses what to do from the local last_sync setting. With no recorded
sync, local data is pushed only. Otherwise it pushes and then pulls; the two
steps are independent, so a failed push does not skip the pull. Each
successful step records last_sync.

Push alone is what the periodic timer and the connectivity-restored handler
run. Pull alone overwrites local records with the authoritative copy
(last writer wins per record).

# Background

	o := syncer.New(db, client, monitor, nil)
	o.Start(ctx)          // timer and connectivity watch
	defer o.Stop()

	res, err := o.Sync(ctx)
	if errors.Is(err, syncer.ErrAlreadySyncing) {
	    // a timer run got there first
	}

Status returns a snapshot for display; OnStatus subscribes to every change.
*/
package syncer
