package syncer

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/retailbill/billsync/internal/client"
	"github.com/retailbill/billsync/internal/remote"
	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/server"
	"github.com/retailbill/billsync/internal/store"
	"github.com/retailbill/billsync/internal/upsert"
)

// TestSync_AgainstServer pushes a local store to a real endpoint and pulls
// back records another client wrote.
func TestSync_AgainstServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	cfg := testConfig()
	dir := t.TempDir()

	db, err := store.Open(filepath.Join(dir, "local.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	defer db.Close()

	auth, err := remote.Open(ctx, remote.SQLite, filepath.Join(dir, "remote.db"), cfg.Logger)
	if err != nil {
		t.Fatalf("remote.Open() failed: %v", err)
	}
	defer auth.Close()

	ts := httptest.NewServer(server.New(auth, server.Config{Logger: cfg.Logger}).Handler())
	defer ts.Close()

	c, err := client.New(client.Config{URL: ts.URL + "/api", Logger: cfg.Logger})
	if err != nil {
		t.Fatalf("client.New() failed: %v", err)
	}

	err = db.WithTx(ctx, func(tx *store.Tx) error {
		_, err := upsert.Customer(ctx, tx, upsert.Create(schema.Customer{Name: "A", Phone: "1"}))
		return err
	})
	if err != nil {
		t.Fatalf("create customer failed: %v", err)
	}

	o := New(db, c, nil, cfg)
	res, err := o.Sync(ctx)
	if err != nil {
		t.Fatalf("first Sync() failed: %v", err)
	}
	if !res.Pushed || res.Pulled {
		t.Errorf("first sync should push only: %+v", res)
	}

	// Another client adds a customer on the server.
	other := &schema.Payload{Customers: []schema.Customer{{Name: "B", Phone: "2"}}}
	if _, err := auth.Apply(ctx, other); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	res, err = o.Sync(ctx)
	if err != nil {
		t.Fatalf("second Sync() failed: %v", err)
	}
	if !res.Pushed || !res.Pulled {
		t.Errorf("second sync should push and pull: %+v", res)
	}

	customers, err := db.Customers(ctx)
	if err != nil {
		t.Fatalf("Customers() failed: %v", err)
	}
	if len(customers) != 2 || customers[1].ID != 2 || customers[1].Name != "B" {
		t.Errorf("local customers = %+v", customers)
	}

	last, _ := db.GetSetting(ctx, schema.SettingLastSync, "")
	if last == "" {
		t.Error("last_sync not recorded locally")
	}
	exported, _ := auth.Export(ctx)
	for _, s := range exported.Settings {
		if s.Key == schema.SettingLastSync {
			t.Error("last_sync must not reach the server")
		}
	}
}
