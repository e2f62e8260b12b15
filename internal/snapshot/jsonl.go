package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/retailbill/billsync/internal/schema"
)

// line is one JSONL entry. The first line carries the header fields; every
// other line carries one record of a collection.
type line struct {
	SchemaVersion string            `json:"schema_version,omitempty"`
	ExportedAt    string            `json:"exported_at,omitempty"`
	Collection    schema.Collection `json:"collection,omitempty"`
	Record        json.RawMessage   `json:"record,omitempty"`
}

func writeLines(w io.Writer, p *schema.Payload) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(line{SchemaVersion: p.SchemaVersion, ExportedAt: p.ExportedAt}); err != nil {
		return fmt.Errorf("failed to encode jsonl snapshot: %w", err)
	}

	emit := func(c schema.Collection, rec any) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode %s record: %w", c, err)
		}
		if err := enc.Encode(line{Collection: c, Record: data}); err != nil {
			return fmt.Errorf("failed to encode jsonl snapshot: %w", err)
		}
		return nil
	}

	for i := range p.Customers {
		if err := emit(schema.Customers, &p.Customers[i]); err != nil {
			return err
		}
	}
	for i := range p.Products {
		if err := emit(schema.Products, &p.Products[i]); err != nil {
			return err
		}
	}
	for i := range p.Invoices {
		if err := emit(schema.Invoices, &p.Invoices[i]); err != nil {
			return err
		}
	}
	for i := range p.Expenses {
		if err := emit(schema.Expenses, &p.Expenses[i]); err != nil {
			return err
		}
	}
	for i := range p.Settings {
		if err := emit(schema.Settings, &p.Settings[i]); err != nil {
			return err
		}
	}
	return nil
}

func readLines(r io.Reader) (*schema.Payload, error) {
	p := &schema.Payload{
		Customers: []schema.Customer{},
		Products:  []schema.Product{},
		Invoices:  []schema.Invoice{},
		Expenses:  []schema.Expense{},
		Settings:  []schema.Setting{},
	}
	dec := json.NewDecoder(r)

	for n := 1; ; n++ {
		var l line
		if err := dec.Decode(&l); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid JSON at line %d: %w", n, err)
		}

		if l.Collection == "" {
			if l.SchemaVersion != "" {
				p.SchemaVersion = l.SchemaVersion
			}
			if l.ExportedAt != "" {
				p.ExportedAt = l.ExportedAt
			}
			continue
		}

		var err error
		switch l.Collection {
		case schema.Customers:
			err = appendRecord(&p.Customers, l.Record)
		case schema.Products:
			err = appendRecord(&p.Products, l.Record)
		case schema.Invoices:
			err = appendRecord(&p.Invoices, l.Record)
		case schema.Expenses:
			err = appendRecord(&p.Expenses, l.Record)
		case schema.Settings:
			err = appendRecord(&p.Settings, l.Record)
		default:
			return nil, fmt.Errorf("line %d: unknown collection %q", n, l.Collection)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s record: %w", n, l.Collection, err)
		}
	}
	return p, nil
}

func appendRecord[T any](dst *[]T, data json.RawMessage) error {
	if len(data) == 0 {
		return errors.New("missing record")
	}
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*dst = append(*dst, rec)
	return nil
}
