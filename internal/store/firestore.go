package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"

	"github.com/DerkJan1/saasgrid-mvp/internal/domain"
)

// FirestoreStore is the hosted alternative to SQLite: the same replace-by-
// period contract on top of Firestore documents. Document ids embed the
// composite key, so a Set is naturally an upsert.
type FirestoreStore struct {
	client *firestore.Client
}

// ledgerDoc is the Firestore shape of a ledger entry.
type ledgerDoc struct {
	CompanyID    string  `firestore:"companyId"`
	CustomerID   string  `firestore:"customerId"`
	CustomerName string  `firestore:"customerName"`
	Period       string  `firestore:"period"`
	Amount       float64 `firestore:"amount"`
}

// NewFirestoreStore connects to the project's Firestore database using
// application default credentials.
func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project ID cannot be empty")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) entriesCollection(companyID string) *firestore.CollectionRef {
	return s.client.Collection("companies").Doc(companyID).Collection("ledgerEntries")
}

func (s *FirestoreStore) metricsCollection(companyID string) *firestore.CollectionRef {
	return s.client.Collection("companies").Doc(companyID).Collection("monthlyMetrics")
}

// SaveEntries replaces the company's documents for the uploaded periods.
func (s *FirestoreStore) SaveEntries(ctx context.Context, companyID string, entries []domain.LedgerEntry) error {
	if companyID == "" {
		return fmt.Errorf("company ID cannot be empty")
	}

	col := s.entriesCollection(companyID)
	bw := s.client.BulkWriter(ctx)

	// Clear the uploaded periods first so customers dropped from the new
	// file do not linger.
	for _, p := range distinctPeriods(entries) {
		it := col.Where("period", "==", p).Documents(ctx)
		for {
			doc, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to list entries for %s: %w", p, err)
			}
			if _, err := bw.Delete(doc.Ref); err != nil {
				return fmt.Errorf("failed to queue delete: %w", err)
			}
		}
	}

	for _, e := range entries {
		ref := col.Doc(fmt.Sprintf("%s-%s", e.Period, e.CustomerID))
		doc := ledgerDoc{
			CompanyID:    companyID,
			CustomerID:   e.CustomerID,
			CustomerName: e.CustomerName,
			Period:       e.Period,
			Amount:       e.Amount,
		}
		if _, err := bw.Set(ref, doc); err != nil {
			return fmt.Errorf("failed to queue entry %s/%s: %w", e.CustomerID, e.Period, err)
		}
	}

	bw.End()
	return nil
}

// SaveMetrics upserts one document per period.
func (s *FirestoreStore) SaveMetrics(ctx context.Context, companyID string, metrics []domain.MonthlyMetrics) error {
	if companyID == "" {
		return fmt.Errorf("company ID cannot be empty")
	}

	col := s.metricsCollection(companyID)
	for _, m := range metrics {
		if _, err := col.Doc(m.Period).Set(ctx, m); err != nil {
			return fmt.Errorf("failed to upsert metrics for %s: %w", m.Period, err)
		}
	}
	return nil
}

// LoadEntries returns the company's ledger ordered by period then customer.
// The document id encodes period-customer, so ordering by id gives the
// required order directly.
func (s *FirestoreStore) LoadEntries(ctx context.Context, companyID string) ([]domain.LedgerEntry, error) {
	it := s.entriesCollection(companyID).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)

	var entries []domain.LedgerEntry
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate entries: %w", err)
		}
		var d ledgerDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode entry %s: %w", doc.Ref.ID, err)
		}
		entries = append(entries, domain.LedgerEntry{
			CustomerID:   d.CustomerID,
			CustomerName: d.CustomerName,
			Period:       d.Period,
			Amount:       d.Amount,
		})
	}
	return entries, nil
}

// Close closes the Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
