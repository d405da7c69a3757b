package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"

	"github.com/markdave123-py/quickread/internal/models"
)

// FirestoreClient writes one document per archived upload, keyed by its ID.
type FirestoreClient struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreClient(ctx context.Context, projectID, collection string, logger zerolog.Logger) (*FirestoreClient, error) {
	if projectID == "" {
		return nil, fmt.Errorf("FIRESTORE_PROJECT_ID is empty")
	}
	if collection == "" {
		collection = "documents"
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	logger.Info().Str("project", projectID).Str("collection", collection).Msg("connected to firestore")
	return &FirestoreClient{client: client, collection: collection}, nil
}

func (c *FirestoreClient) InsertDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	if _, err := c.client.Collection(c.collection).Doc(doc.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore set %s: %w", doc.ID, err)
	}
	return nil
}

func (c *FirestoreClient) Close() error {
	return c.client.Close()
}
