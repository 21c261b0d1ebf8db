package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
)

// ObjectStore is the durable binary storage the coordinator uploads into.
type ObjectStore interface {
	UploadFile(ctx context.Context, localPath, objectPath string) (string, error)
	DeleteFile(ctx context.Context, objectPath string) error
	ObjectNameFromURL(rawURL string) (string, error)
}

// MetadataStore is the only component allowed to write persisted state.
type MetadataStore interface {
	UserByID(ctx context.Context, id string) (*User, error)
	CreateImage(ctx context.Context, image *Image) error
	LinkImageToOwner(ctx context.Context, ownerID, imageID string) error
	UnlinkImageFromOwner(ctx context.Context, ownerID, imageID string) error
	ImageByID(ctx context.Context, id string) (*Image, error)
	ImagesByOwner(ctx context.Context, ownerID string) ([]Image, error)
	UpdateAdditionalInfo(ctx context.Context, imageID, info string) error
	DeleteImage(ctx context.Context, imageID string) error
}

// Coordinator drives one media submission through storage, analysis and
// persistence, and owns the guarded mutation paths. It keeps no state across
// requests; every run works only on data scoped to its own call.
type Coordinator struct {
	store    ObjectStore
	analyzer ContentAnalyzer
	data     MetadataStore

	now   func() time.Time
	newID func() string
}

func NewCoordinator(store ObjectStore, analyzer ContentAnalyzer, data MetadataStore) *Coordinator {
	return &Coordinator{
		store:    store,
		analyzer: analyzer,
		data:     data,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Ingest runs the full pipeline for one submission: upload the local file to
// durable storage (remote URLs are analyzed in place), enrich via the
// analyzer, persist the Image and link it to the owner.
//
// Analysis failures never abort ingestion; the record is created with the
// sentinel result instead. Storage failures always abort. The local temp
// file is removed exactly once regardless of outcome.
func (c *Coordinator) Ingest(ctx context.Context, ownerID string, input MediaInput) (*Image, error) {
	if input.LocalPath == "" && input.RemoteURL == "" {
		return nil, fmt.Errorf("%w: no media supplied", ErrInvalidInput)
	}
	if input.LocalPath != "" {
		defer func() {
			if err := os.Remove(input.LocalPath); err != nil && !os.IsNotExist(err) {
				log.Printf("can not remove temp file %s: %v", input.LocalPath, err)
			}
		}()
		stat, err := os.Stat(input.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("%w: media file unreadable", ErrInvalidInput)
		}
		if stat.Size() == 0 {
			return nil, fmt.Errorf("%w: media file is empty", ErrInvalidInput)
		}
	}

	if _, err := c.data.UserByID(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrOwnerNotFound, ownerID)
	}

	durableURL := input.RemoteURL
	if input.LocalPath != "" {
		uploaded, err := c.store.UploadFile(ctx, input.LocalPath, StoragePath(ownerID, input.LocalPath, c.now()))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		durableURL = uploaded
	}

	analysis := c.analyzer.Analyze(ctx, durableURL)

	image := &Image{
		ID:             c.newID(),
		OwnerID:        ownerID,
		URL:            durableURL,
		Tags:           analysis.Tags,
		Description:    analysis.Description,
		AdditionalInfo: "",
		CreatedAt:      c.now(),
	}
	if err := c.data.CreateImage(ctx, image); err != nil {
		if input.LocalPath != "" {
			// Storage is not rolled back over a metadata fault; the object
			// stays orphaned until reconciled.
			log.Printf("image row write failed, object %s is orphaned: %v", durableURL, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := c.data.LinkImageToOwner(ctx, ownerID, image.ID); err != nil {
		// The Image row exists, so ingestion still succeeded. The dangling
		// reference is a logged data-integrity warning.
		log.Printf("image %s created but owner link failed: %v", image.ID, err)
	}
	return image, nil
}

// authorizeOwner is the ownership guard: only the record's owner may mutate
// it.
func authorizeOwner(requesterID string, image *Image) error {
	if image.OwnerID != requesterID {
		return fmt.Errorf("%w: image %s", ErrForbidden, image.ID)
	}
	return nil
}

// ListImages returns the owner's Images.
func (c *Coordinator) ListImages(ctx context.Context, ownerID string) ([]Image, error) {
	if _, err := c.data.UserByID(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrOwnerNotFound, ownerID)
	}
	images, err := c.data.ImagesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return images, nil
}

// UpdateInfo replaces the owner-supplied free text on an Image. Writes are
// last-write-wins; an update racing a delete reports ErrNotFound.
func (c *Coordinator) UpdateInfo(ctx context.Context, requesterID, imageID, info string) (*Image, error) {
	image, err := c.data.ImageByID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(requesterID, image); err != nil {
		return nil, err
	}
	if err := c.data.UpdateAdditionalInfo(ctx, imageID, info); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	image.AdditionalInfo = info
	return image, nil
}

// Delete removes an Image: storage object first, then the owner reference
// and the metadata row. The destructive storage step is ordered before the
// metadata removals since an orphaned row is less harmful than an orphaned
// paid storage object.
func (c *Coordinator) Delete(ctx context.Context, requesterID, imageID string) error {
	image, err := c.data.ImageByID(ctx, imageID)
	if err != nil {
		return err
	}
	if err := authorizeOwner(requesterID, image); err != nil {
		return err
	}

	objectName, err := c.store.ObjectNameFromURL(image.URL)
	if err != nil {
		// Cannot derive what to delete; abort before any destructive step.
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if err := c.store.DeleteFile(ctx, objectName); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	// The object is already gone, so both removals run even if one fails.
	var failed error
	if err := c.data.UnlinkImageFromOwner(ctx, image.OwnerID, imageID); err != nil {
		log.Printf("can not unlink image %s from user %s: %v", imageID, image.OwnerID, err)
		failed = err
	}
	if err := c.data.DeleteImage(ctx, imageID); err != nil {
		log.Printf("can not delete image row %s: %v", imageID, err)
		failed = err
	}
	if failed != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, failed)
	}
	return nil
}
