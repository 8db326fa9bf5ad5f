package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/homestay-labs/listing-service/internal/listing/domain"
)

// ImageSlots are the fixed multipart field names a listing's images arrive
// under. Order matters: slot i fills Image{i+1}.
var ImageSlots = [3]string{"image1", "image2", "image3"}

// Uploader pushes a locally staged file to the hosted image store and returns
// its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Cache holds single listings keyed by id. A nil Cache disables caching.
type Cache interface {
	GetListing(ctx context.Context, id string) (*domain.Listing, error)
	SetListing(ctx context.Context, listing *domain.Listing) error
	DeleteListing(ctx context.Context, id string) error
}

// Publisher emits listing lifecycle events. A nil Publisher disables them.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// Mailer notifies a host about their new listing. A nil Mailer disables it.
type Mailer interface {
	SendListingCreatedEmail(toEmail, listingTitle string) error
}

const (
	SubjectListingCreated = "listing.created"
	SubjectListingUpdated = "listing.updated"
	SubjectListingDeleted = "listing.deleted"
	SubjectListingRated   = "listing.rated"
)

type ListingUsecase struct {
	listings domain.ListingRepository
	users    domain.UserRepository
	tx       domain.Transactor
	uploader Uploader
	cache    Cache
	events   Publisher
	mailer   Mailer
	logger   *zap.Logger
}

func NewListingUsecase(
	listings domain.ListingRepository,
	users domain.UserRepository,
	tx domain.Transactor,
	uploader Uploader,
	cache Cache,
	events Publisher,
	mailer Mailer,
	logger *zap.Logger,
) *ListingUsecase {
	return &ListingUsecase{
		listings: listings,
		users:    users,
		tx:       tx,
		uploader: uploader,
		cache:    cache,
		events:   events,
		mailer:   mailer,
		logger:   logger,
	}
}

// CreateListingInput carries the text fields plus the locally staged image
// files, keyed by slot name.
type CreateListingInput struct {
	Title       string
	Description string
	Rent        float64
	City        string
	LandMark    string
	Category    domain.Category
	ImagePaths  map[string]string
}

// CreateListing uploads all three images concurrently, then inserts the
// listing and pushes its id onto the host's listing array in one transaction.
// A slot whose file is absent, or whose upload fails, counts as missing; any
// missing slot aborts with ErrImagesRequired before anything is persisted.
func (uc *ListingUsecase) CreateListing(ctx context.Context, host string, in CreateListingInput) (*domain.Listing, error) {
	uc.logger.Info("creating listing", zap.String("host", host), zap.String("title", in.Title))

	var refs [3]string
	g, gctx := errgroup.WithContext(ctx)
	for i, slot := range ImageSlots {
		path, ok := in.ImagePaths[slot]
		if !ok || path == "" {
			continue
		}
		i, slot, path := i, slot, path
		g.Go(func() error {
			url, err := uc.uploader.Upload(gctx, path)
			if err != nil {
				// A failed upload is treated like an absent file: the
				// all-three check below rejects the request.
				uc.logger.Warn("image upload failed", zap.String("slot", slot), zap.Error(err))
				return nil
			}
			refs[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, ref := range refs {
		if ref == "" {
			return nil, domain.ErrImagesRequired
		}
	}

	listing := &domain.Listing{
		Title:       in.Title,
		Description: in.Description,
		Rent:        in.Rent,
		City:        in.City,
		LandMark:    in.LandMark,
		Category:    in.Category,
		Image1:      refs[0],
		Image2:      refs[1],
		Image3:      refs[2],
		Host:        host,
		CreatedAt:   time.Now().UTC(),
	}

	err := uc.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.listings.Create(txCtx, listing); err != nil {
			return fmt.Errorf("insert listing: %w", err)
		}
		return uc.users.PushListing(txCtx, host, listing.ID)
	})
	if err != nil {
		uc.logger.Error("create listing failed", zap.String("host", host), zap.Error(err))
		return nil, err
	}

	uc.afterCreate(ctx, listing)
	return listing, nil
}

// afterCreate runs the best-effort side effects: cache fill, event, email.
// Failures are logged and never surface to the caller.
func (uc *ListingUsecase) afterCreate(ctx context.Context, listing *domain.Listing) {
	if uc.cache != nil {
		if err := uc.cache.SetListing(ctx, listing); err != nil {
			uc.logger.Warn("cache fill failed", zap.String("listing_id", listing.ID), zap.Error(err))
		}
	}
	if uc.events != nil {
		if err := uc.events.Publish(ctx, SubjectListingCreated, listing); err != nil {
			uc.logger.Warn("publish failed", zap.String("subject", SubjectListingCreated), zap.Error(err))
		}
	}
	if uc.mailer != nil {
		email, err := uc.users.GetEmailByID(ctx, listing.Host)
		if err != nil {
			uc.logger.Warn("host email lookup failed", zap.String("host", listing.Host), zap.Error(err))
			return
		}
		if err := uc.mailer.SendListingCreatedEmail(email, listing.Title); err != nil {
			uc.logger.Warn("listing created email failed", zap.String("host", listing.Host), zap.Error(err))
		}
	}
}

// ListListings returns every listing, newest first.
func (uc *ListingUsecase) ListListings(ctx context.Context) ([]*domain.Listing, error) {
	return uc.listings.FindAll(ctx)
}

// GetListingByID reads through the cache.
func (uc *ListingUsecase) GetListingByID(ctx context.Context, id string) (*domain.Listing, error) {
	if uc.cache != nil {
		cached, err := uc.cache.GetListing(ctx, id)
		if err != nil {
			uc.logger.Warn("cache read failed", zap.String("listing_id", id), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	listing, err := uc.listings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if uc.cache != nil {
		if err := uc.cache.SetListing(ctx, listing); err != nil {
			uc.logger.Warn("cache fill failed", zap.String("listing_id", id), zap.Error(err))
		}
	}
	return listing, nil
}

// UpdateListing applies a partial update. Image slots with newly staged files
// upload concurrently first; any upload failure aborts the whole operation
// before a single field is written. Fields absent from the patch keep their
// stored values, including an untouched rent when the field was omitted.
func (uc *ListingUsecase) UpdateListing(ctx context.Context, id string, patch domain.ListingPatch, imagePaths map[string]string) (*domain.Listing, error) {
	uc.logger.Info("updating listing", zap.String("listing_id", id))

	var refs [3]string
	g, gctx := errgroup.WithContext(ctx)
	for i, slot := range ImageSlots {
		path, ok := imagePaths[slot]
		if !ok || path == "" {
			continue
		}
		i, slot, path := i, slot, path
		g.Go(func() error {
			url, err := uc.uploader.Upload(gctx, path)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", domain.ErrImageUploadFailed, slot, err)
			}
			refs[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		uc.logger.Error("update aborted on upload failure", zap.String("listing_id", id), zap.Error(err))
		return nil, err
	}

	if refs[0] != "" {
		patch.Image1 = &refs[0]
	}
	if refs[1] != "" {
		patch.Image2 = &refs[1]
	}
	if refs[2] != "" {
		patch.Image3 = &refs[2]
	}

	listing, err := uc.listings.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	uc.invalidate(ctx, id)
	uc.publish(ctx, SubjectListingUpdated, listing)
	return listing, nil
}

// DeleteListing removes the listing and pulls its id from the owning user's
// listing array in one transaction, so a failed owner patch restores the
// listing instead of leaving it half-deleted.
func (uc *ListingUsecase) DeleteListing(ctx context.Context, id string) error {
	uc.logger.Info("deleting listing", zap.String("listing_id", id))

	var deleted *domain.Listing
	err := uc.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		listing, err := uc.listings.Delete(txCtx, id)
		if err != nil {
			return err
		}
		deleted = listing
		return uc.users.PullListing(txCtx, listing.Host, id)
	})
	if err != nil {
		uc.logger.Error("delete listing failed", zap.String("listing_id", id), zap.Error(err))
		return err
	}

	uc.invalidate(ctx, id)
	uc.publish(ctx, SubjectListingDeleted, deleted)
	return nil
}

// RateListing overwrites the ratings field unconditionally. Last write wins;
// there is no averaging and no range check.
func (uc *ListingUsecase) RateListing(ctx context.Context, id string, value float64) (float64, error) {
	if _, err := uc.listings.FindByID(ctx, id); err != nil {
		return 0, err
	}
	if err := uc.listings.SetRatings(ctx, id, value); err != nil {
		return 0, err
	}

	uc.invalidate(ctx, id)
	if uc.events != nil {
		event := struct {
			ListingID string  `json:"listingId"`
			Ratings   float64 `json:"ratings"`
		}{ListingID: id, Ratings: value}
		if err := uc.events.Publish(ctx, SubjectListingRated, event); err != nil {
			uc.logger.Warn("publish failed", zap.String("subject", SubjectListingRated), zap.Error(err))
		}
	}
	return value, nil
}

// SearchListings matches the query case-insensitively as a substring of
// landMark, city or title.
func (uc *ListingUsecase) SearchListings(ctx context.Context, query string) ([]*domain.Listing, error) {
	return uc.listings.Search(ctx, query)
}

func (uc *ListingUsecase) invalidate(ctx context.Context, id string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.DeleteListing(ctx, id); err != nil {
		uc.logger.Warn("cache invalidation failed", zap.String("listing_id", id), zap.Error(err))
	}
}

func (uc *ListingUsecase) publish(ctx context.Context, subject string, data interface{}) {
	if uc.events == nil {
		return
	}
	if err := uc.events.Publish(ctx, subject, data); err != nil {
		uc.logger.Warn("publish failed", zap.String("subject", subject), zap.Error(err))
	}
}
