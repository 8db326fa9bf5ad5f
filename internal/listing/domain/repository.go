package domain

import "context"

type ListingRepository interface {
	Create(ctx context.Context, listing *Listing) error
	FindAll(ctx context.Context) ([]*Listing, error)
	FindByID(ctx context.Context, id string) (*Listing, error)
	Update(ctx context.Context, id string, patch ListingPatch) (*Listing, error)
	Delete(ctx context.Context, id string) (*Listing, error)
	SetRatings(ctx context.Context, id string, value float64) error
	Search(ctx context.Context, query string) ([]*Listing, error)
}

// UserRepository patches the listing-reference array on user documents. Users
// themselves are owned by another service and are never created or removed
// here.
type UserRepository interface {
	PushListing(ctx context.Context, userID, listingID string) error
	PullListing(ctx context.Context, userID, listingID string) error
	GetEmailByID(ctx context.Context, userID string) (string, error)
}

// Transactor runs fn atomically across both repositories. The context passed
// to fn must be used for every store call inside it.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
