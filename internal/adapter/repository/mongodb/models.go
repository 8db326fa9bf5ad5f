package mongodb

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/homestay-labs/listing-service/internal/listing/domain"
)

// listingDocument is the persisted shape of a listing. Field names follow the
// collection's existing documents, camelCase as written by the frontend's
// original backend.
type listingDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Rent        float64            `bson:"rent"`
	City        string             `bson:"city"`
	LandMark    string             `bson:"landMark"`
	Category    domain.Category    `bson:"category"`
	Image1      string             `bson:"image1"`
	Image2      string             `bson:"image2"`
	Image3      string             `bson:"image3"`
	Host        primitive.ObjectID `bson:"host"`
	Ratings     float64            `bson:"ratings"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

func toListingDocument(l *domain.Listing) (*listingDocument, error) {
	if l == nil {
		return nil, nil
	}

	docID := primitive.NilObjectID
	if l.ID != "" {
		var err error
		docID, err = primitive.ObjectIDFromHex(l.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidListingID, l.ID)
		}
	}
	hostID, err := primitive.ObjectIDFromHex(l.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid host id %q: %w", l.Host, err)
	}

	return &listingDocument{
		ID:          docID,
		Title:       l.Title,
		Description: l.Description,
		Rent:        l.Rent,
		City:        l.City,
		LandMark:    l.LandMark,
		Category:    l.Category,
		Image1:      l.Image1,
		Image2:      l.Image2,
		Image3:      l.Image3,
		Host:        hostID,
		Ratings:     l.Ratings,
		CreatedAt:   l.CreatedAt,
	}, nil
}

func toDomainListing(d *listingDocument) *domain.Listing {
	if d == nil {
		return nil
	}
	return &domain.Listing{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Rent:        d.Rent,
		City:        d.City,
		LandMark:    d.LandMark,
		Category:    d.Category,
		Image1:      d.Image1,
		Image2:      d.Image2,
		Image3:      d.Image3,
		Host:        d.Host.Hex(),
		Ratings:     d.Ratings,
		CreatedAt:   d.CreatedAt,
	}
}

func toDomainListings(docs []*listingDocument) []*domain.Listing {
	listings := make([]*domain.Listing, 0, len(docs))
	for _, doc := range docs {
		listings = append(listings, toDomainListing(doc))
	}
	return listings
}
