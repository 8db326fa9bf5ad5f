package domain

import "time"

// Category tags a listing with the kind of stay it offers.
type Category string

const (
	CategoryVilla     Category = "villa"
	CategoryFarmHouse Category = "farmHouse"
	CategoryPoolHouse Category = "poolHouse"
	CategoryRooms     Category = "rooms"
	CategoryFlat      Category = "flat"
	CategoryShop      Category = "shop"
)

// Listing is a rentable property record. Every persisted listing carries
// exactly three hosted image references; that invariant is enforced at
// creation time only.
type Listing struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Rent        float64   `json:"rent"`
	City        string    `json:"city"`
	LandMark    string    `json:"landMark"`
	Category    Category  `json:"category"`
	Image1      string    `json:"image1"`
	Image2      string    `json:"image2"`
	Image3      string    `json:"image3"`
	Host        string    `json:"host"`
	Ratings     float64   `json:"ratings"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListingPatch is a partial update. A nil field is "not supplied" and leaves
// the stored value untouched; a non-nil field replaces it, including explicit
// zero values.
type ListingPatch struct {
	Title       *string
	Description *string
	Rent        *float64
	City        *string
	LandMark    *string
	Category    *Category
	Image1      *string
	Image2      *string
	Image3      *string
}

// Empty reports whether the patch carries no fields at all.
func (p ListingPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Rent == nil &&
		p.City == nil && p.LandMark == nil && p.Category == nil &&
		p.Image1 == nil && p.Image2 == nil && p.Image3 == nil
}
