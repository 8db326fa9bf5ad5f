package usecase

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/homestay-labs/listing-service/internal/listing/domain"
)

type mockListingRepo struct {
	seq  int
	data map[string]*domain.Listing
}

func newMockListingRepo() *mockListingRepo {
	return &mockListingRepo{data: map[string]*domain.Listing{}}
}

func (m *mockListingRepo) Create(_ context.Context, l *domain.Listing) error {
	m.seq++
	l.ID = fmt.Sprintf("listing-%d", m.seq)
	cp := *l
	m.data[l.ID] = &cp
	return nil
}

func (m *mockListingRepo) FindAll(_ context.Context) ([]*domain.Listing, error) {
	out := make([]*domain.Listing, 0, len(m.data))
	for _, l := range m.data {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockListingRepo) FindByID(_ context.Context, id string) (*domain.Listing, error) {
	l, ok := m.data[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *mockListingRepo) Update(_ context.Context, id string, patch domain.ListingPatch) (*domain.Listing, error) {
	l, ok := m.data[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	if patch.Title != nil {
		l.Title = *patch.Title
	}
	if patch.Description != nil {
		l.Description = *patch.Description
	}
	if patch.Rent != nil {
		l.Rent = *patch.Rent
	}
	if patch.City != nil {
		l.City = *patch.City
	}
	if patch.LandMark != nil {
		l.LandMark = *patch.LandMark
	}
	if patch.Category != nil {
		l.Category = *patch.Category
	}
	if patch.Image1 != nil {
		l.Image1 = *patch.Image1
	}
	if patch.Image2 != nil {
		l.Image2 = *patch.Image2
	}
	if patch.Image3 != nil {
		l.Image3 = *patch.Image3
	}
	cp := *l
	return &cp, nil
}

func (m *mockListingRepo) Delete(_ context.Context, id string) (*domain.Listing, error) {
	l, ok := m.data[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	cp := *l
	delete(m.data, id)
	return &cp, nil
}

func (m *mockListingRepo) SetRatings(_ context.Context, id string, value float64) error {
	l, ok := m.data[id]
	if !ok {
		return domain.ErrListingNotFound
	}
	l.Ratings = value
	return nil
}

func (m *mockListingRepo) Search(_ context.Context, query string) ([]*domain.Listing, error) {
	q := strings.ToLower(query)
	var out []*domain.Listing
	for _, l := range m.data {
		if strings.Contains(strings.ToLower(l.LandMark), q) ||
			strings.Contains(strings.ToLower(l.City), q) ||
			strings.Contains(strings.ToLower(l.Title), q) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockUserRepo struct {
	emails map[string]string
	lists  map[string][]string
}

func newMockUserRepo(users map[string]string) *mockUserRepo {
	return &mockUserRepo{emails: users, lists: map[string][]string{}}
}

func (m *mockUserRepo) PushListing(_ context.Context, userID, listingID string) error {
	if _, ok := m.emails[userID]; !ok {
		return domain.ErrUserNotFound
	}
	m.lists[userID] = append(m.lists[userID], listingID)
	return nil
}

func (m *mockUserRepo) PullListing(_ context.Context, userID, listingID string) error {
	if _, ok := m.emails[userID]; !ok {
		return domain.ErrUserNotFound
	}
	kept := m.lists[userID][:0]
	for _, id := range m.lists[userID] {
		if id != listingID {
			kept = append(kept, id)
		}
	}
	m.lists[userID] = kept
	return nil
}

func (m *mockUserRepo) GetEmailByID(_ context.Context, userID string) (string, error) {
	email, ok := m.emails[userID]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	return email, nil
}

// mockTransactor snapshots both stores and restores them when fn fails, so
// tests observe real all-or-nothing behavior.
type mockTransactor struct {
	listings *mockListingRepo
	users    *mockUserRepo
}

func (t *mockTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	listingSnap := map[string]*domain.Listing{}
	for id, l := range t.listings.data {
		cp := *l
		listingSnap[id] = &cp
	}
	listSnap := map[string][]string{}
	for id, refs := range t.users.lists {
		listSnap[id] = append([]string(nil), refs...)
	}

	if err := fn(ctx); err != nil {
		t.listings.data = listingSnap
		t.users.lists = listSnap
		return err
	}
	return nil
}

type mockUploader struct {
	fail map[string]bool
}

func (u *mockUploader) Upload(_ context.Context, localPath string) (string, error) {
	if u.fail[localPath] {
		return "", errors.New("gateway unavailable")
	}
	return "https://img.test/" + path.Base(localPath), nil
}

type recordingPublisher struct {
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ interface{}) error {
	p.subjects = append(p.subjects, subject)
	return nil
}

type recordingMailer struct {
	to    string
	title string
}

func (m *recordingMailer) SendListingCreatedEmail(toEmail, listingTitle string) error {
	m.to = toEmail
	m.title = listingTitle
	return nil
}

type mockCache struct {
	store   map[string]*domain.Listing
	getErr  error
	sets    []string
	deletes []string
}

func newMockCache() *mockCache {
	return &mockCache{store: map[string]*domain.Listing{}}
}

func (c *mockCache) GetListing(_ context.Context, id string) (*domain.Listing, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	l, ok := c.store[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (c *mockCache) SetListing(_ context.Context, l *domain.Listing) error {
	cp := *l
	c.store[l.ID] = &cp
	c.sets = append(c.sets, l.ID)
	return nil
}

func (c *mockCache) DeleteListing(_ context.Context, id string) error {
	delete(c.store, id)
	c.deletes = append(c.deletes, id)
	return nil
}

type fixture struct {
	uc       *ListingUsecase
	listings *mockListingRepo
	users    *mockUserRepo
	uploader *mockUploader
	cache    *mockCache
	events   *recordingPublisher
}

func newFixture(users map[string]string) *fixture {
	listings := newMockListingRepo()
	userRepo := newMockUserRepo(users)
	uploader := &mockUploader{fail: map[string]bool{}}
	tx := &mockTransactor{listings: listings, users: userRepo}
	uc := NewListingUsecase(listings, userRepo, tx, uploader, nil, nil, nil, zap.NewNop())
	return &fixture{uc: uc, listings: listings, users: userRepo, uploader: uploader}
}

// newCachedFixture wires in the cache and publisher mocks as well.
func newCachedFixture(users map[string]string) *fixture {
	f := newFixture(users)
	f.cache = newMockCache()
	f.events = &recordingPublisher{}
	f.uc.cache = f.cache
	f.uc.events = f.events
	return f
}

func allImages() map[string]string {
	return map[string]string{
		"image1": "/tmp/stage/a.jpg",
		"image2": "/tmp/stage/b.jpg",
		"image3": "/tmp/stage/c.jpg",
	}
}

func validInput() CreateListingInput {
	return CreateListingInput{
		Title:       "Cozy farm house",
		Description: "Two bedrooms near the lake",
		Rent:        1200,
		City:        "Pune",
		LandMark:    "Lakeside Road",
		Category:    domain.CategoryFarmHouse,
		ImagePaths:  allImages(),
	}
}

func TestCreateListing_Success(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})

	listing, err := f.uc.CreateListing(context.Background(), "host-1", validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, listing.ID)
	assert.Equal(t, "https://img.test/a.jpg", listing.Image1)
	assert.Equal(t, "https://img.test/b.jpg", listing.Image2)
	assert.Equal(t, "https://img.test/c.jpg", listing.Image3)
	assert.Equal(t, "host-1", listing.Host)
	assert.False(t, listing.CreatedAt.IsZero())
	assert.Equal(t, []string{listing.ID}, f.users.lists["host-1"])
}

func TestCreateListing_SideEffects(t *testing.T) {
	listings := newMockListingRepo()
	users := newMockUserRepo(map[string]string{"host-1": "host@example.com"})
	publisher := &recordingPublisher{}
	mail := &recordingMailer{}
	tx := &mockTransactor{listings: listings, users: users}
	uc := NewListingUsecase(listings, users, tx, &mockUploader{}, nil, publisher, mail, zap.NewNop())

	listing, err := uc.CreateListing(context.Background(), "host-1", validInput())
	require.NoError(t, err)

	assert.Equal(t, []string{SubjectListingCreated}, publisher.subjects)
	assert.Equal(t, "host@example.com", mail.to)
	assert.Equal(t, listing.Title, mail.title)
}

func TestCreateListing_MissingImageFile(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})

	in := validInput()
	delete(in.ImagePaths, "image2")

	_, err := f.uc.CreateListing(context.Background(), "host-1", in)
	assert.ErrorIs(t, err, domain.ErrImagesRequired)
	assert.Empty(t, f.listings.data)
	assert.Empty(t, f.users.lists["host-1"])
}

func TestCreateListing_UploadFailureCountsAsMissing(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})
	f.uploader.fail["/tmp/stage/c.jpg"] = true

	_, err := f.uc.CreateListing(context.Background(), "host-1", validInput())
	assert.ErrorIs(t, err, domain.ErrImagesRequired)
	assert.Empty(t, f.listings.data)
}

func TestCreateListing_UnknownHostPersistsNothing(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})

	_, err := f.uc.CreateListing(context.Background(), "ghost", validInput())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.Empty(t, f.listings.data, "aborted create must not leave an orphaned listing")
}

func TestUpdateListing_OmittedFieldsUnchanged(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})
	created, err := f.uc.CreateListing(context.Background(), "host-1", validInput())
	require.NoError(t, err)

	title := "Renovated farm house"
	updated, err := f.uc.UpdateListing(context.Background(), created.ID, domain.ListingPatch{Title: &title}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Renovated farm house", updated.Title)
	assert.Equal(t, created.Description, updated.Description)
	assert.Equal(t, created.Rent, updated.Rent)
	assert.Equal(t, created.City, updated.City)
	assert.Equal(t, created.LandMark, updated.LandMark)
	assert.Equal(t, created.Category, updated.Category)
	assert.Equal(t, created.Image1, updated.Image1)
	assert.Equal(t, created.Image2, updated.Image2)
	assert.Equal(t, created.Image3, updated.Image3)
}

func TestUpdateListing_ExplicitZeroRent(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})
	created, err := f.uc.CreateListing(context.Background(), "host-1", validInput())
	require.NoError(t, err)

	zero := 0.0
	updated, err := f.uc.UpdateListing(context.Background(), created.ID, domain.ListingPatch{Rent: &zero}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, updated.Rent, "a supplied zero rent must be written")

	// An omitted rent keeps whatever is stored, zero included.
	city := "Mumbai"
	updated, err = f.uc.UpdateListing(context.Background(), created.ID, domain.ListingPatch{City: &city}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, updated.Rent)
}

func TestUpdateListing_UploadFailureAborts(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})
	created, err := f.uc.CreateListing(context.Background(), "host-1", validInput())
	require.NoError(t, err)

	f.uploader.fail["/tmp/stage/new.jpg"] = true
	title := "should not apply"
	_, err = f.uc.UpdateListing(context.Background(), created.ID, domain.ListingPatch{Title: &title},
		map[string]string{"image1": "/tmp/stage/new.jpg"})
	assert.ErrorIs(t, err, domain.ErrImageUploadFailed)

	current, err := f.uc.GetListingByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, current.Title)
	assert.Equal(t, created.Image1, current.Image1)
}

func TestUpdateListing_ReplacesImageSlot(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})
	created, err := f.uc.CreateListing(context.Background(), "host-1", validInput())
	require.NoError(t, err)

	updated, err := f.uc.UpdateListing(context.Background(), created.ID, domain.ListingPatch{},
		map[string]string{"image2": "/tmp/stage/new.jpg"})
	require.NoError(t, err)
	assert.Equal(t, created.Image1, updated.Image1)
	assert.Equal(t, "https://img.test/new.jpg", updated.Image2)
	assert.Equal(t, created.Image3, updated.Image3)
}

func TestUpdateListing_NotFound(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})

	title := "anything"
	_, err := f.uc.UpdateListing(context.Background(), "missing", domain.ListingPatch{Title: &title}, nil)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestDeleteListing_RemovesFromBothStores(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})
	created, err := f.uc.CreateListing(context.Background(), "host-1", validInput())
	require.NoError(t, err)

	require.NoError(t, f.uc.DeleteListing(context.Background(), created.ID))

	_, err = f.uc.GetListingByID(context.Background(), created.ID)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
	assert.Empty(t, f.users.lists["host-1"])
}

func TestDeleteListing_NotFound(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})
	err := f.uc.DeleteListing(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestDeleteListing_UnknownOwnerRestoresListing(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})
	created, err := f.uc.CreateListing(context.Background(), "host-1", validInput())
	require.NoError(t, err)

	// The stored owner no longer resolves to a user; the owner patch fails
	// and the transaction must put the already-deleted listing back.
	f.listings.data[created.ID].Host = "ghost"

	err = f.uc.DeleteListing(context.Background(), created.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	current, err := f.uc.GetListingByID(context.Background(), created.ID)
	require.NoError(t, err, "aborted delete must leave the listing in place")
	assert.Equal(t, created.ID, current.ID)
}

func TestGetListingByID_CacheHitSkipsStore(t *testing.T) {
	f := newCachedFixture(map[string]string{"host-1": "host@example.com"})

	// Only the cache knows this id, so the value can come from nowhere else.
	f.cache.store["listing-9"] = &domain.Listing{ID: "listing-9", Title: "cached copy"}

	got, err := f.uc.GetListingByID(context.Background(), "listing-9")
	require.NoError(t, err)
	assert.Equal(t, "cached copy", got.Title)
	assert.Empty(t, f.cache.sets, "a hit must not rewrite the cache")
}

func TestGetListingByID_CacheMissBackfills(t *testing.T) {
	f := newCachedFixture(map[string]string{"host-1": "host@example.com"})
	created, err := f.uc.CreateListing(context.Background(), "host-1", validInput())
	require.NoError(t, err)

	// Drop the entry the create flow put in, so the next read is a miss.
	f.cache.store = map[string]*domain.Listing{}
	f.cache.sets = nil

	got, err := f.uc.GetListingByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, []string{created.ID}, f.cache.sets, "a miss must backfill the cache")
}

func TestGetListingByID_CacheErrorFallsThrough(t *testing.T) {
	f := newCachedFixture(map[string]string{"host-1": "host@example.com"})
	created, err := f.uc.CreateListing(context.Background(), "host-1", validInput())
	require.NoError(t, err)

	f.cache.getErr = errors.New("redis down")

	got, err := f.uc.GetListingByID(context.Background(), created.ID)
	require.NoError(t, err, "a cache read error must not fail the request")
	assert.Equal(t, created.ID, got.ID)
}

func TestMutationSideEffects(t *testing.T) {
	f := newCachedFixture(map[string]string{"host-1": "host@example.com"})
	created, err := f.uc.CreateListing(context.Background(), "host-1", validInput())
	require.NoError(t, err)

	title := "Renamed"
	_, err = f.uc.UpdateListing(context.Background(), created.ID, domain.ListingPatch{Title: &title}, nil)
	require.NoError(t, err)

	_, err = f.uc.RateListing(context.Background(), created.ID, 3)
	require.NoError(t, err)

	require.NoError(t, f.uc.DeleteListing(context.Background(), created.ID))

	assert.Equal(t, []string{
		SubjectListingCreated,
		SubjectListingUpdated,
		SubjectListingRated,
		SubjectListingDeleted,
	}, f.events.subjects)
	assert.Equal(t, []string{created.ID, created.ID, created.ID}, f.cache.deletes,
		"update, rate and delete must each invalidate the cached listing")
}

func TestRateListing_LastWriteWins(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})
	created, err := f.uc.CreateListing(context.Background(), "host-1", validInput())
	require.NoError(t, err)

	value, err := f.uc.RateListing(context.Background(), created.ID, 4.5)
	require.NoError(t, err)
	assert.Equal(t, 4.5, value)

	value, err = f.uc.RateListing(context.Background(), created.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, value)

	current, err := f.uc.GetListingByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, current.Ratings)
}

func TestRateListing_NotFound(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})
	_, err := f.uc.RateListing(context.Background(), "missing", 3)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestSearchListings_MatchesCityOnly(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})

	in := validInput()
	in.Title = "Quiet retreat"
	in.City = "Hyderabad"
	in.LandMark = "Charminar Road"
	created, err := f.uc.CreateListing(context.Background(), "host-1", in)
	require.NoError(t, err)

	other := validInput()
	other.Title = "Beach villa"
	other.City = "Goa"
	other.LandMark = "Baga Beach"
	_, err = f.uc.CreateListing(context.Background(), "host-1", other)
	require.NoError(t, err)

	results, err := f.uc.SearchListings(context.Background(), "HYDER")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, created.ID, results[0].ID)
}

func TestListListings_NewestFirst(t *testing.T) {
	f := newFixture(map[string]string{"host-1": "host@example.com"})

	first, err := f.uc.CreateListing(context.Background(), "host-1", validInput())
	require.NoError(t, err)
	// Force distinct creation times regardless of clock resolution.
	f.listings.data[first.ID].CreatedAt = time.Now().Add(-time.Hour)

	second, err := f.uc.CreateListing(context.Background(), "host-1", validInput())
	require.NoError(t, err)

	all, err := f.uc.ListListings(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)
}
