package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/models"
)

// MemoryStore is an in-process backend with the same semantics as the
// PostgreSQL one. It is used for dry runs and tests.
type MemoryStore struct {
	mu sync.Mutex

	nextID     int64
	categories []*models.CategoryRecord
	gigs       []*models.GigRecord
	sellers    map[string]int64
	lookups    map[string]map[string]int64

	// children, keyed by table name then owning id
	children map[string]map[int64][]any
	// owner of each package row, for cascading deletes
	packageGig map[int64]int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sellers:    make(map[string]int64),
		lookups:    make(map[string]map[string]int64),
		children:   make(map[string]map[int64][]any),
		packageGig: make(map[int64]int64),
	}
}

func (m *MemoryStore) Repositories() Repositories {
	return Repositories{
		Categories:      memCategories{m},
		Gigs:            memGigs{m},
		Sellers:         memSellers{m},
		SellerStats:     memSellerStats{m},
		Metadata:        memMetadata{m},
		Visuals:         memVisuals{m},
		Packages:        memPackages{m},
		PackageFeatures: memPackageFeatures{m},
		FAQs:            memFAQs{m},
		Reviews:         memReviews{m},
		VisualTypes:     memLookup{m, TableVisualType},
		PackageTypes:    memLookup{m, TablePackageType},
	}
}

func (m *MemoryStore) Close() error { return nil }

// SetScrapeEnabled flips the operator flag of the category at path.
func (m *MemoryStore) SetScrapeEnabled(path string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.Path == path {
			c.ScrapeEnabled = enabled
			return nil
		}
	}
	return fmt.Errorf("no category %q", path)
}

// Categories returns a copy of every category in creation order.
func (m *MemoryStore) Categories() []models.CategoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CategoryRecord, len(m.categories))
	for i, c := range m.categories {
		out[i] = *c
	}
	return out
}

// Gigs returns a copy of every gig in creation order.
func (m *MemoryStore) Gigs() []models.GigRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.GigRecord, len(m.gigs))
	for i, g := range m.gigs {
		out[i] = *g
	}
	return out
}

// GigByPath returns the gig with the given path.
func (m *MemoryStore) GigByPath(path string) (models.GigRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.gigs {
		if g.Path == path {
			return *g, true
		}
	}
	return models.GigRecord{}, false
}

// Children returns the rows of table owned by ownerID, in insertion order.
func (m *MemoryStore) Children(table string, ownerID int64) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.children[table][ownerID]
	out := make([]any, len(rows))
	copy(out, rows)
	return out
}

// SellerID returns the id of the seller with the given username.
func (m *MemoryStore) SellerID(username string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.sellers[username]
	return id, ok
}

func (m *MemoryStore) newID() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) addChild(table string, ownerID int64, row any) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.children[table] == nil {
		m.children[table] = make(map[int64][]any)
	}
	m.children[table][ownerID] = append(m.children[table][ownerID], row)
	return m.newID()
}

func (m *MemoryStore) completedCount(categoryID int64) int64 {
	var n int64
	for _, g := range m.gigs {
		if g.CategoryID == categoryID && g.ScrapeCompleted {
			n++
		}
	}
	return n
}

type memCategories struct{ m *MemoryStore }

func (r memCategories) GetByPath(_ context.Context, path string) (*models.CategoryRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, c := range r.m.categories {
		if c.Path == path {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memCategories) Create(_ context.Context, c models.NewCategory) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.categories {
		if existing.Path == c.Path {
			return 0, apperrors.Persistence("gig_category: create", fmt.Errorf("duplicate path %q", c.Path))
		}
	}
	rec := &models.CategoryRecord{
		ID:            r.m.newID(),
		Path:          c.Path,
		Name:          c.Name,
		SubGroupName:  c.SubGroupName,
		MainGroupName: c.MainGroupName,
	}
	r.m.categories = append(r.m.categories, rec)
	return rec.ID, nil
}

func (r memCategories) MinimumGigCount(_ context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var (
		lowest int64
		found  bool
	)
	for _, c := range r.m.categories {
		if !c.ScrapeEnabled {
			continue
		}
		n := r.m.completedCount(c.ID)
		if !found || n < lowest {
			lowest, found = n, true
		}
	}
	return lowest, nil
}

func (r memCategories) Coverage(_ context.Context) ([]models.CategoryCoverage, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]models.CategoryCoverage, 0, len(r.m.categories))
	for _, c := range r.m.categories {
		out = append(out, models.CategoryCoverage{CategoryRecord: *c, GigCount: r.m.completedCount(c.ID)})
	}
	return out, nil
}

type memGigs struct{ m *MemoryStore }

func (r memGigs) Create(_ context.Context, g models.NewGig) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.gigs {
		if existing.Path == g.Path {
			return 0, apperrors.Persistence("gig: create", fmt.Errorf("duplicate path %q", g.Path))
		}
	}
	rec := &models.GigRecord{ID: r.m.newID(), NewGig: g, CreatedAt: time.Now()}
	r.m.gigs = append(r.m.gigs, rec)
	return rec.ID, nil
}

func (r memGigs) MarkCompleted(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, g := range r.m.gigs {
		if g.ID == id {
			g.ScrapeCompleted = true
			return nil
		}
	}
	return apperrors.Persistence("gig: mark completed", apperrors.ErrMissingRow)
}

func (r memGigs) ExistsByPath(_ context.Context, path string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, g := range r.m.gigs {
		if g.Path == path {
			return true, nil
		}
	}
	return false, nil
}

func (r memGigs) CountForCategory(_ context.Context, categoryID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.completedCount(categoryID), nil
}

func (r memGigs) LastScrapedPage(_ context.Context, categoryID int64) (int, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := len(r.m.gigs) - 1; i >= 0; i-- {
		if r.m.gigs[i].CategoryID == categoryID {
			return r.m.gigs[i].Page, true, nil
		}
	}
	return 0, false, nil
}

func (r memGigs) DeleteIncomplete(_ context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	doomed := make(map[int64]bool)
	kept := r.m.gigs[:0]
	for _, g := range r.m.gigs {
		if g.ScrapeCompleted {
			kept = append(kept, g)
			continue
		}
		doomed[g.ID] = true
	}
	r.m.gigs = kept

	for pkgID, gigID := range r.m.packageGig {
		if doomed[gigID] {
			delete(r.m.children[TablePackageFeature], pkgID)
			delete(r.m.packageGig, pkgID)
		}
	}
	for _, table := range gigChildTables {
		for gigID := range doomed {
			delete(r.m.children[table], gigID)
		}
	}
	return int64(len(doomed)), nil
}

// Table names used as keys of MemoryStore.Children.
const (
	TableMetadata       = "gig_metadata"
	TableVisual         = "gig_visual"
	TablePackage        = "gig_package"
	TableFAQ            = "gig_faq"
	TableReview         = "gig_review"
	TableSellerStat     = "seller_stat"
	// TablePackageFeature is keyed by package id rather than gig id.
	TablePackageFeature = "gig_package_feature"

	// lookup tables, see LookupNames
	TableVisualType  = "visual_type_lookup"
	TablePackageType = "gig_package_type_lookup"
)

var gigChildTables = []string{TableMetadata, TableVisual, TablePackage, TableFAQ, TableReview}

type memSellers struct{ m *MemoryStore }

func (r memSellers) GetIDByUsername(_ context.Context, username string) (int64, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	id, ok := r.m.sellers[username]
	return id, ok, nil
}

func (r memSellers) Create(_ context.Context, s models.NewSeller) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.sellers[s.Username]; ok {
		return 0, apperrors.Persistence("seller: create", fmt.Errorf("duplicate username %q", s.Username))
	}
	id := r.m.newID()
	r.m.sellers[s.Username] = id
	return id, nil
}

type memSellerStats struct{ m *MemoryStore }

func (r memSellerStats) Create(_ context.Context, sellerID int64, s models.SellerStat) (int64, error) {
	return r.m.addChild(TableSellerStat, sellerID, s), nil
}

type memMetadata struct{ m *MemoryStore }

func (r memMetadata) Create(_ context.Context, gigID int64, md models.Metadata) (int64, error) {
	return r.m.addChild(TableMetadata, gigID, md), nil
}

// StoredVisual is how MemoryStore keeps a gig_visual row.
type StoredVisual struct {
	VisualTypeID int64
	URL          string
}

type memVisuals struct{ m *MemoryStore }

func (r memVisuals) Create(_ context.Context, gigID, visualTypeID int64, url string) (int64, error) {
	return r.m.addChild(TableVisual, gigID, StoredVisual{VisualTypeID: visualTypeID, URL: url}), nil
}

// StoredPackage is how MemoryStore keeps a gig_package row.
type StoredPackage struct {
	ID            int64
	PackageTypeID int64
	Package       models.Package
}

type memPackages struct{ m *MemoryStore }

func (r memPackages) Create(_ context.Context, gigID, packageTypeID int64, p models.Package) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	id := r.m.newID()
	if r.m.children[TablePackage] == nil {
		r.m.children[TablePackage] = make(map[int64][]any)
	}
	r.m.children[TablePackage][gigID] = append(r.m.children[TablePackage][gigID],
		StoredPackage{ID: id, PackageTypeID: packageTypeID, Package: p})
	r.m.packageGig[id] = gigID
	return id, nil
}

type memPackageFeatures struct{ m *MemoryStore }

func (r memPackageFeatures) Create(_ context.Context, packageID int64, f models.Feature) (int64, error) {
	return r.m.addChild(TablePackageFeature, packageID, f), nil
}

type memFAQs struct{ m *MemoryStore }

func (r memFAQs) Create(_ context.Context, gigID int64, f models.FAQ) (int64, error) {
	return r.m.addChild(TableFAQ, gigID, f), nil
}

type memReviews struct{ m *MemoryStore }

func (r memReviews) Create(_ context.Context, gigID int64, rv models.Review) (int64, error) {
	return r.m.addChild(TableReview, gigID, rv), nil
}

type memLookup struct {
	m     *MemoryStore
	table string
}

func (r memLookup) GetOrCreate(_ context.Context, name string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	values := r.m.lookups[r.table]
	if values == nil {
		values = make(map[string]int64)
		r.m.lookups[r.table] = values
	}
	if id, ok := values[name]; ok {
		return id, nil
	}
	id := r.m.newID()
	values[name] = id
	return id, nil
}

// LookupNames returns the values of a lookup table, sorted.
func (m *MemoryStore) LookupNames(table string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.lookups[table]))
	for name := range m.lookups[table] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
