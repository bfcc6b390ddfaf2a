package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// MemoryComplaintRepository keeps complaints in process. It backs tests and
// local runs without POSTGRES_DSN, and honours the same not-found and
// version-conflict contract as the Postgres implementation.
type MemoryComplaintRepository struct {
	mu         sync.RWMutex
	complaints map[string]*domain.Complaint
}

// NewMemoryComplaintRepository creates an empty store.
func NewMemoryComplaintRepository() *MemoryComplaintRepository {
	return &MemoryComplaintRepository{complaints: make(map[string]*domain.Complaint)}
}

func (r *MemoryComplaintRepository) Create(_ context.Context, c *domain.Complaint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.complaints[c.ID]; exists {
		return fmt.Errorf("complaint %s already exists", c.ID)
	}
	r.complaints[c.ID] = c.Clone()
	return nil
}

func (r *MemoryComplaintRepository) GetByID(_ context.Context, id string) (*domain.Complaint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.complaints[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c.Clone(), nil
}

func (r *MemoryComplaintRepository) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate Mutator) (*domain.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.complaints[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if current.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	r.complaints[id] = next
	return next.Clone(), nil
}

func (r *MemoryComplaintRepository) ListDue(_ context.Context, now time.Time, lookahead time.Duration) ([]domain.Complaint, error) {
	cutoff := now.Add(lookahead)
	r.mu.RLock()
	var result []domain.Complaint
	for _, c := range r.complaints {
		if !c.Status.CanEscalateFrom() || c.Deadline.After(cutoff) {
			continue
		}
		result = append(result, *c.Clone())
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].Deadline.Before(result[j].Deadline)
	})
	return result, nil
}

func (r *MemoryComplaintRepository) CountOpenByAssignee(_ context.Context, staffIDs []string) (map[string]map[domain.ComplaintPriority]int, error) {
	wanted := make(map[string]struct{}, len(staffIDs))
	for _, id := range staffIDs {
		wanted[id] = struct{}{}
	}
	result := make(map[string]map[domain.ComplaintPriority]int, len(staffIDs))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.complaints {
		if c.AssignedTo == nil || !c.Status.IsOpen() {
			continue
		}
		if _, ok := wanted[*c.AssignedTo]; !ok {
			continue
		}
		if result[*c.AssignedTo] == nil {
			result[*c.AssignedTo] = map[domain.ComplaintPriority]int{}
		}
		result[*c.AssignedTo][c.Priority]++
	}
	return result, nil
}

// MemoryStaffRepository is a fixed staff directory.
type MemoryStaffRepository struct {
	mu    sync.RWMutex
	staff map[string]domain.StaffMember
}

// NewMemoryStaffRepository seeds the directory.
func NewMemoryStaffRepository(staff ...domain.StaffMember) *MemoryStaffRepository {
	r := &MemoryStaffRepository{staff: make(map[string]domain.StaffMember, len(staff))}
	for _, s := range staff {
		r.staff[s.ID] = s
	}
	return r
}

// Put adds or replaces a staff member.
func (r *MemoryStaffRepository) Put(s domain.StaffMember) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staff[s.ID] = s
}

func (r *MemoryStaffRepository) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.staff[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &s, nil
}

func (r *MemoryStaffRepository) List(_ context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	r.mu.RLock()
	var result []domain.StaffMember
	for _, s := range r.staff {
		if filter.Role != nil && s.Role != *filter.Role {
			continue
		}
		if filter.Department != nil && s.Department != *filter.Department {
			continue
		}
		if filter.Active != nil && s.Active != *filter.Active {
			continue
		}
		result = append(result, s)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// MemoryCategoryRepository is a fixed category table.
type MemoryCategoryRepository struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
}

// NewMemoryCategoryRepository seeds the table.
func NewMemoryCategoryRepository(categories ...domain.Category) *MemoryCategoryRepository {
	r := &MemoryCategoryRepository{categories: make(map[string]domain.Category, len(categories))}
	for _, c := range categories {
		r.categories[c.ID] = c
	}
	return r
}

// Put adds or replaces a category.
func (r *MemoryCategoryRepository) Put(c domain.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[c.ID] = c
}

func (r *MemoryCategoryRepository) GetByID(_ context.Context, id string) (*domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

var (
	_ ComplaintRepository = (*MemoryComplaintRepository)(nil)
	_ StaffRepository     = (*MemoryStaffRepository)(nil)
	_ CategoryRepository  = (*MemoryCategoryRepository)(nil)
)
