package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/repository"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	admin     = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	submitter = domain.Actor{ID: "user-1", Role: domain.RoleUser}
)

func staffActor(id string) domain.Actor {
	return domain.Actor{ID: id, Role: domain.RoleStaff, Department: "it"}
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Envelope.Type)
	}
	return out
}

func (r *recorder) last(t events.EventType) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Envelope.Type == t {
			return r.events[i], true
		}
	}
	return events.Event{}, false
}

type fixture struct {
	complaints *repository.MemoryComplaintRepository
	staff      *repository.MemoryStaffRepository
	categories *repository.MemoryCategoryRepository
	dispatcher events.Dispatcher
	recorded   *recorder
	lifecycle  *LifecycleService
	assignment *AssignmentService
	intake     *IntakeService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithRepo(t, nil)
}

// newFixtureWithRepo lets a test wrap the complaint store the services see.
func newFixtureWithRepo(t *testing.T, wrap func(repository.ComplaintRepository) repository.ComplaintRepository) *fixture {
	t.Helper()
	f := &fixture{
		complaints: repository.NewMemoryComplaintRepository(),
		staff:      repository.NewMemoryStaffRepository(),
		categories: repository.NewMemoryCategoryRepository(
			domain.Category{ID: "network", Name: "Network", Department: "it", ResolutionTimeHours: 48},
			domain.Category{ID: "payroll", Name: "Payroll", Department: "hr", ResolutionTimeHours: 24},
		),
		dispatcher: events.NewInMemoryDispatcher(nil),
		recorded:   &recorder{},
	}
	events.SubscribeAll(f.dispatcher, f.recorded.handle)

	var store repository.ComplaintRepository = f.complaints
	if wrap != nil {
		store = wrap(store)
	}
	clock := func() time.Time { return fixedNow }
	f.lifecycle = NewLifecycleService(LifecycleDependencies{
		ComplaintRepo: store,
		Dispatcher:    f.dispatcher,
		Clock:         clock,
	})
	f.assignment = NewAssignmentService(AssignmentDependencies{
		ComplaintRepo: store,
		StaffRepo:     f.staff,
		CategoryRepo:  f.categories,
		Lifecycle:     f.lifecycle,
		Dispatcher:    f.dispatcher,
		Capacity:      config.AssignmentConfig{DefaultCapacity: 10},
	})
	f.intake = NewIntakeService(IntakeDependencies{
		ComplaintRepo: store,
		CategoryRepo:  f.categories,
		Deadlines:     domain.NewDeadlinePolicy(nil),
		Dispatcher:    f.dispatcher,
		Clock:         clock,
	})
	return f
}

func (f *fixture) addStaff(id, department string, active bool) {
	f.staff.Put(domain.StaffMember{ID: id, Name: id, Role: domain.RoleStaff, Department: department, Active: active})
}

// seed stores a complaint that reached status through the normal path.
func (f *fixture) seed(t *testing.T, id string, status domain.ComplaintStatus, assignee string, priority domain.ComplaintPriority) *domain.Complaint {
	t.Helper()
	created := fixedNow.Add(-24 * time.Hour)
	c := &domain.Complaint{
		ID:          id,
		TicketID:    "CMP-" + id,
		Title:       "printer on fire",
		Description: "third floor",
		CategoryID:  "network",
		Priority:    priority,
		SubmittedBy: submitter.ID,
		Deadline:    created.Add(48 * time.Hour),
		CreatedAt:   created,
	}
	c.AppendHistory(domain.StatusHistoryEntry{Status: domain.StatusSubmitted, Timestamp: created, UpdatedBy: submitter.ID, Event: domain.HistorySubmission})
	path := map[domain.ComplaintStatus][]domain.ComplaintStatus{
		domain.StatusAssigned:   {domain.StatusAssigned},
		domain.StatusInProgress: {domain.StatusAssigned, domain.StatusInProgress},
		domain.StatusResolved:   {domain.StatusAssigned, domain.StatusInProgress, domain.StatusResolved},
	}
	for i, s := range path[status] {
		c.AppendHistory(domain.StatusHistoryEntry{Status: s, Timestamp: created.Add(time.Duration(i+1) * time.Hour), UpdatedBy: admin.ID, Event: domain.HistoryStatusChange})
	}
	if assignee != "" {
		c.AssignedTo = &assignee
	}
	require.NoError(t, f.complaints.Create(context.Background(), c))
	return c
}

func (f *fixture) get(t *testing.T, id string) *domain.Complaint {
	t.Helper()
	c, err := f.complaints.GetByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

// requireConsistent checks that status mirrors the newest history entry.
func requireConsistent(t *testing.T, c *domain.Complaint) {
	t.Helper()
	last, ok := c.LastHistory()
	require.True(t, ok)
	require.Equal(t, last.Status, c.Status)
}
