package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// ErrVersionConflict is returned when a compare-and-swap observes a newer version.
var ErrVersionConflict = errors.New("complaint version conflict")

// Mutator edits a private copy of a complaint inside a compare-and-swap.
// Returning an error aborts the write and is passed through unchanged.
type Mutator func(c *domain.Complaint) error

// ComplaintRepository is the durable record store for complaints.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *domain.Complaint) error
	GetByID(ctx context.Context, id string) (*domain.Complaint, error)
	CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate Mutator) (*domain.Complaint, error)
	ListDue(ctx context.Context, now time.Time, lookahead time.Duration) ([]domain.Complaint, error)
	CountOpenByAssignee(ctx context.Context, staffIDs []string) (map[string]map[domain.ComplaintPriority]int, error)
}

type complaintRepository struct {
	pool *pgxpool.Pool
}

// NewComplaintRepository instantiates repository.
func NewComplaintRepository(pool *pgxpool.Pool) ComplaintRepository {
	return &complaintRepository{pool: pool}
}

const complaintColumns = `id, ticket_id, title, description, category_id, priority, status, submitted_by,
               assigned_to, contact_method, deadline, resolved_at, escalation, status_history, attachments,
               version, created_at, updated_at`

func (r *complaintRepository) Create(ctx context.Context, c *domain.Complaint) error {
	doc, err := encodeDocuments(c)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO complaints (id, ticket_id, title, description, category_id, priority, status, submitted_by,
            assigned_to, contact_method, deadline, resolved_at, escalation, status_history, attachments, version,
            created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	_, err = r.pool.Exec(ctx, query,
		c.ID,
		c.TicketID,
		c.Title,
		c.Description,
		c.CategoryID,
		string(c.Priority),
		string(c.Status),
		c.SubmittedBy,
		c.AssignedTo,
		c.ContactMethod,
		c.Deadline,
		c.ResolvedAt,
		doc.escalation,
		doc.history,
		doc.attachments,
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (r *complaintRepository) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id=$1`
	return scanComplaint(r.pool.QueryRow(ctx, query, id))
}

// CompareAndSwap locks the row, checks the version and writes the mutated copy.
func (r *complaintRepository) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate Mutator) (*domain.Complaint, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := scanComplaint(tx.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1

	doc, err := encodeDocuments(next)
	if err != nil {
		return nil, err
	}
	const query = `
        UPDATE complaints SET status=$1, assigned_to=$2, resolved_at=$3, escalation=$4, status_history=$5,
            attachments=$6, version=$7, updated_at=$8
        WHERE id=$9 AND version=$10`
	cmd, err := tx.Exec(ctx, query,
		string(next.Status),
		next.AssignedTo,
		next.ResolvedAt,
		doc.escalation,
		doc.history,
		doc.attachments,
		next.Version,
		next.UpdatedAt,
		id,
		expectedVersion,
	)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, ErrVersionConflict
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return next, nil
}

func (r *complaintRepository) ListDue(ctx context.Context, now time.Time, lookahead time.Duration) ([]domain.Complaint, error) {
	query := `SELECT ` + complaintColumns + `
        FROM complaints
        WHERE status = ANY($1) AND deadline <= $2
        ORDER BY deadline ASC`
	rows, err := r.pool.Query(ctx, query, statusStrings(domain.EscalatableStatuses), now.Add(lookahead))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (r *complaintRepository) CountOpenByAssignee(ctx context.Context, staffIDs []string) (map[string]map[domain.ComplaintPriority]int, error) {
	result := make(map[string]map[domain.ComplaintPriority]int, len(staffIDs))
	if len(staffIDs) == 0 {
		return result, nil
	}
	const query = `
        SELECT assigned_to, priority, COUNT(*)
        FROM complaints
        WHERE assigned_to = ANY($1) AND status = ANY($2)
        GROUP BY assigned_to, priority`
	rows, err := r.pool.Query(ctx, query, staffIDs, statusStrings(domain.OpenStatuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			staffID  string
			priority string
			count    int
		)
		if err := rows.Scan(&staffID, &priority, &count); err != nil {
			return nil, err
		}
		if result[staffID] == nil {
			result[staffID] = map[domain.ComplaintPriority]int{}
		}
		result[staffID][domain.ComplaintPriority(priority)] = count
	}
	return result, rows.Err()
}

type complaintDocuments struct {
	escalation  []byte
	history     []byte
	attachments []byte
}

func encodeDocuments(c *domain.Complaint) (complaintDocuments, error) {
	var (
		doc complaintDocuments
		err error
	)
	if doc.escalation, err = json.Marshal(c.Escalation); err != nil {
		return doc, fmt.Errorf("encode escalation: %w", err)
	}
	history := c.StatusHistory
	if history == nil {
		history = []domain.StatusHistoryEntry{}
	}
	if doc.history, err = json.Marshal(history); err != nil {
		return doc, fmt.Errorf("encode status history: %w", err)
	}
	attachments := c.Attachments
	if attachments == nil {
		attachments = []domain.AttachmentReference{}
	}
	if doc.attachments, err = json.Marshal(attachments); err != nil {
		return doc, fmt.Errorf("encode attachments: %w", err)
	}
	return doc, nil
}

func scanComplaint(row pgx.Row) (*domain.Complaint, error) {
	var (
		c                                 domain.Complaint
		priority, status                  string
		escalation, history, attachments []byte
	)
	if err := row.Scan(
		&c.ID,
		&c.TicketID,
		&c.Title,
		&c.Description,
		&c.CategoryID,
		&priority,
		&status,
		&c.SubmittedBy,
		&c.AssignedTo,
		&c.ContactMethod,
		&c.Deadline,
		&c.ResolvedAt,
		&escalation,
		&history,
		&attachments,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Priority = domain.ComplaintPriority(priority)
	c.Status = domain.ComplaintStatus(status)
	if err := json.Unmarshal(escalation, &c.Escalation); err != nil {
		return nil, fmt.Errorf("decode escalation: %w", err)
	}
	if err := json.Unmarshal(history, &c.StatusHistory); err != nil {
		return nil, fmt.Errorf("decode status history: %w", err)
	}
	if err := json.Unmarshal(attachments, &c.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	return &c, nil
}

func statusStrings(statuses []domain.ComplaintStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
