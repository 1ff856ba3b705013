package testing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/campaign-callcenter/models"
	"github.com/amirphl/campaign-callcenter/repository"
	"github.com/amirphl/campaign-callcenter/utils"
	"github.com/google/uuid"
)

// MemoryStore is an in-process stand-in for Postgres used by flow tests.
// It enforces the same unique constraints as the migrations and rolls a
// transaction back by restoring a snapshot taken when it began.
type MemoryStore struct {
	mu          sync.Mutex
	seq         uint
	voters      map[uint]models.Voter
	assignments map[uint]models.CallAssignment
	calls       map[uint]models.VerificationCall
	audits      []models.AuditLog
	faults      map[string]error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		voters:      make(map[uint]models.Voter),
		assignments: make(map[uint]models.CallAssignment),
		calls:       make(map[uint]models.VerificationCall),
		faults:      make(map[string]error),
	}
}

// Voters returns the store as a VoterRepository
func (m *MemoryStore) Voters() repository.VoterRepository { return &memVoters{m} }

// Assignments returns the store as a CallAssignmentRepository
func (m *MemoryStore) Assignments() repository.CallAssignmentRepository { return &memAssignments{m} }

// Calls returns the store as a VerificationCallRepository
func (m *MemoryStore) Calls() repository.VerificationCallRepository { return &memCalls{m} }

// AuditLogs returns the store as an AuditLogRepository
func (m *MemoryStore) AuditLogs() repository.AuditLogRepository { return &memAudits{m} }

// FailNext makes the next call of op return err. Ops are named "<repo>.<method>",
// e.g. "assignments.Save" or "voters.NextCandidates".
func (m *MemoryStore) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = err
}

func (m *MemoryStore) fault(op string) error {
	if err, ok := m.faults[op]; ok {
		delete(m.faults, op)
		return err
	}
	return nil
}

func (m *MemoryStore) nextID() uint {
	m.seq++
	return m.seq
}

type memSnapshot struct {
	seq         uint
	voters      map[uint]models.Voter
	assignments map[uint]models.CallAssignment
	calls       map[uint]models.VerificationCall
	audits      int
}

func (m *MemoryStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memSnapshot{
		seq:         m.seq,
		voters:      make(map[uint]models.Voter, len(m.voters)),
		assignments: make(map[uint]models.CallAssignment, len(m.assignments)),
		calls:       make(map[uint]models.VerificationCall, len(m.calls)),
		audits:      len(m.audits),
	}
	for k, v := range m.voters {
		s.voters[k] = v
	}
	for k, v := range m.assignments {
		s.assignments[k] = v
	}
	for k, v := range m.calls {
		s.calls[k] = v
	}
	return s
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq = s.seq
	m.voters = s.voters
	m.assignments = s.assignments
	m.calls = s.calls
	m.audits = m.audits[:s.audits]
}

// WithTransaction implements repository.Transactor. Nested calls take their
// own snapshot, which gives savepoint semantics.
func (m *MemoryStore) WithTransaction(ctx context.Context, fn func(context.Context) error) (err error) {
	snap := m.snapshot()
	defer func() {
		if r := recover(); r != nil {
			m.restore(snap)
			err = fmt.Errorf("panic in transaction: %v", r)
		}
	}()
	if err := fn(ctx); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// AddVoter seeds a voter. An empty phone is stored as NULL.
func (m *MemoryStore) AddVoter(campaignID uint, phone string, createdAt time.Time) *models.Voter {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := models.Voter{
		ID:         m.nextID(),
		UUID:       uuid.New(),
		CampaignID: campaignID,
		CreatedAt:  createdAt,
	}
	if phone != "" {
		v.Phone = utils.ToPtr(phone)
	}
	m.voters[v.ID] = v
	return &v
}

// AddCall seeds a finished call for a voter with the next attempt number
func (m *MemoryStore) AddCall(voterID, callerID uint, result models.CallResult, calledAt time.Time) *models.VerificationCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt := 0
	for _, c := range m.calls {
		if c.VoterID == voterID && c.AttemptNumber > attempt {
			attempt = c.AttemptNumber
		}
	}
	ended := calledAt
	c := models.VerificationCall{
		ID:            m.nextID(),
		UUID:          uuid.New(),
		VoterID:       voterID,
		CallerID:      callerID,
		AttemptNumber: attempt + 1,
		CalledAt:      calledAt,
		Result:        result,
		EndedAt:       &ended,
	}
	m.calls[c.ID] = c
	return &c
}

// AddAssignment seeds an assignment as-is, bypassing the open-assignment check
func (m *MemoryStore) AddAssignment(a models.CallAssignment) *models.CallAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = a.BeforeCreate(nil)
	_ = a.BeforeSave(nil)
	a.ID = m.nextID()
	m.assignments[a.ID] = a
	return &a
}

// AllAssignments returns every assignment ordered by id
func (m *MemoryStore) AllAssignments() []*models.CallAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.CallAssignment, 0, len(m.assignments))
	for _, a := range m.assignments {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllCalls returns every call ordered by id
func (m *MemoryStore) AllCalls() []*models.VerificationCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.VerificationCall, 0, len(m.calls))
	for _, c := range m.calls {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllAuditLogs returns every audit row in insertion order
func (m *MemoryStore) AllAuditLogs() []*models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.AuditLog, 0, len(m.audits))
	for i := range m.audits {
		a := m.audits[i]
		out = append(out, &a)
	}
	return out
}

// callStats summarizes calls per voter, keyed on the highest attempt number
func (m *MemoryStore) callStats() map[uint]*models.VoterCallStats {
	stats := make(map[uint]*models.VoterCallStats)
	latest := make(map[uint]int)
	for _, c := range m.calls {
		s, ok := stats[c.VoterID]
		if !ok {
			s = &models.VoterCallStats{}
			stats[c.VoterID] = s
		}
		s.Attempts++
		if !c.IsEnded() {
			s.InCall = true
		}
		if c.AttemptNumber > latest[c.VoterID] {
			latest[c.VoterID] = c.AttemptNumber
			s.LastResult = c.Result
			s.LastCallAt = c.CalledAt
		}
	}
	return stats
}

func (m *MemoryStore) hasOpenAssignment(voterID, campaignID, exceptID uint) bool {
	for _, a := range m.assignments {
		if a.ID != exceptID && a.VoterID == voterID && a.CampaignID == campaignID && a.Status.IsOpen() {
			return true
		}
	}
	return false
}

// memVoters implements repository.VoterRepository
type memVoters struct{ m *MemoryStore }

func (r *memVoters) ByID(ctx context.Context, id uint) (*models.Voter, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fault("voters.ByID"); err != nil {
		return nil, err
	}
	v, ok := r.m.voters[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *memVoters) ByIDForUpdate(ctx context.Context, id uint) (*models.Voter, error) {
	return r.ByID(ctx, id)
}

func (r *memVoters) NextCandidates(ctx context.Context, filter models.VoterPoolFilter, limit int) ([]*models.Voter, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fault("voters.NextCandidates"); err != nil {
		return nil, err
	}

	maxAttempts := filter.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = utils.DefaultMaxCallAttempts
	}
	stats := r.m.callStats()

	type candidate struct {
		voter models.Voter
		stats *models.VoterCallStats
	}
	var picked []candidate
	for _, v := range r.m.voters {
		if filter.CampaignID != nil && v.CampaignID != *filter.CampaignID {
			continue
		}
		if filter.ExcludeOpenIn != nil && r.m.hasOpenAssignment(v.ID, *filter.ExcludeOpenIn, 0) {
			continue
		}
		s := stats[v.ID]
		if !models.EligibleForPool(&v, s, maxAttempts) {
			continue
		}
		picked = append(picked, candidate{voter: v, stats: s})
	}

	sort.Slice(picked, func(i, j int) bool {
		a, b := picked[i], picked[j]
		aNew, bNew := a.stats == nil, b.stats == nil
		if aNew != bNew {
			return aNew
		}
		if aNew {
			if !a.voter.CreatedAt.Equal(b.voter.CreatedAt) {
				return a.voter.CreatedAt.Before(b.voter.CreatedAt)
			}
		} else if !a.stats.LastCallAt.Equal(b.stats.LastCallAt) {
			return a.stats.LastCallAt.Before(b.stats.LastCallAt)
		}
		return a.voter.ID < b.voter.ID
	})

	if limit > 0 && len(picked) > limit {
		picked = picked[:limit]
	}
	out := make([]*models.Voter, 0, len(picked))
	for i := range picked {
		out = append(out, &picked[i].voter)
	}
	return out, nil
}

// memAssignments implements repository.CallAssignmentRepository
type memAssignments struct{ m *MemoryStore }

func matchAssignment(a models.CallAssignment, f models.CallAssignmentFilter) bool {
	switch {
	case f.ID != nil && a.ID != *f.ID:
		return false
	case f.UUID != nil && a.UUID != *f.UUID:
		return false
	case f.VoterID != nil && a.VoterID != *f.VoterID:
		return false
	case f.AssignedTo != nil && a.AssignedTo != *f.AssignedTo:
		return false
	case f.CampaignID != nil && a.CampaignID != *f.CampaignID:
		return false
	case f.Status != nil && a.Status != *f.Status:
		return false
	case f.OnlyOpen && !a.Status.IsOpen():
		return false
	case f.AssignedAfter != nil && !a.AssignedAt.After(*f.AssignedAfter):
		return false
	case f.AssignedBefore != nil && !a.AssignedAt.Before(*f.AssignedBefore):
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if a.Status == s {
				return true
			}
		}
		return false
	}
	return true
}

func (r *memAssignments) list(filter models.CallAssignmentFilter, orderBy string) []*models.CallAssignment {
	var out []*models.CallAssignment
	for _, a := range r.m.assignments {
		if matchAssignment(a, filter) {
			a := a
			out = append(out, &a)
		}
	}
	if orderBy == repository.QueueOrder {
		models.SortForQueue(out)
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	}
	return out
}

func page[T any](rows []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func (r *memAssignments) ByID(ctx context.Context, id uint) (*models.CallAssignment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fault("assignments.ByID"); err != nil {
		return nil, err
	}
	a, ok := r.m.assignments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *memAssignments) ByIDForUpdate(ctx context.Context, id uint) (*models.CallAssignment, error) {
	return r.ByID(ctx, id)
}

func (r *memAssignments) ByFilter(ctx context.Context, filter models.CallAssignmentFilter, orderBy string, limit, offset int) ([]*models.CallAssignment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fault("assignments.ByFilter"); err != nil {
		return nil, err
	}
	return page(r.list(filter, orderBy), limit, offset), nil
}

func (r *memAssignments) Save(ctx context.Context, a *models.CallAssignment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fault("assignments.Save"); err != nil {
		return err
	}
	_ = a.BeforeCreate(nil)
	_ = a.BeforeSave(nil)
	if a.Status.IsOpen() && r.m.hasOpenAssignment(a.VoterID, a.CampaignID, 0) {
		return repository.ErrOpenAssignmentExists
	}
	a.ID = r.m.nextID()
	r.m.assignments[a.ID] = *a
	return nil
}

func (r *memAssignments) SaveBatch(ctx context.Context, rows []*models.CallAssignment) error {
	for _, a := range rows {
		if err := r.Save(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *memAssignments) Update(ctx context.Context, a *models.CallAssignment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fault("assignments.Update"); err != nil {
		return err
	}
	if _, ok := r.m.assignments[a.ID]; !ok {
		return errors.New("assignment does not exist")
	}
	_ = a.BeforeSave(nil)
	_ = a.BeforeUpdate(nil)
	if a.Status.IsOpen() && r.m.hasOpenAssignment(a.VoterID, a.CampaignID, a.ID) {
		return repository.ErrOpenAssignmentExists
	}
	r.m.assignments[a.ID] = *a
	return nil
}

func (r *memAssignments) Count(ctx context.Context, filter models.CallAssignmentFilter) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.list(filter, ""))), nil
}

func (r *memAssignments) Exists(ctx context.Context, filter models.CallAssignmentFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memAssignments) OpenForVoter(ctx context.Context, voterID, campaignID uint) (*models.CallAssignment, error) {
	rows, err := r.ByFilter(ctx, models.CallAssignmentFilter{VoterID: &voterID, CampaignID: &campaignID, OnlyOpen: true}, "id DESC", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *memAssignments) OpenForCallerAndVoter(ctx context.Context, callerID, voterID uint) (*models.CallAssignment, error) {
	rows, err := r.ByFilter(ctx, models.CallAssignmentFilter{VoterID: &voterID, AssignedTo: &callerID, OnlyOpen: true}, "id DESC", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *memAssignments) ListQueue(ctx context.Context, callerID, campaignID uint, statuses []models.AssignmentStatus, limit int) ([]*models.CallAssignment, error) {
	filter := models.CallAssignmentFilter{AssignedTo: &callerID, CampaignID: &campaignID, Statuses: statuses}
	if len(statuses) == 0 {
		filter.OnlyOpen = true
	}
	return r.ByFilter(ctx, filter, repository.QueueOrder, limit, 0)
}

func (r *memAssignments) ListPendingForUpdate(ctx context.Context, callerID, campaignID uint) ([]*models.CallAssignment, error) {
	status := models.AssignmentStatusPending
	return r.ByFilter(ctx, models.CallAssignmentFilter{AssignedTo: &callerID, CampaignID: &campaignID, Status: &status}, repository.QueueOrder, 0, 0)
}

func (r *memAssignments) StatusCounts(ctx context.Context, campaignID uint, callerIDs []uint) (map[uint]models.StatusCounts, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fault("assignments.StatusCounts"); err != nil {
		return nil, err
	}
	out := make(map[uint]models.StatusCounts, len(callerIDs))
	for _, id := range callerIDs {
		out[id] = models.StatusCounts{}
	}
	for _, a := range r.m.assignments {
		c, ok := out[a.AssignedTo]
		if !ok || a.CampaignID != campaignID {
			continue
		}
		switch a.Status {
		case models.AssignmentStatusPending:
			c.Pending++
		case models.AssignmentStatusInProgress:
			c.InProgress++
		case models.AssignmentStatusCompleted:
			c.Completed++
		case models.AssignmentStatusReassigned:
			c.Reassigned++
		}
		out[a.AssignedTo] = c
	}
	return out, nil
}

// memCalls implements repository.VerificationCallRepository
type memCalls struct{ m *MemoryStore }

func matchCall(c models.VerificationCall, f models.VerificationCallFilter) bool {
	switch {
	case f.ID != nil && c.ID != *f.ID:
		return false
	case f.UUID != nil && c.UUID != *f.UUID:
		return false
	case f.VoterID != nil && c.VoterID != *f.VoterID:
		return false
	case f.AssignmentID != nil && (c.AssignmentID == nil || *c.AssignmentID != *f.AssignmentID):
		return false
	case f.CallerID != nil && c.CallerID != *f.CallerID:
		return false
	case f.Result != nil && c.Result != *f.Result:
		return false
	case f.CalledAfter != nil && !c.CalledAt.After(*f.CalledAfter):
		return false
	case f.CalledBefore != nil && !c.CalledAt.Before(*f.CalledBefore):
		return false
	}
	return true
}

func (r *memCalls) list(filter models.VerificationCallFilter) []*models.VerificationCall {
	var out []*models.VerificationCall
	for _, c := range r.m.calls {
		if matchCall(c, filter) {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CalledAt.Equal(out[j].CalledAt) {
			return out[i].CalledAt.After(out[j].CalledAt)
		}
		return out[i].AttemptNumber > out[j].AttemptNumber
	})
	return out
}

func (r *memCalls) ByID(ctx context.Context, id uint) (*models.VerificationCall, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fault("calls.ByID"); err != nil {
		return nil, err
	}
	c, ok := r.m.calls[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *memCalls) ByIDForUpdate(ctx context.Context, id uint) (*models.VerificationCall, error) {
	return r.ByID(ctx, id)
}

func (r *memCalls) ByFilter(ctx context.Context, filter models.VerificationCallFilter, orderBy string, limit, offset int) ([]*models.VerificationCall, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return page(r.list(filter), limit, offset), nil
}

func (r *memCalls) Save(ctx context.Context, c *models.VerificationCall) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fault("calls.Save"); err != nil {
		return err
	}
	_ = c.BeforeCreate(nil)
	for _, existing := range r.m.calls {
		if existing.VoterID == c.VoterID && existing.AttemptNumber == c.AttemptNumber {
			return repository.ErrAttemptNumberTaken
		}
	}
	c.ID = r.m.nextID()
	r.m.calls[c.ID] = *c
	return nil
}

func (r *memCalls) SaveBatch(ctx context.Context, rows []*models.VerificationCall) error {
	for _, c := range rows {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *memCalls) Update(ctx context.Context, c *models.VerificationCall) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fault("calls.Update"); err != nil {
		return err
	}
	if _, ok := r.m.calls[c.ID]; !ok {
		return errors.New("call does not exist")
	}
	_ = c.BeforeUpdate(nil)
	r.m.calls[c.ID] = *c
	return nil
}

func (r *memCalls) Count(ctx context.Context, filter models.VerificationCallFilter) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.list(filter))), nil
}

func (r *memCalls) Exists(ctx context.Context, filter models.VerificationCallFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memCalls) CountByVoter(ctx context.Context, voterID uint) (int64, error) {
	return r.Count(ctx, models.VerificationCallFilter{VoterID: &voterID})
}

func (r *memCalls) ListByVoter(ctx context.Context, voterID uint, limit, offset int) ([]*models.VerificationCall, error) {
	return r.ByFilter(ctx, models.VerificationCallFilter{VoterID: &voterID}, "", limit, offset)
}

// memAudits implements repository.AuditLogRepository
type memAudits struct{ m *MemoryStore }

func matchAudit(a models.AuditLog, f models.AuditLogFilter) bool {
	switch {
	case f.ID != nil && a.ID != *f.ID:
		return false
	case f.ActorID != nil && (a.ActorID == nil || *a.ActorID != *f.ActorID):
		return false
	case f.Action != nil && a.Action != *f.Action:
		return false
	case f.Success != nil && (a.Success == nil || *a.Success != *f.Success):
		return false
	case f.RequestID != nil && (a.RequestID == nil || *a.RequestID != *f.RequestID):
		return false
	case f.CreatedAfter != nil && !a.CreatedAt.After(*f.CreatedAfter):
		return false
	case f.CreatedBefore != nil && !a.CreatedAt.Before(*f.CreatedBefore):
		return false
	}
	return true
}

func (r *memAudits) list(filter models.AuditLogFilter) []*models.AuditLog {
	var out []*models.AuditLog
	for i := len(r.m.audits) - 1; i >= 0; i-- {
		if matchAudit(r.m.audits[i], filter) {
			a := r.m.audits[i]
			out = append(out, &a)
		}
	}
	return out
}

func (r *memAudits) ByID(ctx context.Context, id uint) (*models.AuditLog, error) {
	rows, err := r.ByFilter(ctx, models.AuditLogFilter{ID: &id}, "", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *memAudits) ByFilter(ctx context.Context, filter models.AuditLogFilter, orderBy string, limit, offset int) ([]*models.AuditLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return page(r.list(filter), limit, offset), nil
}

func (r *memAudits) Save(ctx context.Context, a *models.AuditLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fault("audit.Save"); err != nil {
		return err
	}
	a.ID = r.m.nextID()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	r.m.audits = append(r.m.audits, *a)
	return nil
}

func (r *memAudits) SaveBatch(ctx context.Context, rows []*models.AuditLog) error {
	for _, a := range rows {
		if err := r.Save(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *memAudits) Count(ctx context.Context, filter models.AuditLogFilter) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.list(filter))), nil
}

func (r *memAudits) Exists(ctx context.Context, filter models.AuditLogFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memAudits) ListByActor(ctx context.Context, actorID uint, limit, offset int) ([]*models.AuditLog, error) {
	return r.ByFilter(ctx, models.AuditLogFilter{ActorID: &actorID}, "", limit, offset)
}

func (r *memAudits) ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error) {
	return r.ByFilter(ctx, models.AuditLogFilter{Action: &action}, "", limit, offset)
}

var (
	_ repository.Transactor                 = (*MemoryStore)(nil)
	_ repository.VoterRepository            = (*memVoters)(nil)
	_ repository.CallAssignmentRepository   = (*memAssignments)(nil)
	_ repository.VerificationCallRepository = (*memCalls)(nil)
	_ repository.AuditLogRepository         = (*memAudits)(nil)
)
