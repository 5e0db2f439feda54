package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

var testLogger = zap.NewNop()

func hashed(pw string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}

func callerFor(u *models.User) middleware.Identity {
	return middleware.Identity{
		UserID:    u.ID,
		DomainID:  u.DomainID,
		Domain:    "north",
		Username:  u.Username,
		Role:      u.Role,
		SessionID: uuid.NewString(),
	}
}

// ──── Domains ────

type memDomains struct {
	byCode map[string]*models.Domain
}

func newMemDomains(codes ...string) *memDomains {
	d := &memDomains{byCode: make(map[string]*models.Domain)}
	for _, c := range codes {
		d.byCode[c] = &models.Domain{ID: uuid.New(), Code: c, Name: c}
	}
	return d
}

func (d *memDomains) List(ctx context.Context) ([]*models.Domain, error) {
	out := make([]*models.Domain, 0, len(d.byCode))
	for _, v := range d.byCode {
		out = append(out, v)
	}
	return out, nil
}

func (d *memDomains) GetByCode(ctx context.Context, code string) (*models.Domain, error) {
	if v, ok := d.byCode[code]; ok {
		return v, nil
	}
	return nil, pgx.ErrNoRows
}

func (d *memDomains) Ensure(ctx context.Context, code, name string) (*models.Domain, error) {
	if v, ok := d.byCode[code]; ok {
		return v, nil
	}
	v := &models.Domain{ID: uuid.New(), Code: code, Name: name}
	d.byCode[code] = v
	return v, nil
}

// ──── Users ────

type memUsers struct {
	byID        map[uuid.UUID]*models.User
	lastLogin   []uuid.UUID
	passwordSet map[uuid.UUID]string
}

func newMemUsers(users ...*models.User) *memUsers {
	m := &memUsers{byID: make(map[uuid.UUID]*models.User), passwordSet: make(map[uuid.UUID]string)}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) Create(ctx context.Context, user *models.User) error {
	for _, u := range m.byID {
		if u.DomainID == user.DomainID && u.Username == user.Username {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	m.byID[user.ID] = user
	return nil
}

func (m *memUsers) GetByUsername(ctx context.Context, domainID uuid.UUID, username string) (*models.User, error) {
	for _, u := range m.byID {
		if u.DomainID == domainID && u.Username == username {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *memUsers) ListByDomain(ctx context.Context, domainID uuid.UUID, role string) ([]*models.User, error) {
	out := make([]*models.User, 0)
	for _, u := range m.byID {
		if u.DomainID == domainID && (role == "" || u.Role == role) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUsers) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.byID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.byID[user.ID] = user
	return nil
}

func (m *memUsers) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	u, ok := m.byID[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = passwordHash
	m.passwordSet[userID] = passwordHash
	return nil
}

func (m *memUsers) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	m.lastLogin = append(m.lastLogin, userID)
	return nil
}

func (m *memUsers) Deactivate(ctx context.Context, domainID, userID uuid.UUID) error {
	u, ok := m.byID[userID]
	if !ok || u.DomainID != domainID {
		return pgx.ErrNoRows
	}
	u.IsActive = false
	return nil
}

// ──── Sessions ────

type memSessions struct {
	live       map[string]uuid.UUID
	revokedAll []uuid.UUID
}

func newMemSessions() *memSessions {
	return &memSessions{live: make(map[string]uuid.UUID)}
}

func (s *memSessions) Register(ctx context.Context, sessionID string, userID uuid.UUID, ttl time.Duration) error {
	s.live[sessionID] = userID
	return nil
}

func (s *memSessions) Revoke(ctx context.Context, sessionID string, userID uuid.UUID) error {
	delete(s.live, sessionID)
	return nil
}

func (s *memSessions) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	s.revokedAll = append(s.revokedAll, userID)
	for sid, uid := range s.live {
		if uid == userID {
			delete(s.live, sid)
		}
	}
	return nil
}

// ──── Jobs and events ────

type recordingQueue struct {
	jobs []*models.Job
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, job *models.Job) error {
	if q.err != nil {
		return q.err
	}
	job.ID = uuid.New()
	job.Status = models.JobPending
	q.jobs = append(q.jobs, job)
	return nil
}

type publishedMessage struct {
	channel string
	msg     models.WSMessage
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (p *recordingPublisher) PublishUser(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{channel: UserChannel(userID), msg: msg})
}

func (p *recordingPublisher) PublishDomain(ctx context.Context, domainID uuid.UUID, msg models.WSMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{channel: DomainChannel(domainID), msg: msg})
}

// ──── Checks ────

type memChecks struct {
	byID        map[uuid.UUID]*models.Check
	completed   map[uuid.UUID][]models.CheckResult
	listFilters []models.CheckFilter
	list        []*models.Check
}

func newMemChecks(checks ...*models.Check) *memChecks {
	m := &memChecks{byID: make(map[uuid.UUID]*models.Check), completed: make(map[uuid.UUID][]models.CheckResult)}
	for _, c := range checks {
		m.byID[c.ID] = c
	}
	return m
}

func (m *memChecks) GetByID(ctx context.Context, domainID, id uuid.UUID) (*models.Check, error) {
	c, ok := m.byID[id]
	if !ok || c.DomainID != domainID {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *memChecks) List(ctx context.Context, domainID uuid.UUID, f models.CheckFilter) ([]*models.Check, error) {
	m.listFilters = append(m.listFilters, f)
	return m.list, nil
}

func (m *memChecks) Transition(ctx context.Context, domainID, id uuid.UUID, from []string, next string) error {
	c, ok := m.byID[id]
	if !ok || c.DomainID != domainID {
		return pgx.ErrNoRows
	}
	for _, s := range from {
		if c.Status == s {
			c.Status = next
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memChecks) Complete(ctx context.Context, domainID, id uuid.UUID, results []models.CheckResult, notes string) error {
	c, ok := m.byID[id]
	if !ok || (c.Status != models.CheckPending && c.Status != models.CheckInProgress) {
		return pgx.ErrNoRows
	}
	c.Status = models.CheckCompleted
	c.Notes = notes
	c.Results = results
	m.completed[id] = results
	return nil
}

// ──── Non-compliance cases ────

type memCases struct {
	byCheck map[uuid.UUID][]*models.NonComplianceCase
	applied []*models.SyncPlan
}

func newMemCases(cases ...*models.NonComplianceCase) *memCases {
	m := &memCases{byCheck: make(map[uuid.UUID][]*models.NonComplianceCase)}
	for _, c := range cases {
		m.byCheck[c.CheckID] = append(m.byCheck[c.CheckID], c)
	}
	return m
}

func (m *memCases) find(id uuid.UUID) *models.NonComplianceCase {
	for _, list := range m.byCheck {
		for _, c := range list {
			if c.ID == id {
				return c
			}
		}
	}
	return nil
}

func (m *memCases) Create(ctx context.Context, c *models.NonComplianceCase) error {
	c.ID = uuid.New()
	c.DetectedAt = time.Now()
	m.byCheck[c.CheckID] = append(m.byCheck[c.CheckID], c)
	return nil
}

func (m *memCases) GetByID(ctx context.Context, domainID, id uuid.UUID) (*models.NonComplianceCase, error) {
	if c := m.find(id); c != nil && c.DomainID == domainID {
		cp := *c
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *memCases) List(ctx context.Context, domainID uuid.UUID, f models.NonComplianceFilter) ([]*models.NonComplianceCase, int, error) {
	out := make([]*models.NonComplianceCase, 0)
	for _, list := range m.byCheck {
		out = append(out, list...)
	}
	return out, len(out), nil
}

func (m *memCases) ListByCheck(ctx context.Context, domainID, checkID uuid.UUID) ([]*models.NonComplianceCase, error) {
	return m.byCheck[checkID], nil
}

func (m *memCases) Update(ctx context.Context, c *models.NonComplianceCase) error {
	existing := m.find(c.ID)
	if existing == nil {
		return pgx.ErrNoRows
	}
	*existing = *c
	return nil
}

func (m *memCases) Delete(ctx context.Context, domainID, id uuid.UUID) error {
	for checkID, list := range m.byCheck {
		for i, c := range list {
			if c.ID == id {
				m.byCheck[checkID] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return pgx.ErrNoRows
}

func (m *memCases) ApplySync(ctx context.Context, domainID, checkID, userID uuid.UUID, plan *models.SyncPlan) error {
	for i := range plan.Create {
		c := &models.NonComplianceCase{
			ID:            uuid.New(),
			DomainID:      domainID,
			CheckID:       checkID,
			ParameterID:   plan.Create[i].Parameter.ParameterID,
			ParameterName: plan.Create[i].Parameter.Name,
			Severity:      models.SeverityMedium,
			Status:        models.CaseOpen,
			CreatedBy:     userID,
		}
		m.byCheck[checkID] = append(m.byCheck[checkID], c)
		plan.Create[i].Case = c
	}
	for i := range plan.Resolve {
		plan.Resolve[i].Case.Status = models.CaseResolved
	}
	m.applied = append(m.applied, plan)
	return nil
}

// ──── Catalog ────

type memParameters struct {
	byID map[uuid.UUID]*models.InspectionParameter
}

func (m *memParameters) GetParametersByIDs(ctx context.Context, domainID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*models.InspectionParameter, error) {
	out := make(map[uuid.UUID]*models.InspectionParameter)
	for _, id := range ids {
		if p, ok := m.byID[id]; ok && p.DomainID == domainID {
			out[id] = p
		}
	}
	return out, nil
}

func floatPtr(f float64) *float64 { return &f }
