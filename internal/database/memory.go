package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatch/driftwatch/internal/models"
)

// In-memory repository implementations for testing and development. They
// mirror the Postgres semantics, including conflict-ignore evidence inserts
// and expiry-guarded lock acquisition.

// MemoryProjectRepository implements ProjectRepository in memory.
type MemoryProjectRepository struct {
	mu       sync.RWMutex
	projects map[string]models.Project
}

// NewMemoryProjectRepository creates an empty in-memory project repository.
func NewMemoryProjectRepository() *MemoryProjectRepository {
	return &MemoryProjectRepository{projects: make(map[string]models.Project)}
}

// Put stores or replaces a project (test setup helper).
func (r *MemoryProjectRepository) Put(p models.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID] = p
}

// GetByID retrieves a project.
func (r *MemoryProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// ListDue retrieves active projects whose interval has elapsed.
func (r *MemoryProjectRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []models.Project
	for _, p := range r.projects {
		if p.DueForRefresh(now) {
			due = append(due, p)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		a, b := due[i].LastRefreshAt, due[j].LastRefreshAt
		if a == nil {
			return true
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})

	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// UpdateLastRefresh records refresh completion.
func (r *MemoryProjectRepository) UpdateLastRefresh(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return ErrNotFound
	}
	p.LastRefreshAt = &at
	r.projects[id] = p
	return nil
}

// MemorySourceRepository implements SourceRepository in memory.
type MemorySourceRepository struct {
	mu      sync.RWMutex
	sources map[string]models.Source
}

// NewMemorySourceRepository creates an empty in-memory source repository.
func NewMemorySourceRepository() *MemorySourceRepository {
	return &MemorySourceRepository{sources: make(map[string]models.Source)}
}

// Put stores or replaces a source (test setup helper).
func (r *MemorySourceRepository) Put(s models.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.ID] = s
}

// GetByID retrieves a source.
func (r *MemorySourceRepository) GetByID(ctx context.Context, id string) (*models.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

// ListActiveByProject retrieves active sources for a project.
func (r *MemorySourceRepository) ListActiveByProject(ctx context.Context, projectID string, limit int) ([]models.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []models.Source
	for _, s := range r.sources {
		if s.ProjectID == projectID && s.IsActive {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].LastFetchAt, result[j].LastFetchAt
		if a == nil {
			return true
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UpdateLastFetch records source freshness.
func (r *MemorySourceRepository) UpdateLastFetch(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	if !ok {
		return ErrNotFound
	}
	s.LastFetchAt = &at
	r.sources[id] = s
	return nil
}

// MemoryIngestionRepository implements IngestionRepository in memory.
type MemoryIngestionRepository struct {
	mu         sync.RWMutex
	ingestions map[string]models.Ingestion
	hashIdx    map[string]string // sourceID+"|"+hash -> ingestion id
	projectOf  func(sourceID string) string
}

// NewMemoryIngestionRepository creates an empty in-memory ingestion
// repository. projectOf maps a source id to its project for window queries;
// nil treats every source as belonging to every project.
func NewMemoryIngestionRepository(projectOf func(sourceID string) string) *MemoryIngestionRepository {
	return &MemoryIngestionRepository{
		ingestions: make(map[string]models.Ingestion),
		hashIdx:    make(map[string]string),
		projectOf:  projectOf,
	}
}

// Insert stores a new ingestion.
func (r *MemoryIngestionRepository) Insert(ctx context.Context, ingestion models.Ingestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingestions[ingestion.ID] = ingestion
	r.hashIdx[ingestion.SourceID+"|"+ingestion.ContentHash] = ingestion.ID
	return nil
}

// ExistsByHash reports whether the (source, hash) pair is stored.
func (r *MemoryIngestionRepository) ExistsByHash(ctx context.Context, sourceID, contentHash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.hashIdx[sourceID+"|"+contentHash]
	return ok, nil
}

// ListUnprocessed retrieves unprocessed ingestions in the window.
func (r *MemoryIngestionRepository) ListUnprocessed(ctx context.Context, projectID string, since time.Time, limit int) ([]models.Ingestion, error) {
	return r.listFiltered(projectID, since, limit, false)
}

// ListRecent retrieves all ingestions in the window, processed included.
func (r *MemoryIngestionRepository) ListRecent(ctx context.Context, projectID string, since time.Time, limit int) ([]models.Ingestion, error) {
	return r.listFiltered(projectID, since, limit, true)
}

func (r *MemoryIngestionRepository) listFiltered(projectID string, since time.Time, limit int, includeProcessed bool) ([]models.Ingestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []models.Ingestion
	for _, ing := range r.ingestions {
		if ing.ScrapedAt.Before(since) {
			continue
		}
		if !includeProcessed && ing.Processed {
			continue
		}
		if r.projectOf != nil && r.projectOf(ing.SourceID) != projectID {
			continue
		}
		result = append(result, ing)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ScrapedAt.After(result[j].ScrapedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkProcessed flips processed and sets status for the ids.
func (r *MemoryIngestionRepository) MarkProcessed(ctx context.Context, ids []string, status models.IngestionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		ing, ok := r.ingestions[id]
		if !ok {
			continue
		}
		ing.Processed = true
		ing.Status = status
		r.ingestions[id] = ing
	}
	return nil
}

// Get retrieves an ingestion by id (test inspection helper).
func (r *MemoryIngestionRepository) Get(id string) (models.Ingestion, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ing, ok := r.ingestions[id]
	return ing, ok
}

// Size returns the number of stored ingestions.
func (r *MemoryIngestionRepository) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ingestions)
}

// MemoryScrapeLogRepository implements ScrapeLogRepository in memory.
type MemoryScrapeLogRepository struct {
	mu   sync.RWMutex
	logs map[string]models.ScrapeLog
}

// NewMemoryScrapeLogRepository creates an empty in-memory scrape log repository.
func NewMemoryScrapeLogRepository() *MemoryScrapeLogRepository {
	return &MemoryScrapeLogRepository{logs: make(map[string]models.ScrapeLog)}
}

// Create inserts a running log.
func (r *MemoryScrapeLogRepository) Create(ctx context.Context, sourceID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	r.logs[id] = models.ScrapeLog{
		ID:        id,
		SourceID:  sourceID,
		Status:    models.ScrapeStatusRunning,
		StartedAt: time.Now(),
	}
	return id, nil
}

// Finish transitions the log to a terminal state.
func (r *MemoryScrapeLogRepository) Finish(ctx context.Context, id string, status models.ScrapeStatus, itemsFound, itemsProcessed int, errorMessage string, executionTimeMs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	log.Status = status
	log.CompletedAt = &now
	log.ItemsFound = itemsFound
	log.ItemsProcessed = itemsProcessed
	log.ErrorMessage = errorMessage
	log.ExecutionTimeMs = executionTimeMs
	r.logs[id] = log
	return nil
}

// Get retrieves a log by id (test inspection helper).
func (r *MemoryScrapeLogRepository) Get(id string) (models.ScrapeLog, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	log, ok := r.logs[id]
	return log, ok
}

// All returns every log (test inspection helper).
func (r *MemoryScrapeLogRepository) All() []models.ScrapeLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]models.ScrapeLog, 0, len(r.logs))
	for _, log := range r.logs {
		result = append(result, log)
	}
	return result
}

// MemoryScrapeLockRepository implements ScrapeLockRepository in memory.
type MemoryScrapeLockRepository struct {
	mu    sync.Mutex
	locks map[string]models.ScrapeLock
}

// NewMemoryScrapeLockRepository creates an empty in-memory lock repository.
func NewMemoryScrapeLockRepository() *MemoryScrapeLockRepository {
	return &MemoryScrapeLockRepository{locks: make(map[string]models.ScrapeLock)}
}

// Acquire takes the project lock unless a live lock exists.
func (r *MemoryScrapeLockRepository) Acquire(ctx context.Context, projectID, lockedBy string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.locks[projectID]; ok && !existing.Expired(now) {
		return ErrLockHeld
	}

	r.locks[projectID] = models.ScrapeLock{
		ProjectID: projectID,
		LockedBy:  lockedBy,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	return nil
}

// Release drops the lock if still held by lockedBy.
func (r *MemoryScrapeLockRepository) Release(ctx context.Context, projectID, lockedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.locks[projectID]; ok && existing.LockedBy == lockedBy {
		delete(r.locks, projectID)
	}
	return nil
}

// Get retrieves the current lock row.
func (r *MemoryScrapeLockRepository) Get(ctx context.Context, projectID string) (*models.ScrapeLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	return &lock, nil
}

// MemorySignalRepository implements SignalRepository in memory.
type MemorySignalRepository struct {
	mu      sync.RWMutex
	signals map[string]models.Signal
	history map[string][]models.MomentumHistoryEntry
}

// NewMemorySignalRepository creates an empty in-memory signal repository.
func NewMemorySignalRepository() *MemorySignalRepository {
	return &MemorySignalRepository{
		signals: make(map[string]models.Signal),
		history: make(map[string][]models.MomentumHistoryEntry),
	}
}

// Insert stores a new signal.
func (r *MemorySignalRepository) Insert(ctx context.Context, signal models.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals[signal.ID] = signal
	return nil
}

// GetByID retrieves a signal.
func (r *MemorySignalRepository) GetByID(ctx context.Context, id string) (*models.Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.signals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

// ListOpenByProject retrieves non-archived signals, oldest first.
func (r *MemorySignalRepository) ListOpenByProject(ctx context.Context, projectID string) ([]models.Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []models.Signal
	for _, s := range r.signals {
		if s.ProjectID == projectID && s.Open() {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DetectedAt.Before(result[j].DetectedAt) })
	return result, nil
}

// ApplyMomentumUpdate writes the new state and appends history.
func (r *MemorySignalRepository) ApplyMomentumUpdate(ctx context.Context, signalID string, entry models.MomentumHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.signals[signalID]
	if !ok {
		return ErrNotFound
	}

	s.Status = entry.NewStatus
	s.Momentum = entry.NewMomentum
	s.RiskLevel = entry.NewRiskLevel
	s.UpdatedAt = time.Now()
	r.signals[signalID] = s

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.SignalID = signalID
	entry.CreatedAt = time.Now()
	r.history[signalID] = append(r.history[signalID], entry)
	return nil
}

// ListHistory retrieves a signal's momentum history, oldest first.
func (r *MemorySignalRepository) ListHistory(ctx context.Context, signalID string) ([]models.MomentumHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.MomentumHistoryEntry(nil), r.history[signalID]...), nil
}

// Size returns the number of stored signals.
func (r *MemorySignalRepository) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.signals)
}

// MemoryEvidenceRepository implements EvidenceRepository in memory.
type MemoryEvidenceRepository struct {
	mu    sync.RWMutex
	links map[string]models.EvidenceLink // signalID+"|"+ingestionID
}

// NewMemoryEvidenceRepository creates an empty in-memory evidence repository.
func NewMemoryEvidenceRepository() *MemoryEvidenceRepository {
	return &MemoryEvidenceRepository{links: make(map[string]models.EvidenceLink)}
}

// LinkBatch inserts links with conflict-ignore semantics.
func (r *MemoryEvidenceRepository) LinkBatch(ctx context.Context, signalID string, ingestionIDs []string, refType models.ReferenceType) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, ingestionID := range ingestionIDs {
		if ingestionID == "" {
			continue
		}
		key := signalID + "|" + ingestionID
		if _, exists := r.links[key]; exists {
			continue
		}
		r.links[key] = models.EvidenceLink{
			SignalID:      signalID,
			IngestionID:   ingestionID,
			ReferenceType: refType,
			CreatedAt:     time.Now(),
		}
		inserted++
	}
	return inserted, nil
}

// CountForSignal returns the number of evidence rows for a signal.
func (r *MemoryEvidenceRepository) CountForSignal(ctx context.Context, signalID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, link := range r.links {
		if link.SignalID == signalID {
			count++
		}
	}
	return count, nil
}

// Links returns every stored link (test inspection helper).
func (r *MemoryEvidenceRepository) Links() []models.EvidenceLink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]models.EvidenceLink, 0, len(r.links))
	for _, link := range r.links {
		result = append(result, link)
	}
	return result
}

// MemoryUsageRepository implements UsageRepository in memory.
type MemoryUsageRepository struct {
	mu   sync.RWMutex
	logs []models.UsageLog
}

// NewMemoryUsageRepository creates an empty in-memory usage repository.
func NewMemoryUsageRepository() *MemoryUsageRepository {
	return &MemoryUsageRepository{}
}

// Insert appends one usage row.
func (r *MemoryUsageRepository) Insert(ctx context.Context, log models.UsageLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

// TotalCostSince aggregates estimated cost for a project.
func (r *MemoryUsageRepository) TotalCostSince(ctx context.Context, projectID string, since time.Time) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total float64
	for _, log := range r.logs {
		if log.ProjectID == projectID && !log.CreatedAt.Before(since) {
			total += log.EstimatedCost
		}
	}
	return total, nil
}

// All returns every usage row (test inspection helper).
func (r *MemoryUsageRepository) All() []models.UsageLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.UsageLog(nil), r.logs...)
}
