package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/retry"
	"github.com/capitalize-ai/project-onboarding/pkg/logger"
)

// busyPolicy retries statements that hit SQLITE_BUSY.
var busyPolicy = retry.Policy{
	MaxRetries: 3,
	BaseDelay:  50 * time.Millisecond,
	MaxDelay:   500 * time.Millisecond,
}

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	log *logger.Logger
	now func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string, log *logger.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL for concurrent readers; foreign keys are per connection.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, log: log, now: time.Now}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS owners (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS competitors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL CHECK (length(name) > 0),
		website TEXT NOT NULL DEFAULT '',
		industry TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL CHECK (length(name) > 0),
		owner_id TEXT NOT NULL REFERENCES owners(id),
		metadata_json TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id);

	CREATE TABLE IF NOT EXISTS project_competitors (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		competitor_id TEXT NOT NULL REFERENCES competitors(id),
		PRIMARY KEY (project_id, competitor_id)
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL CHECK (length(name) > 0),
		url TEXT NOT NULL CHECK (length(url) > 0),
		industry TEXT NOT NULL DEFAULT '',
		positioning TEXT NOT NULL DEFAULT '',
		customer_description TEXT NOT NULL DEFAULT '',
		problem_statement TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		partial INTEGER NOT NULL DEFAULT 0,
		ai_assisted INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_project ON reports(project_id, created_at);

	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL UNIQUE REFERENCES projects(id) ON DELETE CASCADE,
		cadence TEXT NOT NULL,
		next_run_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		step TEXT NOT NULL DEFAULT '',
		project_id TEXT,
		snapshot_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// withBusyRetry runs fn, retrying while SQLite reports the database busy.
func (s *SQLiteStore) withBusyRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	p := busyPolicy
	p.OnRetry = func(a retry.Attempt, delay time.Duration, err error) {
		s.log.Debug("sqlite busy, retrying",
			zap.String("op", op),
			zap.Int("attempt", a.Number),
			zap.Duration("delay", delay),
		)
	}
	_, err := retry.Do(ctx, p, func(ctx context.Context, _ retry.Attempt) error {
		err := fn(ctx)
		if err != nil && !IsBusyError(err) {
			return retry.Permanent(err)
		}
		return err
	})
	return classify(op, err)
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return classify("ping", s.db.PingContext(ctx))
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// FindOwner retrieves an owner by email.
func (s *SQLiteStore) FindOwner(ctx context.Context, email string) (*model.Owner, error) {
	query := `SELECT id, email, created_at FROM owners WHERE email = ?`

	var owner model.Owner
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, strings.TrimSpace(email)).Scan(&owner.ID, &owner.Email, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("find owner", err)
	}
	owner.CreatedAt = time.UnixMilli(createdAt)
	return &owner, nil
}

// CreateOwner inserts a new owner.
func (s *SQLiteStore) CreateOwner(ctx context.Context, email string) (*model.Owner, error) {
	owner := &model.Owner{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Email:     strings.TrimSpace(email),
		CreatedAt: s.now().UTC(),
	}
	if owner.Email == "" {
		return nil, fmt.Errorf("create owner: %w: empty email", ErrRejected)
	}

	err := s.withBusyRetry(ctx, "create owner", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO owners (id, email, created_at) VALUES (?, ?, ?)`,
			owner.ID, owner.Email, owner.CreatedAt.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return owner, nil
}

// ListCompetitors returns the competitor pool ordered by name.
func (s *SQLiteStore) ListCompetitors(ctx context.Context) ([]model.Competitor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, website, industry, description FROM competitors ORDER BY name`)
	if err != nil {
		return nil, classify("list competitors", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.log.Warn("failed to close competitor rows", zap.Error(closeErr))
		}
	}()

	var out []model.Competitor
	for rows.Next() {
		var c model.Competitor
		if err := rows.Scan(&c.ID, &c.Name, &c.Website, &c.Industry, &c.Description); err != nil {
			return nil, classify("scan competitor", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate competitors", err)
	}
	return out, nil
}

// UpsertCompetitors adds or updates competitor pool entries in one transaction.
func (s *SQLiteStore) UpsertCompetitors(ctx context.Context, competitors []model.Competitor) error {
	return s.withBusyRetry(ctx, "upsert competitors", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		query := `
		INSERT INTO competitors (id, name, website, industry, description)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			website = excluded.website,
			industry = excluded.industry,
			description = excluded.description`
		for _, c := range competitors {
			if c.ID == "" {
				c.ID = uuid.Must(uuid.NewV7()).String()
			}
			if _, err := tx.ExecContext(ctx, query, c.ID, c.Name, c.Website, c.Industry, c.Description); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// CreateProject inserts the project and its competitor links. The links are
// read back inside the transaction and compared with the requested set; any
// difference rolls the whole creation back.
func (s *SQLiteStore) CreateProject(ctx context.Context, p model.NewProject) (*model.Project, error) {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("create project: %w: encode metadata: %w", ErrRejected, err)
	}

	requested := uniqueSorted(p.CompetitorIDs)
	project := &model.Project{
		ID:            uuid.Must(uuid.NewV7()).String(),
		Name:          p.Name,
		OwnerID:       p.OwnerID,
		CompetitorIDs: requested,
		Metadata:      p.Metadata,
		CreatedAt:     s.now().UTC(),
	}

	err = s.withBusyRetry(ctx, "create project", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projects (id, name, owner_id, metadata_json, created_at) VALUES (?, ?, ?, ?, ?)`,
			project.ID, project.Name, project.OwnerID, string(metadata), project.CreatedAt.UnixMilli(),
		); err != nil {
			return err
		}

		// Unknown competitor ids insert nothing and are caught by the check below.
		for _, id := range requested {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO project_competitors (project_id, competitor_id) SELECT ?, id FROM competitors WHERE id = ?`,
				project.ID, id,
			); err != nil {
				return err
			}
		}

		linked, err := linkedCompetitors(ctx, tx, project.ID)
		if err != nil {
			return err
		}
		if !equalSets(requested, linked) {
			return fmt.Errorf("%w: requested %d competitors, linked %d", ErrAssociationMismatch, len(requested), len(linked))
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func linkedCompetitors(ctx context.Context, tx *sql.Tx, projectID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT competitor_id FROM project_competitors WHERE project_id = ? ORDER BY competitor_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetProject retrieves a project with its competitor ids.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var project model.Project
	var metadata string
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, metadata_json, created_at FROM projects WHERE id = ?`, id,
	).Scan(&project.ID, &project.Name, &project.OwnerID, &metadata, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get project", err)
	}
	project.CreatedAt = time.UnixMilli(createdAt)
	if err := json.Unmarshal([]byte(metadata), &project.Metadata); err != nil {
		return nil, fmt.Errorf("decode project metadata: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT competitor_id FROM project_competitors WHERE project_id = ? ORDER BY competitor_id`, id)
	if err != nil {
		return nil, classify("get project competitors", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return nil, classify("scan project competitor", err)
		}
		project.CompetitorIDs = append(project.CompetitorIDs, cid)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate project competitors", err)
	}
	return &project, nil
}

// CreateProduct inserts the product record of a project.
func (s *SQLiteStore) CreateProduct(ctx context.Context, p model.NewProduct) (*model.Product, error) {
	product := &model.Product{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ProjectID: p.ProjectID,
		Name:      p.Name,
		URL:       p.URL,
		CreatedAt: s.now().UTC(),
	}

	err := s.withBusyRetry(ctx, "create product", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO products (id, project_id, name, url, industry, positioning,
			                      customer_description, problem_statement, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			product.ID, p.ProjectID, p.Name, p.URL, p.Industry, p.Positioning,
			p.CustomerDescription, p.ProblemStatement, product.CreatedAt.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// SaveReport stores a generated report.
func (s *SQLiteStore) SaveReport(ctx context.Context, r *model.Report) error {
	if r.ID == "" {
		r.ID = uuid.Must(uuid.NewV7()).String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	return s.withBusyRetry(ctx, "save report", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO reports (id, project_id, content, partial, ai_assisted, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, r.ProjectID, r.Content, r.Partial, r.AIAssisted, r.CreatedAt.UnixMilli(),
		)
		return err
	})
}

// ListReports returns the reports of a project, newest first.
func (s *SQLiteStore) ListReports(ctx context.Context, projectID string) ([]model.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, content, partial, ai_assisted, created_at
		FROM reports WHERE project_id = ? ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, classify("list reports", err)
	}
	defer rows.Close()

	var out []model.Report
	for rows.Next() {
		var r model.Report
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Content, &r.Partial, &r.AIAssisted, &createdAt); err != nil {
			return nil, classify("scan report", err)
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate reports", err)
	}
	return out, nil
}

// SaveSchedule creates or replaces the schedule of a project.
func (s *SQLiteStore) SaveSchedule(ctx context.Context, sched *model.ScheduleInfo) error {
	if sched.ID == "" {
		sched.ID = uuid.Must(uuid.NewV7()).String()
	}
	return s.withBusyRetry(ctx, "save schedule", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO schedules (id, project_id, cadence, next_run_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(project_id) DO UPDATE SET
				cadence = excluded.cadence,
				next_run_at = excluded.next_run_at`,
			sched.ID, sched.ProjectID, string(sched.Cadence), sched.NextRunAt.UnixMilli(),
		)
		return err
	})
}

// GetSchedule returns the schedule of a project.
func (s *SQLiteStore) GetSchedule(ctx context.Context, projectID string) (*model.ScheduleInfo, error) {
	var sched model.ScheduleInfo
	var cadence string
	var nextRun int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, cadence, next_run_at FROM schedules WHERE project_id = ?`, projectID,
	).Scan(&sched.ID, &sched.ProjectID, &cadence, &nextRun)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get schedule", err)
	}
	sched.Cadence = model.Cadence(cadence)
	sched.NextRunAt = time.UnixMilli(nextRun)
	return &sched, nil
}

// GetSession loads a session snapshot.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot_json FROM sessions WHERE id = ?`, id).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get session", err)
	}

	var session model.Session
	if err := json.Unmarshal([]byte(snapshot), &session); err != nil {
		return nil, fmt.Errorf("decode session snapshot: %w", err)
	}
	return &session, nil
}

// SaveSession creates or updates a session snapshot.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *model.Session) error {
	snapshot, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session snapshot: %w", err)
	}

	var projectID any
	if session.ProjectID != "" {
		projectID = session.ProjectID
	}

	return s.withBusyRetry(ctx, "save session", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sessions (id, tenant_id, user_id, step, project_id, snapshot_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				step = excluded.step,
				project_id = excluded.project_id,
				snapshot_json = excluded.snapshot_json,
				updated_at = excluded.updated_at`,
			session.ID, session.TenantID, session.UserID, string(session.CurrentStep()), projectID,
			string(snapshot), session.CreatedAt.UnixMilli(), session.UpdatedAt.UnixMilli(),
		)
		return err
	})
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
