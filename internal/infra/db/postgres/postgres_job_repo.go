package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-generation-queue/internal/domain"
	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `
id, user_id, kind, prompt, meta, status, priority, tier,
attempts, max_attempts, retry_count, tokens_charged, progress,
resource_key_id, result, error, queue_position,
created_at, updated_at, started_at, completed_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var statusStr, kindStr string
	var metaB, tierB []byte
	var keyID *string
	err := row.Scan(
		&j.ID, &j.UserID, &kindStr, &j.Prompt, &metaB, &statusStr, &j.Priority, &tierB,
		&j.Attempts, &j.MaxAttempts, &j.RetryCount, &j.TokensCharged, &j.Progress,
		&keyID, &j.Result, &j.Error, &j.QueuePosition,
		&j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Status = model.JobStatus(statusStr)
	j.Kind = model.GenerationKind(kindStr)
	if keyID != nil {
		j.ResourceKeyID = *keyID
	}
	if len(metaB) > 0 {
		_ = json.Unmarshal(metaB, &j.Meta)
	}
	if len(tierB) > 0 {
		_ = json.Unmarshal(tierB, &j.Tier)
	}
	return &j, nil
}

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if job.ID == "" {
		job.ID = model.NewJobID()
	}
	job.UpdatedAt = time.Now()

	metaB, err := json.Marshal(job.Meta)
	if err != nil {
		return err
	}
	tierB, err := json.Marshal(job.Tier)
	if err != nil {
		return err
	}
	var keyID *string
	if job.ResourceKeyID != "" {
		keyID = &job.ResourceKeyID
	}

	const q = `
INSERT INTO generation_jobs (` + jobColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  attempts = EXCLUDED.attempts,
  retry_count = EXCLUDED.retry_count,
  progress = EXCLUDED.progress,
  resource_key_id = EXCLUDED.resource_key_id,
  result = EXCLUDED.result,
  error = EXCLUDED.error,
  queue_position = EXCLUDED.queue_position,
  updated_at = EXCLUDED.updated_at,
  started_at = EXCLUDED.started_at,
  completed_at = EXCLUDED.completed_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.UserID, string(job.Kind), job.Prompt, metaB, string(job.Status), job.Priority, tierB,
		job.Attempts, job.MaxAttempts, job.RetryCount, job.TokensCharged, job.Progress,
		keyID, job.Result, job.Error, job.QueuePosition,
		job.CreatedAt, job.UpdatedAt, job.StartedAt, job.CompletedAt)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM generation_jobs WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) CountActiveByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `
SELECT COUNT(*) FROM generation_jobs
 WHERE user_id=$1 AND status IN ('queued','pending','processing');`, userID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *jobRepo) CountProcessing(ctx context.Context) (repository.ProcessingCounts, error) {
	counts := repository.ProcessingCounts{ByTier: map[string]int{}}
	rows, err := r.pool.Query(ctx, `
SELECT tier->>'name', COUNT(*) FROM generation_jobs
 WHERE status='processing' GROUP BY 1;`)
	if err != nil {
		return counts, err
	}
	defer rows.Close()
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return counts, domain.ErrReadDatabaseRow
		}
		counts.ByTier[tier] = n
		counts.Total += n
	}
	return counts, rows.Err()
}

func (r *jobRepo) ListWaiting(ctx context.Context, limit int) ([]*model.Job, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+jobColumns+` FROM generation_jobs
 WHERE status IN ('queued','pending')
 ORDER BY priority DESC, created_at ASC, id ASC
 LIMIT $1;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Claim is the single point where a waiting job becomes processing. The
// status guard makes it a compare-and-swap: of N concurrent dispatchers at
// most one sees a row come back. Attempts are capped at max_attempts so a
// user-retried job gets exactly one more run without breaking the
// attempts <= max_attempts invariant.
func (r *jobRepo) Claim(ctx context.Context, id string) (*model.Job, bool, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE generation_jobs
   SET status='processing',
       attempts=LEAST(attempts+1, max_attempts),
       progress=0,
       queue_position=0,
       started_at=now(),
       updated_at=now()
 WHERE id=$1 AND status IN ('queued','pending')
 RETURNING `+jobColumns+`;`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil // a concurrent dispatcher won
		}
		return nil, false, err
	}
	return j, true, nil
}

func (r *jobRepo) UpdateProgress(ctx context.Context, id string, progress int) error {
	if progress < 0 || progress > 100 {
		return domain.ErrInvalidArgument
	}
	// GREATEST keeps progress monotonic within the attempt even when
	// milestone updates race.
	_, err := r.pool.Exec(ctx, `
UPDATE generation_jobs
   SET progress=GREATEST(progress, $2), updated_at=now()
 WHERE id=$1 AND status='processing';`, id, progress)
	return err
}

func (r *jobRepo) Complete(ctx context.Context, id, result string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE generation_jobs
   SET status='completed', result=$2, progress=100, error='',
       completed_at=now(), updated_at=now()
 WHERE id=$1 AND status='processing';`, id, result)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *jobRepo) Requeue(ctx context.Context, id, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE generation_jobs
   SET status='queued', error=$2, progress=0, retry_count=retry_count+1,
       started_at=NULL, updated_at=now()
 WHERE id=$1 AND status='processing';`, id, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *jobRepo) Fail(ctx context.Context, id, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE generation_jobs
   SET status='failed', error=$2, updated_at=now()
 WHERE id=$1 AND status='processing';`, id, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *jobRepo) RetryFailed(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE generation_jobs
   SET status='queued', error='', result='', progress=0,
       retry_count=retry_count+1, started_at=NULL, completed_at=NULL,
       updated_at=now()
 WHERE id=$1 AND status='failed';`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *jobRepo) Cancel(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE generation_jobs
   SET status='cancelled', updated_at=now()
 WHERE id=$1 AND status IN ('queued','pending');`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *jobRepo) SetResourceKey(ctx context.Context, id, keyID string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE generation_jobs SET resource_key_id=$2, updated_at=now()
 WHERE id=$1 AND status='processing';`, id, keyID)
	return err
}

func (r *jobRepo) ListStuckProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*model.Job, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+jobColumns+` FROM generation_jobs
 WHERE status='processing' AND updated_at < $1
 ORDER BY updated_at ASC
 LIMIT $2;`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *jobRepo) RecomputeQueuePositions(ctx context.Context) ([]repository.QueuePosition, error) {
	rows, err := r.pool.Query(ctx, `
WITH ranked AS (
  SELECT id, ROW_NUMBER() OVER (ORDER BY priority DESC, created_at ASC, id ASC) AS pos
    FROM generation_jobs
   WHERE status IN ('queued','pending')
)
UPDATE generation_jobs j
   SET queue_position = r.pos
  FROM ranked r
 WHERE j.id = r.id
RETURNING j.id, r.pos;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []repository.QueuePosition
	for rows.Next() {
		var p repository.QueuePosition
		if err := rows.Scan(&p.JobID, &p.Position); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
