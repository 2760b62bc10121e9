package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/spec-kit/thelewala-agent/internal/domain"
)

// SubscriptionRepository persists the subscription ledger. Every call is
// scoped to one actor role; a vendor id appears at most once per role.
type SubscriptionRepository interface {
	// Insert stores rec and reports false when the vendor is already present.
	Insert(ctx context.Context, role domain.ActorRole, rec *domain.SubscriptionRecord) (bool, error)
	Delete(ctx context.Context, role domain.ActorRole, vendorID string) (bool, error)
	Clear(ctx context.Context, role domain.ActorRole) (int64, error)
	List(ctx context.Context, role domain.ActorRole) ([]domain.SubscriptionRecord, error)
	Exists(ctx context.Context, role domain.ActorRole, vendorID string) (bool, error)
}

func prepareInsert(rec *domain.SubscriptionRecord) {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}

type sqliteSubscriptionRepository struct {
	db *sql.DB
}

// NewSQLiteSubscriptionRepository uses the on-device database.
func NewSQLiteSubscriptionRepository(db *sql.DB) SubscriptionRepository {
	return &sqliteSubscriptionRepository{db: db}
}

func (r *sqliteSubscriptionRepository) Insert(ctx context.Context, role domain.ActorRole, rec *domain.SubscriptionRecord) (bool, error) {
	prepareInsert(rec)
	const query = `
        INSERT INTO subscriptions (id, role, vendor_id, name, distance_label, description, image_url, subscribed_at_local_date, created_at)
        VALUES (?,?,?,?,?,?,?,?,?)
        ON CONFLICT(role, vendor_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		rec.ID,
		string(role),
		rec.VendorID,
		rec.Name,
		rec.DistanceLabel,
		rec.Description,
		rec.ImageURL,
		rec.SubscribedAtLocalDate,
		rec.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *sqliteSubscriptionRepository) Delete(ctx context.Context, role domain.ActorRole, vendorID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE role = ? AND vendor_id = ?`, string(role), vendorID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *sqliteSubscriptionRepository) Clear(ctx context.Context, role domain.ActorRole) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE role = ?`, string(role))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sqliteSubscriptionRepository) List(ctx context.Context, role domain.ActorRole) ([]domain.SubscriptionRecord, error) {
	const query = `
        SELECT id, vendor_id, name, distance_label, description, image_url, subscribed_at_local_date, created_at
        FROM subscriptions WHERE role = ?
        ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.SubscriptionRecord{}
	for rows.Next() {
		var rec domain.SubscriptionRecord
		if err := rows.Scan(&rec.ID, &rec.VendorID, &rec.Name, &rec.DistanceLabel, &rec.Description, &rec.ImageURL, &rec.SubscribedAtLocalDate, &rec.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *sqliteSubscriptionRepository) Exists(ctx context.Context, role domain.ActorRole, vendorID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM subscriptions WHERE role = ? AND vendor_id = ?`, string(role), vendorID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

type postgresSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSubscriptionRepository stores the ledger in a shared Postgres
// database, for agents that run as a hosted bridge.
func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) SubscriptionRepository {
	return &postgresSubscriptionRepository{pool: pool}
}

func (r *postgresSubscriptionRepository) Insert(ctx context.Context, role domain.ActorRole, rec *domain.SubscriptionRecord) (bool, error) {
	prepareInsert(rec)
	const query = `
        INSERT INTO subscriptions (id, role, vendor_id, name, distance_label, description, image_url, subscribed_at_local_date, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (role, vendor_id) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query,
		rec.ID,
		string(role),
		rec.VendorID,
		rec.Name,
		rec.DistanceLabel,
		rec.Description,
		rec.ImageURL,
		rec.SubscribedAtLocalDate,
		rec.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *postgresSubscriptionRepository) Delete(ctx context.Context, role domain.ActorRole, vendorID string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM subscriptions WHERE role=$1 AND vendor_id=$2`, string(role), vendorID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *postgresSubscriptionRepository) Clear(ctx context.Context, role domain.ActorRole) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM subscriptions WHERE role=$1`, string(role))
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *postgresSubscriptionRepository) List(ctx context.Context, role domain.ActorRole) ([]domain.SubscriptionRecord, error) {
	const query = `
        SELECT id, vendor_id, name, distance_label, description, image_url, subscribed_at_local_date, created_at
        FROM subscriptions WHERE role=$1
        ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.SubscriptionRecord{}
	for rows.Next() {
		var rec domain.SubscriptionRecord
		if err := rows.Scan(&rec.ID, &rec.VendorID, &rec.Name, &rec.DistanceLabel, &rec.Description, &rec.ImageURL, &rec.SubscribedAtLocalDate, &rec.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *postgresSubscriptionRepository) Exists(ctx context.Context, role domain.ActorRole, vendorID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE role=$1 AND vendor_id=$2)`, string(role), vendorID).Scan(&exists)
	return exists, err
}
