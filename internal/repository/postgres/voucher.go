package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/repository"
)

const voucherColumns = "id, code, kind, value, max_discount, min_order_value, quantity, starts_at, ends_at"

type voucherRepository struct {
	db *sql.DB
}

// NewVoucherRepository creates a new VoucherRepository backed by Postgres.
func NewVoucherRepository(db *sql.DB) repository.VoucherRepository {
	return &voucherRepository{db: db}
}

func scanVoucher(row interface{ Scan(...any) error }) (entity.Voucher, error) {
	var (
		v        entity.Voucher
		kind     string
		startsAt sql.NullTime
		endsAt   sql.NullTime
	)
	err := row.Scan(&v.ID, &v.Code, &kind, &v.Value, &v.MaxDiscount, &v.MinOrderValue, &v.Quantity, &startsAt, &endsAt)
	v.Kind = entity.VoucherKind(kind)
	v.StartsAt = startsAt.Time
	v.EndsAt = endsAt.Time
	return v, err
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (r *voucherRepository) FindAll(ctx context.Context) ([]entity.Voucher, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+voucherColumns+" FROM vouchers ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query vouchers: %w", err)
	}
	defer rows.Close()

	vouchers := []entity.Voucher{}
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voucher: %w", err)
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

func (r *voucherRepository) FindByID(ctx context.Context, id string) (*entity.Voucher, error) {
	v, err := scanVoucher(r.db.QueryRowContext(ctx, "SELECT "+voucherColumns+" FROM vouchers WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &entity.NotFoundError{Kind: "voucher", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query voucher %s: %w", id, err)
	}
	return &v, nil
}

// Seed validates and inserts vouchers that do not exist yet.
func (r *voucherRepository) Seed(ctx context.Context, vouchers []entity.Voucher) error {
	for _, v := range vouchers {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("failed to seed voucher %s: %w", v.ID, err)
		}
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO vouchers ("+voucherColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (id) DO NOTHING",
			v.ID, v.Code, string(v.Kind), v.Value, v.MaxDiscount, v.MinOrderValue, v.Quantity, nullTime(v.StartsAt), nullTime(v.EndsAt),
		)
		if err != nil {
			return fmt.Errorf("failed to seed voucher %s: %w", v.ID, err)
		}
	}
	return nil
}
