package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/jobfield/payment-engine/internal/models"
)

// MarketplaceRepository reaches into the marketplace's tables on behalf of
// the payment consumers. Bids, jobs and skills are owned by the marketplace
// application; this side only reads a few fields and writes fee markers.
// The payments ledger table is owned here.
type MarketplaceRepository struct {
	db *sql.DB
}

func NewMarketplaceRepository(db *sql.DB) *MarketplaceRepository {
	return &MarketplaceRepository{db: db}
}

func (r *MarketplaceRepository) InitDB() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS payments (
			id VARCHAR(36) PRIMARY KEY,
			user_id BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			receipt VARCHAR(100) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	return err
}

func (r *MarketplaceRepository) GetBid(ctx context.Context, bidID int64) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.QueryRowContext(ctx, `
		SELECT b.id, b.job_id, b.bidder_id, j.title, b.is_hidden, b.is_featured
		FROM bids b
		JOIN jobs j ON j.id = b.job_id
		WHERE b.id = $1
	`, bidID).Scan(&bid.ID, &bid.JobID, &bid.BidderID, &bid.JobTitle, &bid.IsHidden, &bid.IsFeatured)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *MarketplaceRepository) SetBidHideFee(ctx context.Context, bidID int64, amount float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE bids SET is_hidden = TRUE, hide_fee = $1 WHERE id = $2
	`, amount, bidID)
	return err
}

func (r *MarketplaceRepository) SetBidFeatureFee(ctx context.Context, bidID int64, amount float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE bids SET is_featured = TRUE, feature_fee = $1 WHERE id = $2
	`, amount, bidID)
	return err
}

func (r *MarketplaceRepository) GetUserSkill(ctx context.Context, userSkillID int64) (*models.UserSkill, error) {
	var us models.UserSkill
	err := r.db.QueryRowContext(ctx, `
		SELECT us.id, us.user_id, us.skill_id, s.name, us.fee_paid
		FROM user_skills us
		JOIN skills s ON s.id = us.skill_id
		WHERE us.id = $1
	`, userSkillID).Scan(&us.ID, &us.UserID, &us.SkillID, &us.SkillName, &us.FeePaid)
	if err != nil {
		return nil, err
	}
	return &us, nil
}

func (r *MarketplaceRepository) MarkSkillFeePaid(ctx context.Context, userSkillID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_skills SET fee_paid = TRUE WHERE id = $1
	`, userSkillID)
	return err
}

func (r *MarketplaceRepository) InsertPaymentRecord(ctx context.Context, rec *models.PaymentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, user_id, type, amount, receipt, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.UserID, rec.Type, rec.Amount, rec.Receipt, rec.Status, rec.CreatedAt)
	return err
}
