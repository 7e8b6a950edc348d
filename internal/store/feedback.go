package store

import (
	"context"
	"database/sql"
	"errors"

	"catalog-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateComment creates a new comment
func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments ("user", product_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, date`

	err := sqlx.GetContext(ctx, s.q, comment, query, comment.User, comment.ProductID, comment.Text)
	return translateError(err)
}

// ListComments retrieves all comments for a product, oldest first
func (s *Store) ListComments(ctx context.Context, productID int64) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := sqlx.SelectContext(ctx, s.q, &comments,
		`SELECT id, "user", product_id, text, date FROM comments WHERE product_id = $1 ORDER BY date, id`, productID)
	return comments, translateError(err)
}

// CreateReview creates a review unless the user already reviewed the store
func (s *Store) CreateReview(ctx context.Context, review *models.Review) (*models.Review, bool, error) {
	query := `
		INSERT INTO reviews ("user", store_id, rating)
		VALUES ($1, $2, $3)
		ON CONFLICT (store_id, "user") DO NOTHING
		RETURNING id, "user", store_id, rating, date`

	var created models.Review
	err := sqlx.GetContext(ctx, s.q, &created, query, review.User, review.StoreID, review.Rating)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, translateError(err)
	}

	existing, err := s.GetReview(ctx, review.StoreID, review.User)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetReview retrieves the review a user left for a store
func (s *Store) GetReview(ctx context.Context, storeID int64, user string) (*models.Review, error) {
	var review models.Review
	err := sqlx.GetContext(ctx, s.q, &review,
		`SELECT id, "user", store_id, rating, date FROM reviews WHERE store_id = $1 AND "user" = $2`, storeID, user)
	if err != nil {
		return nil, translateError(err)
	}
	return &review, nil
}

// ListReviews retrieves all reviews for a store
func (s *Store) ListReviews(ctx context.Context, storeID int64) ([]models.Review, error) {
	reviews := []models.Review{}
	err := sqlx.SelectContext(ctx, s.q, &reviews,
		`SELECT id, "user", store_id, rating, date FROM reviews WHERE store_id = $1 ORDER BY date, id`, storeID)
	return reviews, translateError(err)
}
