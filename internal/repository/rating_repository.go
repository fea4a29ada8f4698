package repository

import (
	"context"

	"github.com/iliyamo/carpool-reservation/internal/model"
)

// RatingRepo stores per-ride ratings and the running mean kept on users.
type RatingRepo struct {
	db Querier
}

func NewRatingRepo(db Querier) *RatingRepo { return &RatingRepo{db: db} }

// Create records one rating.  Rating the same user twice for the same ride
// violates uq_ratings_once and yields ErrDuplicate.
func (r *RatingRepo) Create(ctx context.Context, rt *model.Rating) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ratings (ride_id, rater_id, ratee_id, score) VALUES (?, ?, ?, ?)`,
		rt.RideID, rt.RaterID, rt.RateeID, rt.Score)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rt.ID = uint64(id)
	return nil
}

// AddToUser folds score into the user's mean in place.  MySQL evaluates the
// SET list left to right, so rating is computed from the old rating_count.
func (r *RatingRepo) AddToUser(ctx context.Context, userID uint64, score int) error {
	const q = `UPDATE users SET rating = (rating * rating_count + ?) / (rating_count + 1),
		rating_count = rating_count + 1 WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, score, userID)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetUserRating reads the mean and count of a user.
func (r *RatingRepo) GetUserRating(ctx context.Context, userID uint64) (model.UserRating, error) {
	var ur model.UserRating
	err := r.db.QueryRowContext(ctx,
		`SELECT id, rating, rating_count FROM users WHERE id = ?`, userID).
		Scan(&ur.UserID, &ur.Rating, &ur.Count)
	if err != nil {
		return model.UserRating{}, classify(err)
	}
	return ur, nil
}
