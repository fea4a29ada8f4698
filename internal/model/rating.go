package model

import "time"

// Rating is one score a ride participant gave another after the ride.
type Rating struct {
    ID        uint64    `json:"id"`         // ratings.id
    RideID    uint64    `json:"ride_id"`    // ratings.ride_id
    RaterID   uint64    `json:"rater_id"`   // ratings.rater_id
    RateeID   uint64    `json:"ratee_id"`   // ratings.ratee_id
    Score     int       `json:"score"`      // ratings.score (1..5)
    CreatedAt time.Time `json:"created_at"` // ratings.created_at
}

// UserRating is the running mean kept on users.rating / users.rating_count.
type UserRating struct {
    UserID uint64  `json:"user_id"`
    Rating float64 `json:"rating"`
    Count  int     `json:"rating_count"`
}

// Add folds one score into the mean without keeping the history.
func (r UserRating) Add(score int) UserRating {
    total := r.Rating * float64(r.Count)
    r.Count++
    r.Rating = (total + float64(score)) / float64(r.Count)
    return r
}
