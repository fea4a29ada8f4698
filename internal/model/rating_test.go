package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestUserRatingAdd(t *testing.T) {
    var r UserRating
    for _, s := range []int{5, 2, 4, 1} {
        r = r.Add(s)
    }
    assert.Equal(t, 4, r.Count)
    assert.InDelta(t, 3.0, r.Rating, 1e-9)

    one := UserRating{}.Add(3)
    assert.Equal(t, UserRating{Rating: 3, Count: 1}, one)
}
