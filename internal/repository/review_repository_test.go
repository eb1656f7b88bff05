package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReduceRatings(t *testing.T) {
	quantity, average := reduceRatings([]ratingStats{{NRating: 3, AvgRating: 4.0}})
	assert.Equal(t, 3, quantity)
	assert.Equal(t, 4.0, average)
}

func TestReduceRatingsRoundsToOneDecimal(t *testing.T) {
	// 4, 5, 5 -> 4.666..., stored as 4.7
	quantity, average := reduceRatings([]ratingStats{{NRating: 3, AvgRating: 14.0 / 3}})
	assert.Equal(t, 3, quantity)
	assert.Equal(t, 4.7, average)

	_, average = reduceRatings([]ratingStats{{NRating: 2, AvgRating: 3.25}})
	assert.Equal(t, 3.3, average)
}

func TestReduceRatingsEmptyResetsDefaults(t *testing.T) {
	// deleting the last review puts the tour back on its initial aggregates
	quantity, average := reduceRatings(nil)
	assert.Equal(t, 0, quantity)
	assert.Equal(t, 4.5, average)
}
