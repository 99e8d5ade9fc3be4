package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestPartnerFilter(t *testing.T) {
	t.Run("Empty Query", func(t *testing.T) {
		where, args := partnerFilter(PartnerQuery{Page: 1, Limit: 10})
		assert.Equal(t, "TRUE", where)
		assert.Empty(t, args)
	})

	t.Run("All Filters", func(t *testing.T) {
		where, args := partnerFilter(PartnerQuery{
			ExcludeUserID: 7,
			Subject:       " Toán ",
			MinRating:     4,
			Search:        "50%_off",
			University:    "Bách Khoa",
			Major:         "CNTT",
		})

		assert.Equal(t, "TRUE AND user_id <> $1"+
			" AND EXISTS (SELECT 1 FROM unnest(subjects) AS s WHERE s ILIKE $2)"+
			" AND rating >= $3"+
			" AND (name ILIKE $4 OR bio ILIKE $4 OR COALESCE(university, '') ILIKE $4 OR COALESCE(major, '') ILIKE $4)"+
			" AND COALESCE(university, '') ILIKE $5"+
			" AND COALESCE(major, '') ILIKE $6", where)
		assert.Equal(t, []interface{}{7, "Toán", 4.0, `%50\%\_off%`, "%Bách Khoa%", "%CNTT%"}, args)
	})

	t.Run("Blank Values Are Ignored", func(t *testing.T) {
		where, args := partnerFilter(PartnerQuery{Subject: "  ", Search: " ", University: "\t"})
		assert.Equal(t, "TRUE", where)
		assert.Empty(t, args)
	})
}

func TestPartnerQueryOffset(t *testing.T) {
	assert.Equal(t, 0, PartnerQuery{Page: 0, Limit: 10}.Offset())
	assert.Equal(t, 0, PartnerQuery{Page: 1, Limit: 10}.Offset())
	assert.Equal(t, 20, PartnerQuery{Page: 3, Limit: 10}.Offset())
}

func TestStoreHelpers(t *testing.T) {
	t.Run("Escape Like", func(t *testing.T) {
		assert.Equal(t, `a\\b\%c\_d`, escapeLike(`a\b%c_d`))
	})

	t.Run("Unique Violation", func(t *testing.T) {
		err := fmt.Errorf("insert: %w", &pq.Error{Code: pqUniqueViolation})
		assert.True(t, isUniqueViolation(err))
		assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
		assert.False(t, isUniqueViolation(errors.New("boom")))
	})

	t.Run("Null Conversions", func(t *testing.T) {
		assert.Nil(t, nullString(nil))
		assert.Equal(t, "x", nullString(strPtr("x")))
		assert.Nil(t, nullIfEmpty(""))
		assert.Nil(t, nullInt(nil))
		assert.Equal(t, 3, nullInt(intPtr(3)))
		assert.Equal(t, []string{}, nonNil(nil))
	})
}
