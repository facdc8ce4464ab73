package main

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestBoardAllowsUser(t *testing.T) {
	b := &Board{
		ID:      1,
		OwnerID: 10,
		Members: []BoardMember{
			{UserID: 10, Role: "owner"},
			{UserID: 20, Role: "member"},
		},
	}
	assert.Equal(t, boardAllowsUser(b, 10), true)
	assert.Equal(t, boardAllowsUser(b, 20), true)
	assert.Equal(t, boardAllowsUser(b, 30), false)
	assert.Equal(t, boardAllowsUser(b, 0), false)
	assert.Equal(t, boardAllowsUser(nil, 10), false)
}

// The owner must be allowed even if the owner membership row is missing;
// the predicate, not the row set, carries the invariant.
func TestBoardAllowsOwnerWithoutMemberRow(t *testing.T) {
	b := &Board{ID: 2, OwnerID: 10}
	assert.Equal(t, boardAllowsUser(b, 10), true)
	assert.Equal(t, boardAllowsUser(b, 20), false)
}
