package main

import "time"

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	// TokenVersion invalidates outstanding refresh tokens when bumped.
	// Never serialized.
	TokenVersion int `json:"-"`
}

type BoardMember struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"` // "owner" or "member"
}

type Board struct {
	ID        int64         `json:"id"`
	Title     string        `json:"title"`
	OwnerID   int64         `json:"ownerId"`
	Archived  bool          `json:"archived"`
	Members   []BoardMember `json:"members,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type List struct {
	ID        int64     `json:"id"`
	BoardID   int64     `json:"boardId"`
	Title     string    `json:"title"`
	Position  float64   `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

type Card struct {
	ID int64 `json:"id"`
	// BoardID is denormalized onto cards so authorization and board-wide
	// queries avoid a join through lists.
	BoardID     int64     `json:"boardId"`
	ListID      int64     `json:"listId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AssigneeID  *int64    `json:"assigneeId"`
	Position    float64   `json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Comment struct {
	ID        int64     `json:"id"`
	CardID    int64     `json:"cardId"`
	AuthorID  int64     `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// boardAllowsUser is the single membership predicate shared by the REST
// handlers and the realtime join handshake. The owner counts as a member
// even without a board_members row.
func boardAllowsUser(b *Board, userID int64) bool {
	if b == nil || userID == 0 {
		return false
	}
	if b.OwnerID == userID {
		return true
	}
	for _, m := range b.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
