package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("invalid input")
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Users

func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`insert into users(username, email, password_hash) values($1, lower($2), $3)
		 returning id, username, email, token_version, created_at`,
		username, email, passwordHash).
		Scan(&u.ID, &u.Username, &u.Email, &u.TokenVersion, &u.CreatedAt)
	if isUniqueViolation(err) {
		return User{}, ErrConflict
	}
	return u, err
}

func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`select id, username, email, token_version, created_at from users where id=$1`, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.TokenVersion, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// Authenticate verifies the password for email and returns the user.
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	var u User
	var hash string
	err := s.db.QueryRowContext(ctx,
		`select id, username, email, token_version, created_at, password_hash
		 from users where email=lower($1)`, email).
		Scan(&u.ID, &u.Username, &u.Email, &u.TokenVersion, &u.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrNotFound
	}
	return u, nil
}

// BumpTokenVersion invalidates every outstanding refresh token for the
// user. The increment is a single atomic update, not read-modify-write.
func (s *Store) BumpTokenVersion(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`update users set token_version = token_version + 1 where id=$1`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Boards

func (s *Store) BoardsForUser(ctx context.Context, userID int64) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx,
		`select distinct b.id, b.title, b.owner_id, b.archived, b.created_at, b.updated_at
		 from boards b left join board_members m on m.board_id = b.id
		 where b.owner_id=$1 or m.user_id=$1
		 order by b.updated_at desc, b.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Board{}
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.Title, &b.OwnerID, &b.Archived, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) CreateBoard(ctx context.Context, ownerID int64, title string) (Board, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Board{}, err
	}
	defer func() { _ = tx.Rollback() }()
	var b Board
	err = tx.QueryRowContext(ctx,
		`insert into boards(title, owner_id) values($1, $2)
		 returning id, title, owner_id, archived, created_at, updated_at`,
		title, ownerID).
		Scan(&b.ID, &b.Title, &b.OwnerID, &b.Archived, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Board{}, err
	}
	// Owner is always present in the member set.
	if _, err = tx.ExecContext(ctx,
		`insert into board_members(board_id, user_id, role) values($1, $2, 'owner')`,
		b.ID, ownerID); err != nil {
		return Board{}, err
	}
	if err = tx.Commit(); err != nil {
		return Board{}, err
	}
	b.Members = []BoardMember{{UserID: ownerID, Role: "owner"}}
	return b, nil
}

func (s *Store) GetBoardWithMembers(ctx context.Context, id int64) (Board, error) {
	var b Board
	err := s.db.QueryRowContext(ctx,
		`select id, title, owner_id, archived, created_at, updated_at from boards where id=$1`, id).
		Scan(&b.ID, &b.Title, &b.OwnerID, &b.Archived, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Board{}, ErrNotFound
	}
	if err != nil {
		return Board{}, err
	}
	rows, err := s.db.QueryContext(ctx,
		`select user_id, role from board_members where board_id=$1 order by user_id`, id)
	if err != nil {
		return Board{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var m BoardMember
		if err := rows.Scan(&m.UserID, &m.Role); err != nil {
			return Board{}, err
		}
		b.Members = append(b.Members, m)
	}
	return b, rows.Err()
}

func (s *Store) UpdateBoard(ctx context.Context, id int64, title *string, archived *bool) (Board, error) {
	set := []string{"updated_at=now()"}
	args := []any{}
	idx := 1
	if title != nil {
		set = append(set, fmt.Sprintf("title=$%d", idx))
		args = append(args, *title)
		idx++
	}
	if archived != nil {
		set = append(set, fmt.Sprintf("archived=$%d", idx))
		args = append(args, *archived)
		idx++
	}
	args = append(args, id)
	var b Board
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`update boards set %s where id=$%d
		 returning id, title, owner_id, archived, created_at, updated_at`, strings.Join(set, ", "), idx),
		args...).
		Scan(&b.ID, &b.Title, &b.OwnerID, &b.Archived, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Board{}, ErrNotFound
	}
	return b, err
}

// DeleteBoardCascade removes the board and everything under it in one
// transaction so readers never observe a half-deleted board. Returns how
// many lists and cards went with it.
func (s *Store) DeleteBoardCascade(ctx context.Context, id int64) (lists, cards int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err = tx.ExecContext(ctx, `delete from comments where board_id=$1`, id); err != nil {
		return 0, 0, err
	}
	res, err := tx.ExecContext(ctx, `delete from cards where board_id=$1`, id)
	if err != nil {
		return 0, 0, err
	}
	cards, _ = res.RowsAffected()
	res, err = tx.ExecContext(ctx, `delete from lists where board_id=$1`, id)
	if err != nil {
		return 0, 0, err
	}
	lists, _ = res.RowsAffected()
	res, err = tx.ExecContext(ctx, `delete from boards where id=$1`, id)
	if err != nil {
		return 0, 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, 0, ErrNotFound
	}
	return lists, cards, tx.Commit()
}

func (s *Store) AddBoardMember(ctx context.Context, boardID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`insert into board_members(board_id, user_id, role) values($1, $2, 'member')
		 on conflict (board_id, user_id) do nothing`, boardID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // unknown user or board
			return ErrValidation
		}
	}
	return err
}

func (s *Store) RemoveBoardMember(ctx context.Context, boardID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`delete from board_members where board_id=$1 and user_id=$2 and role <> 'owner'`,
		boardID, userID)
	return err
}

// Lists

func (s *Store) ListsByBoard(ctx context.Context, boardID int64) ([]List, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, board_id, title, position, created_at
		 from lists where board_id=$1 order by position, id`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []List{}
	for rows.Next() {
		var l List
		if err := rows.Scan(&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) GetList(ctx context.Context, id int64) (List, error) {
	var l List
	err := s.db.QueryRowContext(ctx,
		`select id, board_id, title, position, created_at from lists where id=$1`, id).
		Scan(&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return List{}, ErrNotFound
	}
	return l, err
}

func (s *Store) CreateList(ctx context.Context, boardID int64, title string) (List, error) {
	pos := tailPos(s.lastPosition(ctx, `select max(position) from lists where board_id=$1`, boardID))
	var l List
	err := s.db.QueryRowContext(ctx,
		`insert into lists(board_id, title, position) values($1, $2, $3)
		 returning id, board_id, title, position, created_at`,
		boardID, title, pos).
		Scan(&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt)
	return l, err
}

func (s *Store) UpdateList(ctx context.Context, id int64, title *string, position *float64) (List, error) {
	if title == nil && position == nil {
		return s.GetList(ctx, id)
	}
	set := []string{}
	args := []any{}
	idx := 1
	if title != nil {
		set = append(set, fmt.Sprintf("title=$%d", idx))
		args = append(args, *title)
		idx++
	}
	if position != nil {
		set = append(set, fmt.Sprintf("position=$%d", idx))
		args = append(args, *position)
		idx++
	}
	args = append(args, id)
	var l List
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`update lists set %s where id=$%d
		 returning id, board_id, title, position, created_at`, strings.Join(set, ", "), idx),
		args...).
		Scan(&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return List{}, ErrNotFound
	}
	return l, err
}

func (s *Store) DeleteListCascade(ctx context.Context, id int64) (cards int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err = tx.ExecContext(ctx,
		`delete from comments where card_id in (select id from cards where list_id=$1)`, id); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `delete from cards where list_id=$1`, id)
	if err != nil {
		return 0, err
	}
	cards, _ = res.RowsAffected()
	res, err = tx.ExecContext(ctx, `delete from lists where id=$1`, id)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotFound
	}
	return cards, tx.Commit()
}

// Cards

func (s *Store) CardsByBoard(ctx context.Context, boardID int64) ([]Card, error) {
	return s.queryCards(ctx,
		`select id, board_id, list_id, title, description, assignee_id, position, created_at
		 from cards where board_id=$1 order by list_id, position, id`, boardID)
}

func (s *Store) CardsByList(ctx context.Context, listID int64) ([]Card, error) {
	return s.queryCards(ctx,
		`select id, board_id, list_id, title, description, assignee_id, position, created_at
		 from cards where list_id=$1 order by position, id`, listID)
}

func (s *Store) queryCards(ctx context.Context, q string, args ...any) ([]Card, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Card{}
	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.ID, &c.BoardID, &c.ListID, &c.Title, &c.Description, &c.AssigneeID, &c.Position, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCard(ctx context.Context, id int64) (Card, error) {
	var c Card
	err := s.db.QueryRowContext(ctx,
		`select id, board_id, list_id, title, description, assignee_id, position, created_at
		 from cards where id=$1`, id).
		Scan(&c.ID, &c.BoardID, &c.ListID, &c.Title, &c.Description, &c.AssigneeID, &c.Position, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Card{}, ErrNotFound
	}
	return c, err
}

func (s *Store) CreateCard(ctx context.Context, listID int64, title, description string, assigneeID *int64) (Card, error) {
	l, err := s.GetList(ctx, listID)
	if err != nil {
		return Card{}, err
	}
	pos := tailPos(s.lastPosition(ctx, `select max(position) from cards where list_id=$1`, listID))
	var c Card
	err = s.db.QueryRowContext(ctx,
		`insert into cards(board_id, list_id, title, description, assignee_id, position)
		 values($1, $2, $3, $4, $5, $6)
		 returning id, board_id, list_id, title, description, assignee_id, position, created_at`,
		l.BoardID, listID, title, description, assigneeID, pos).
		Scan(&c.ID, &c.BoardID, &c.ListID, &c.Title, &c.Description, &c.AssigneeID, &c.Position, &c.CreatedAt)
	return c, err
}

func (s *Store) UpdateCard(ctx context.Context, id int64, title, description *string, assignee nullableID) (Card, error) {
	set := []string{}
	args := []any{}
	idx := 1
	if title != nil {
		set = append(set, fmt.Sprintf("title=$%d", idx))
		args = append(args, *title)
		idx++
	}
	if description != nil {
		set = append(set, fmt.Sprintf("description=$%d", idx))
		args = append(args, *description)
		idx++
	}
	if assignee.Set {
		set = append(set, fmt.Sprintf("assignee_id=$%d", idx))
		args = append(args, assignee.Value)
		idx++
	}
	if len(set) == 0 {
		return s.GetCard(ctx, id)
	}
	args = append(args, id)
	var c Card
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`update cards set %s where id=$%d
		 returning id, board_id, list_id, title, description, assignee_id, position, created_at`,
			strings.Join(set, ", "), idx),
		args...).
		Scan(&c.ID, &c.BoardID, &c.ListID, &c.Title, &c.Description, &c.AssigneeID, &c.Position, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Card{}, ErrNotFound
	}
	return c, err
}

// MoveCard resolves a drag-and-drop request into a concrete position key
// and persists it. Neighbor references that no longer live in the target
// list are ignored rather than rejected, since clients race with
// concurrent edits; a missing or cross-board target list is a hard
// validation failure.
func (s *Store) MoveCard(ctx context.Context, cardID int64, toListID, prevCardID, nextCardID *int64) (Card, error) {
	card, err := s.GetCard(ctx, cardID)
	if err != nil {
		return Card{}, err
	}
	targetList := card.ListID
	if toListID != nil && *toListID != card.ListID {
		l, err := s.GetList(ctx, *toListID)
		if errors.Is(err, ErrNotFound) {
			return Card{}, fmt.Errorf("%w: target list not found", ErrValidation)
		}
		if err != nil {
			return Card{}, err
		}
		if l.BoardID != card.BoardID {
			return Card{}, fmt.Errorf("%w: cannot move across boards", ErrValidation)
		}
		targetList = l.ID
	}

	var prev, next *float64
	if prevCardID != nil {
		if n, err := s.GetCard(ctx, *prevCardID); err == nil && n.ListID == targetList && n.ID != cardID {
			prev = &n.Position
		}
	}
	if nextCardID != nil {
		if n, err := s.GetCard(ctx, *nextCardID); err == nil && n.ListID == targetList && n.ID != cardID {
			next = &n.Position
		}
	}

	var pos float64
	if prev == nil && next == nil {
		// No usable neighbor: append after the current last sibling,
		// excluding the card itself for same-list moves.
		pos = tailPos(s.lastPosition(ctx,
			`select max(position) from cards where list_id=$1 and id<>$2`, targetList, cardID))
	} else {
		pos = betweenPos(prev, next)
	}

	var c Card
	err = s.db.QueryRowContext(ctx,
		`update cards set list_id=$1, position=$2 where id=$3
		 returning id, board_id, list_id, title, description, assignee_id, position, created_at`,
		targetList, pos, cardID).
		Scan(&c.ID, &c.BoardID, &c.ListID, &c.Title, &c.Description, &c.AssigneeID, &c.Position, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Card{}, ErrNotFound
	}
	return c, err
}

func (s *Store) DeleteCardCascade(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err = tx.ExecContext(ctx, `delete from comments where card_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from cards where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// SearchCards does a case-insensitive substring match over card titles
// and descriptions within one board, capped at limit results.
func (s *Store) SearchCards(ctx context.Context, boardID int64, q string, limit int) ([]Card, error) {
	pattern := "%" + escapeLike(q) + "%"
	return s.queryCards(ctx,
		`select id, board_id, list_id, title, description, assignee_id, position, created_at
		 from cards
		 where board_id=$1 and (title ilike $2 escape '\' or description ilike $2 escape '\')
		 order by position, id limit $3`, boardID, pattern, limit)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Comments

func (s *Store) CommentsByCard(ctx context.Context, cardID int64) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, card_id, author_id, body, created_at
		 from comments where card_id=$1 order by id`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.CardID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) AddComment(ctx context.Context, boardID, cardID, authorID int64, body string) (Comment, error) {
	var c Comment
	err := s.db.QueryRowContext(ctx,
		`insert into comments(board_id, card_id, author_id, body) values($1, $2, $3, $4)
		 returning id, card_id, author_id, body, created_at`,
		boardID, cardID, authorID, body).
		Scan(&c.ID, &c.CardID, &c.AuthorID, &c.Body, &c.CreatedAt)
	return c, err
}

// lastPosition runs a max(position) query and returns nil for an empty
// container, which the allocator maps to the base key.
func (s *Store) lastPosition(ctx context.Context, q string, args ...any) *float64 {
	var last sql.NullFloat64
	_ = s.db.QueryRowContext(ctx, q, args...).Scan(&last)
	if !last.Valid {
		return nil
	}
	return &last.Float64
}

const schema = `
create table if not exists users(
    id bigserial primary key,
    username text not null check (length(username) > 0),
    email text unique not null,
    password_hash text not null,
    token_version integer not null default 0,
    created_at timestamptz not null default now()
);
create table if not exists boards(
    id bigserial primary key,
    title text not null check (length(title) > 0),
    owner_id bigint not null references users(id),
    archived boolean not null default false,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create index if not exists boards_owner_idx on boards(owner_id);
create table if not exists board_members(
    board_id bigint not null references boards(id) on delete cascade,
    user_id bigint not null references users(id) on delete cascade,
    role text not null default 'member' check (role in ('owner','member')),
    primary key(board_id, user_id)
);
create index if not exists board_members_user_idx on board_members(user_id);
create table if not exists lists(
    id bigserial primary key,
    board_id bigint not null references boards(id) on delete cascade,
    title text not null check (length(title) > 0),
    position double precision not null default 1000,
    created_at timestamptz not null default now()
);
create index if not exists lists_board_pos_idx on lists(board_id, position);
create table if not exists cards(
    id bigserial primary key,
    board_id bigint not null references boards(id) on delete cascade,
    list_id bigint not null references lists(id) on delete cascade,
    title text not null check (length(title) > 0),
    description text not null default '',
    assignee_id bigint references users(id) on delete set null,
    position double precision not null default 1000,
    created_at timestamptz not null default now()
);
create index if not exists cards_list_pos_idx on cards(list_id, position);
create index if not exists cards_board_idx on cards(board_id);
create table if not exists comments(
    id bigserial primary key,
    board_id bigint not null references boards(id) on delete cascade,
    card_id bigint not null references cards(id) on delete cascade,
    author_id bigint not null references users(id),
    body text not null check (length(body) > 0),
    created_at timestamptz not null default now()
);
create index if not exists comments_card_idx on comments(card_id);
`
