package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vlaship/rex/internal/log"
)

// mockQuerier implements Querier for unit tests. Set the err fields to
// force failures; the last* fields capture the arguments of each call.
type mockQuerier struct {
	createErr error
	getErr    error
	listErr   error
	renameErr error
	updateErr error

	row  ChatRow
	rows []ChatRow

	lastCreate CreateChatParams
	lastGet    GetChatParams
	lastRename RenameChatParams
	lastUpdate UpdateLastMessageParams
}

func (m *mockQuerier) CreateChat(_ context.Context, arg CreateChatParams) (ChatRow, error) {
	m.lastCreate = arg
	if m.createErr != nil {
		return ChatRow{}, m.createErr
	}
	row := m.row
	row.ID = arg.ID
	row.UserID = arg.UserID
	row.LastMessage = arg.LastMessage
	return row, nil
}

func (m *mockQuerier) GetChat(_ context.Context, arg GetChatParams) (ChatRow, error) {
	m.lastGet = arg
	if m.getErr != nil {
		return ChatRow{}, m.getErr
	}
	return m.row, nil
}

func (m *mockQuerier) ListChats(_ context.Context, _ string) ([]ChatRow, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.rows, nil
}

func (m *mockQuerier) RenameChat(_ context.Context, arg RenameChatParams) (ChatRow, error) {
	m.lastRename = arg
	if m.renameErr != nil {
		return ChatRow{}, m.renameErr
	}
	row := m.row
	row.Title = &arg.Title
	return row, nil
}

func (m *mockQuerier) UpdateLastMessage(_ context.Context, arg UpdateLastMessageParams) (ChatRow, error) {
	m.lastUpdate = arg
	if m.updateErr != nil {
		return ChatRow{}, m.updateErr
	}
	row := m.row
	row.LastMessage = arg.LastMessage
	return row, nil
}

func TestCreate_GeneratesTimeOrderedID(t *testing.T) {
	mock := &mockQuerier{}
	store := New(mock, log.NewNop())

	first, err := store.Create(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	second, err := store.Create(context.Background(), "u1", "hello again")
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}

	if first.ID == uuid.Nil || second.ID == uuid.Nil {
		t.Fatal("chat id not assigned")
	}
	if first.ID == second.ID {
		t.Fatal("concurrent creates must not collide")
	}
	if first.ID.Version() != 7 {
		t.Errorf("id version = %d, want 7", first.ID.Version())
	}
	// UUIDv7 sorts by creation time.
	if strings.Compare(first.ID.String(), second.ID.String()) >= 0 {
		t.Errorf("ids not time-ordered: %s >= %s", first.ID, second.ID)
	}
}

func TestCreate_TruncatesInitialPreview(t *testing.T) {
	mock := &mockQuerier{}
	store := New(mock, log.NewNop())

	long := strings.Repeat("q", PreviewMaxLen*3)
	got, err := store.Create(context.Background(), "u1", long)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}

	if len([]rune(got.LastMessage)) != PreviewMaxLen {
		t.Errorf("preview len = %d, want %d", len([]rune(got.LastMessage)), PreviewMaxLen)
	}
	if mock.lastCreate.LastMessage != got.LastMessage {
		t.Error("preview not truncated before persistence")
	}
}

func TestCreate_NilTitle(t *testing.T) {
	store := New(&mockQuerier{}, log.NewNop())

	got, err := store.Create(context.Background(), "u1", "hi")
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if got.Title != nil {
		t.Errorf("new session title = %q, want nil", *got.Title)
	}
}

func TestGet_WrongOwnerIsNotFound(t *testing.T) {
	mock := &mockQuerier{getErr: pgx.ErrNoRows}
	store := New(mock, log.NewNop())

	_, err := store.Get(context.Background(), uuid.New(), "intruder")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() = %v, want ErrNotFound", err)
	}
}

func TestGet_ScopedToOwner(t *testing.T) {
	id := uuid.New()
	mock := &mockQuerier{row: ChatRow{ID: pgtype.UUID{Bytes: id, Valid: true}, UserID: "u1"}}
	store := New(mock, log.NewNop())

	if _, err := store.Get(context.Background(), id, "u1"); err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if mock.lastGet.UserID != "u1" {
		t.Error("query not scoped to owner")
	}
}

func TestGet_WrapsOtherErrors(t *testing.T) {
	dbErr := errors.New("connection refused")
	store := New(&mockQuerier{getErr: dbErr}, log.NewNop())

	_, err := store.Get(context.Background(), uuid.New(), "u1")
	if errors.Is(err, ErrNotFound) {
		t.Error("infrastructure error must not masquerade as NotFound")
	}
	if !errors.Is(err, dbErr) {
		t.Errorf("Get() = %v, want wrapped %v", err, dbErr)
	}
}

func TestRename_NotFound(t *testing.T) {
	store := New(&mockQuerier{renameErr: pgx.ErrNoRows}, log.NewNop())

	_, err := store.Rename(context.Background(), uuid.New(), "u2", "New title")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Rename() = %v, want ErrNotFound", err)
	}
}

func TestRename_ReplacesTitleOnly(t *testing.T) {
	mock := &mockQuerier{row: ChatRow{UserID: "u1", LastMessage: "kept"}}
	store := New(mock, log.NewNop())

	got, err := store.Rename(context.Background(), uuid.New(), "u1", "Dog breeds")
	if err != nil {
		t.Fatalf("Rename() = %v", err)
	}
	if got.Title == nil || *got.Title != "Dog breeds" {
		t.Errorf("title = %v, want Dog breeds", got.Title)
	}
	if got.LastMessage != "kept" {
		t.Errorf("preview changed on rename: %q", got.LastMessage)
	}
}

func TestUpdatePreview_AppliesTruncation(t *testing.T) {
	mock := &mockQuerier{}
	store := New(mock, log.NewNop())

	long := strings.Repeat("m", PreviewMaxLen+50)
	got, err := store.UpdatePreview(context.Background(), uuid.New(), "u1", long)
	if err != nil {
		t.Fatalf("UpdatePreview() = %v", err)
	}
	if len([]rune(got.LastMessage)) != PreviewMaxLen {
		t.Errorf("preview len = %d, want %d", len([]rune(got.LastMessage)), PreviewMaxLen)
	}
	if !strings.HasSuffix(mock.lastUpdate.LastMessage, "...") {
		t.Errorf("persisted preview missing marker: %q", mock.lastUpdate.LastMessage)
	}
}

func TestListByUser_Empty(t *testing.T) {
	store := New(&mockQuerier{}, log.NewNop())

	got, err := store.ListByUser(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListByUser() = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}
