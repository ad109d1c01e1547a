package store

import (
	"context"
	"testing"
)

func TestNoteCRUD(t *testing.T) {
	db := setupTestDB(t)
	ns := NewNoteStore(db)
	owner := createTestUser(t, db, "alice@example.com")
	ctx := context.Background()

	note, err := ns.Create(ctx, owner.ID, "Groceries", "milk, eggs")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if note.Title != "Groceries" {
		t.Errorf("title = %q, want %q", note.Title, "Groceries")
	}
	if note.UserID != owner.ID {
		t.Errorf("user_id = %q, want %q", note.UserID, owner.ID)
	}
	if note.IsArchived {
		t.Error("new note should not be archived")
	}

	got, err := ns.GetByID(ctx, note.ID)
	if err != nil {
		t.Fatalf("get note: %v", err)
	}
	if got == nil || got.Content != "milk, eggs" {
		t.Fatalf("get note = %+v", got)
	}

	archived := true
	updated, err := ns.Update(ctx, note.ID, "Groceries", "milk, eggs, bread", &archived)
	if err != nil {
		t.Fatalf("update note: %v", err)
	}
	if updated.Content != "milk, eggs, bread" || !updated.IsArchived {
		t.Errorf("update = %+v", updated)
	}
	if updated.UserID != owner.ID {
		t.Errorf("owner changed on update: %q", updated.UserID)
	}

	if err := ns.Delete(ctx, note.ID); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	gone, err := ns.GetByID(ctx, note.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if gone != nil {
		t.Error("expected nil after delete")
	}
}

func TestNoteUpdateKeepsArchivedWhenNil(t *testing.T) {
	db := setupTestDB(t)
	ns := NewNoteStore(db)
	owner := createTestUser(t, db, "alice@example.com")
	ctx := context.Background()

	note, _ := ns.Create(ctx, owner.ID, "Todo", "")
	ns.SetArchived(ctx, note.ID, true)

	updated, err := ns.Update(ctx, note.ID, "Todo", "call mum", nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.IsArchived {
		t.Error("archived flag should be untouched when not provided")
	}
}

func TestNoteUpdateMissing(t *testing.T) {
	ns := NewNoteStore(setupTestDB(t))

	n, err := ns.Update(context.Background(), "missing", "x", "", nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if n != nil {
		t.Error("expected nil for missing note")
	}
}

func TestNoteListByUser(t *testing.T) {
	db := setupTestDB(t)
	ns := NewNoteStore(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	ctx := context.Background()

	first, _ := ns.Create(ctx, alice.ID, "First", "")
	second, _ := ns.Create(ctx, alice.ID, "Second", "")
	old, _ := ns.Create(ctx, alice.ID, "Old", "")
	ns.Create(ctx, bob.ID, "Bob's", "")

	ns.SetArchived(ctx, old.ID, true)
	// Touch the first note so it becomes the most recently updated.
	ns.Update(ctx, first.ID, "First", "edited", nil)

	notes, err := ns.ListByUser(ctx, alice.ID, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("len = %d, want 2", len(notes))
	}
	if notes[0].ID != first.ID || notes[1].ID != second.ID {
		t.Errorf("order = [%s %s], want [First Second]", notes[0].Title, notes[1].Title)
	}

	archived, err := ns.ListByUser(ctx, alice.ID, true)
	if err != nil {
		t.Fatalf("list archived: %v", err)
	}
	if len(archived) != 1 || archived[0].ID != old.ID {
		t.Errorf("archived = %+v, want only Old", archived)
	}

	none, err := ns.ListByUser(ctx, "nobody", false)
	if err != nil {
		t.Fatalf("list for unknown user: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", none)
	}
}

func TestNoteCascadeOnUserDelete(t *testing.T) {
	db := setupTestDB(t)
	ns := NewNoteStore(db)
	owner := createTestUser(t, db, "alice@example.com")
	ctx := context.Background()

	note, _ := ns.Create(ctx, owner.ID, "Doomed", "")

	if _, err := db.Exec(`DELETE FROM users WHERE id = ?`, owner.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if n, _ := ns.GetByID(ctx, note.ID); n != nil {
		t.Error("note should be removed with its owner")
	}
}

func TestNoteCreateUnknownOwner(t *testing.T) {
	ns := NewNoteStore(setupTestDB(t))

	if _, err := ns.Create(context.Background(), "ghost", "Orphan", ""); err == nil {
		t.Error("expected foreign key error for unknown owner")
	}
}
