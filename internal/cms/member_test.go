package cms

import (
	"context"
	"testing"
	"time"
)

func TestMemberGetAndList(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)
	ctx := context.Background()

	repo, err := NewMemberRepository(env.db, logrusDiscard())
	if err != nil {
		t.Fatalf("NewMemberRepository returned error: %v", err)
	}

	member, err := repo.Get(ctx, env.memberID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if member == nil {
		t.Fatal("expected seeded member to be found")
	}
	if member.Forename != "Ivy" || member.Surname != "Stone" {
		t.Fatalf("unexpected member: %#v", member)
	}

	missing, err := repo.Get(ctx, 9999)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing member, got %#v", missing)
	}

	second := &Member{Forename: "Noah", Surname: "Reed", Joined: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)}
	if err := env.db.Create(second).Error; err != nil {
		t.Fatalf("seeding member failed: %v", err)
	}

	members, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].ID != env.memberID || members[1].ID != second.ID {
		t.Fatalf("unexpected order: %#v", members)
	}
}
