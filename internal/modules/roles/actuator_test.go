package roles

import (
	"context"
	"errors"
	"sort"
	"testing"

	"warden/internal/chat"
	"warden/internal/storage"

	"go.uber.org/zap"
)

type fakeAPI struct {
	roles   []Role
	added   []string
	removed []string
	kicked  []string
	banned  []string
	addErr  error
	kickErr error
}

func (f *fakeAPI) GuildRoles(guildID string) ([]Role, error) { return f.roles, nil }

func (f *fakeAPI) AddMemberRole(guildID, userID, roleID string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, roleID)
	return nil
}

func (f *fakeAPI) RemoveMemberRole(guildID, userID, roleID string) error {
	f.removed = append(f.removed, roleID)
	return nil
}

func (f *fakeAPI) Kick(guildID, userID, reason string) error {
	if f.kickErr != nil {
		return f.kickErr
	}
	f.kicked = append(f.kicked, userID)
	return nil
}

func (f *fakeAPI) Ban(guildID, userID, reason string) error {
	f.banned = append(f.banned, userID)
	return nil
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{roles: []Role{
		{ID: "r-muted", Name: "Muted"},
		{ID: "r-nid", Name: "not-in-development"},
		{ID: "r-admin", Name: "Admin"},
		{ID: "r-helper", Name: "helper"},
	}}
}

func newActuator(t *testing.T, api API) (*Actuator, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	policy := Policy{Bad: []string{"not-in-development", "muted"}, Good: []string{"admin", "contributor", "moderator", "bot"}}
	return New(api, store, policy, "muted", zap.NewNop(), nil), store
}

func member(roleIDs ...string) chat.Member {
	return chat.Member{GuildID: "g1", UserID: "u1", Tag: "user#0001", RoleIDs: roleIDs}
}

func TestAssignAlreadyHas(t *testing.T) {
	api := newFakeAPI()
	actuator, _ := newActuator(t, api)
	if got := actuator.Assign(context.Background(), member("r-muted"), "muted"); got.Outcome != OutcomeUnchanged {
		t.Fatalf("expected unchanged, got %+v", got)
	}
	if len(api.added) != 0 {
		t.Fatalf("no API call expected")
	}
}

func TestAssignBadRoleBlockedForGoodHolder(t *testing.T) {
	api := newFakeAPI()
	actuator, _ := newActuator(t, api)
	got := actuator.Mute(context.Background(), member("r-admin"))
	if got.Outcome != OutcomeBlocked {
		t.Fatalf("expected blocked, got %+v", got)
	}
	if len(api.added) != 0 {
		t.Fatalf("blocked assignment must not call the API")
	}
}

func TestAssignGoodRoleBlockedForBadHolder(t *testing.T) {
	api := newFakeAPI()
	actuator, _ := newActuator(t, api)
	if got := actuator.Assign(context.Background(), member("r-muted"), "admin"); got.Outcome != OutcomeBlocked {
		t.Fatalf("expected blocked, got %+v", got)
	}
	if got := actuator.Assign(context.Background(), member("r-nid"), "helper"); got.Outcome != OutcomeBlocked {
		t.Fatalf("any non-bad role is blocked for a bad holder, got %+v", got)
	}
}

func TestAssignBadRoleToBadHolderIsAllowed(t *testing.T) {
	api := newFakeAPI()
	actuator, _ := newActuator(t, api)
	if got := actuator.Mute(context.Background(), member("r-nid")); !got.OK() {
		t.Fatalf("expected ok, got %+v", got)
	}
}

func TestAssignPrecedenceBeforeNotFound(t *testing.T) {
	api := newFakeAPI()
	actuator, _ := newActuator(t, api)
	if got := actuator.Assign(context.Background(), member("r-muted"), "ghost"); got.Outcome != OutcomeBlocked {
		t.Fatalf("policy check must precede lookup, got %+v", got)
	}
	if got := actuator.Assign(context.Background(), member(), "ghost"); got.Outcome != OutcomeNotFound {
		t.Fatalf("expected not found, got %+v", got)
	}
}

func TestAssignAPIError(t *testing.T) {
	api := newFakeAPI()
	api.addErr = errors.New("missing permissions")
	actuator, _ := newActuator(t, api)
	got := actuator.Mute(context.Background(), member())
	if got.Outcome != OutcomeFailed || got.Detail == "" {
		t.Fatalf("expected failure with detail, got %+v", got)
	}
}

func TestMutePersistsStickyRoleAndEnsureRolesReapplies(t *testing.T) {
	api := newFakeAPI()
	actuator, store := newActuator(t, api)
	ctx := context.Background()

	if got := actuator.Mute(ctx, member()); !got.OK() {
		t.Fatalf("mute: %+v", got)
	}
	persisted, err := store.ListPersistedRoles(ctx, "g1", "u1")
	if err != nil || len(persisted) != 1 || persisted[0] != "muted" {
		t.Fatalf("expected muted persisted, got %v %v", persisted, err)
	}

	api.added = nil
	results := actuator.EnsureRoles(ctx, member())
	if len(results) != 1 || !results[0].OK() || len(api.added) != 1 || api.added[0] != "r-muted" {
		t.Fatalf("expected muted re-applied on rejoin, got %+v added=%v", results, api.added)
	}
}

func TestRemoveForgetsStickyRole(t *testing.T) {
	api := newFakeAPI()
	actuator, store := newActuator(t, api)
	ctx := context.Background()

	_ = actuator.Mute(ctx, member())
	if got := actuator.Remove(ctx, member("r-muted"), "muted"); !got.OK() {
		t.Fatalf("remove: %+v", got)
	}
	persisted, _ := store.ListPersistedRoles(ctx, "g1", "u1")
	if len(persisted) != 0 {
		t.Fatalf("expected sticky role forgotten, got %v", persisted)
	}
	if got := actuator.Remove(ctx, member(), "muted"); got.Outcome != OutcomeUnchanged {
		t.Fatalf("expected unchanged when role not held, got %+v", got)
	}
}

func TestSyncSticky(t *testing.T) {
	api := newFakeAPI()
	actuator, store := newActuator(t, api)
	ctx := context.Background()

	if err := actuator.SyncSticky(ctx, member("r-nid", "r-helper")); err != nil {
		t.Fatalf("sync: %v", err)
	}
	persisted, _ := store.ListPersistedRoles(ctx, "g1", "u1")
	sort.Strings(persisted)
	if len(persisted) != 1 || persisted[0] != "not-in-development" {
		t.Fatalf("expected only bad role persisted, got %v", persisted)
	}

	if err := actuator.SyncSticky(ctx, member("r-helper")); err != nil {
		t.Fatalf("sync: %v", err)
	}
	persisted, _ = store.ListPersistedRoles(ctx, "g1", "u1")
	if len(persisted) != 0 {
		t.Fatalf("expected sticky role dropped, got %v", persisted)
	}
}

func TestKickFailureIsOutcome(t *testing.T) {
	api := newFakeAPI()
	api.kickErr = errors.New("forbidden")
	actuator, _ := newActuator(t, api)
	if got := actuator.Kick(context.Background(), member(), "spam"); got.Outcome != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %+v", got)
	}
	if got := actuator.Ban(context.Background(), member(), "spam"); !got.OK() || len(api.banned) != 1 {
		t.Fatalf("expected ban, got %+v", got)
	}
}
