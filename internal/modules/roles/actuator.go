// Package roles assigns and removes the small set of named moderation roles
// and carries out kicks and bans.
//
// Assignment honours a fixed precedence: a member who already holds the role
// is left alone; a bad role is never granted to a member holding a good role;
// no other role is granted to a member holding a bad role; unknown role names
// are reported; only then is the API called. Outcomes are values, not errors.
package roles

import (
	"context"
	"fmt"
	"strings"

	"warden/internal/chat"
	"warden/internal/metrics"

	"go.uber.org/zap"
)

type Role struct {
	ID   string
	Name string
}

// API is the guild and member surface the actuator needs.
type API interface {
	GuildRoles(guildID string) ([]Role, error)
	AddMemberRole(guildID, userID, roleID string) error
	RemoveMemberRole(guildID, userID, roleID string) error
	Kick(guildID, userID, reason string) error
	Ban(guildID, userID, reason string) error
}

// StickyStore remembers bad roles so they can be re-applied on rejoin.
type StickyStore interface {
	AddPersistedRole(ctx context.Context, guildID, userID, roleName string) error
	RemovePersistedRole(ctx context.Context, guildID, userID, roleName string) error
	ListPersistedRoles(ctx context.Context, guildID, userID string) ([]string, error)
}

type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeFailed    Outcome = "failed"
)

type Result struct {
	Outcome Outcome
	Detail  string
}

func (r Result) OK() bool {
	return r.Outcome == OutcomeOK
}

// Policy holds lower-cased role names.
type Policy struct {
	Bad  []string
	Good []string
}

func (p Policy) isBad(name string) bool {
	return contains(p.Bad, name)
}

func (p Policy) isGood(name string) bool {
	return contains(p.Good, name)
}

type Actuator struct {
	api       API
	sticky    StickyStore
	policy    Policy
	mutedRole string
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func New(api API, sticky StickyStore, policy Policy, mutedRole string, logger *zap.Logger, m *metrics.Metrics) *Actuator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Actuator{
		api:       api,
		sticky:    sticky,
		policy:    Policy{Bad: lowerAll(policy.Bad), Good: lowerAll(policy.Good)},
		mutedRole: strings.ToLower(mutedRole),
		logger:    logger,
		metrics:   m,
	}
}

func (a *Actuator) MutedRole() string {
	return a.mutedRole
}

// HasRole reports whether the member currently holds the named role.
func (a *Actuator) HasRole(member chat.Member, name string) (bool, error) {
	guildRoles, err := a.api.GuildRoles(member.GuildID)
	if err != nil {
		return false, err
	}
	held := heldNames(member, guildRoles)
	return contains(held, strings.ToLower(name)), nil
}

func (a *Actuator) Assign(ctx context.Context, member chat.Member, name string) Result {
	result := a.assign(ctx, member, name)
	a.metrics.RoleAction("assign", string(result.Outcome))
	return result
}

func (a *Actuator) assign(ctx context.Context, member chat.Member, name string) Result {
	roleName := strings.ToLower(name)
	guildRoles, err := a.api.GuildRoles(member.GuildID)
	if err != nil {
		a.logger.Warn("guild roles lookup failed", zap.String("guild_id", member.GuildID), zap.Error(err))
		return Result{Outcome: OutcomeFailed, Detail: fmt.Sprintf("Failed to look up roles: %v", err)}
	}
	held := heldNames(member, guildRoles)

	if contains(held, roleName) {
		return Result{Outcome: OutcomeUnchanged, Detail: fmt.Sprintf("**%s** already has role `%s`", member.Tag, roleName)}
	}
	if a.policy.isBad(roleName) {
		for _, h := range held {
			if a.policy.isGood(h) {
				return Result{Outcome: OutcomeBlocked, Detail: fmt.Sprintf("Role `%s` was not assigned to **%s** because they have role `%s`", roleName, member.Tag, h)}
			}
		}
	} else {
		for _, h := range held {
			if a.policy.isBad(h) {
				return Result{Outcome: OutcomeBlocked, Detail: fmt.Sprintf("Role `%s` was not assigned to **%s** because they have role `%s`", roleName, member.Tag, h)}
			}
		}
	}

	role, ok := findRole(guildRoles, roleName)
	if !ok {
		return Result{Outcome: OutcomeNotFound, Detail: fmt.Sprintf("Role `%s` not found", roleName)}
	}
	if err := a.api.AddMemberRole(member.GuildID, member.UserID, role.ID); err != nil {
		a.logger.Warn("role assign failed", zap.String("guild_id", member.GuildID), zap.String("user_id", member.UserID), zap.String("role", roleName), zap.Error(err))
		return Result{Outcome: OutcomeFailed, Detail: fmt.Sprintf("Failed to assign role `%s`: %v", roleName, err)}
	}
	if a.policy.isBad(roleName) && a.sticky != nil {
		if err := a.sticky.AddPersistedRole(ctx, member.GuildID, member.UserID, roleName); err != nil {
			a.logger.Warn("persist sticky role failed", zap.String("user_id", member.UserID), zap.String("role", roleName), zap.Error(err))
		}
	}
	return Result{Outcome: OutcomeOK}
}

// Remove drops the role if held. Removal is never blocked by policy.
func (a *Actuator) Remove(ctx context.Context, member chat.Member, name string) Result {
	result := a.remove(ctx, member, name)
	a.metrics.RoleAction("remove", string(result.Outcome))
	return result
}

func (a *Actuator) remove(ctx context.Context, member chat.Member, name string) Result {
	roleName := strings.ToLower(name)
	guildRoles, err := a.api.GuildRoles(member.GuildID)
	if err != nil {
		a.logger.Warn("guild roles lookup failed", zap.String("guild_id", member.GuildID), zap.Error(err))
		return Result{Outcome: OutcomeFailed, Detail: fmt.Sprintf("Failed to look up roles: %v", err)}
	}

	role, ok := findRole(guildRoles, roleName)
	if !ok {
		return Result{Outcome: OutcomeNotFound, Detail: fmt.Sprintf("Role `%s` not found", roleName)}
	}
	if !member.HasRoleID(role.ID) {
		return Result{Outcome: OutcomeUnchanged, Detail: fmt.Sprintf("**%s** does not have role `%s`", member.Tag, roleName)}
	}
	if err := a.api.RemoveMemberRole(member.GuildID, member.UserID, role.ID); err != nil {
		a.logger.Warn("role remove failed", zap.String("guild_id", member.GuildID), zap.String("user_id", member.UserID), zap.String("role", roleName), zap.Error(err))
		return Result{Outcome: OutcomeFailed, Detail: fmt.Sprintf("Failed to remove role `%s`: %v", roleName, err)}
	}
	if a.policy.isBad(roleName) && a.sticky != nil {
		if err := a.sticky.RemovePersistedRole(ctx, member.GuildID, member.UserID, roleName); err != nil {
			a.logger.Warn("forget sticky role failed", zap.String("user_id", member.UserID), zap.String("role", roleName), zap.Error(err))
		}
	}
	return Result{Outcome: OutcomeOK}
}

func (a *Actuator) Mute(ctx context.Context, member chat.Member) Result {
	return a.Assign(ctx, member, a.mutedRole)
}

func (a *Actuator) Kick(ctx context.Context, member chat.Member, reason string) Result {
	if err := a.api.Kick(member.GuildID, member.UserID, reason); err != nil {
		a.logger.Warn("kick failed", zap.String("guild_id", member.GuildID), zap.String("user_id", member.UserID), zap.Error(err))
		a.metrics.RoleAction("kick", string(OutcomeFailed))
		return Result{Outcome: OutcomeFailed, Detail: fmt.Sprintf("Failed to kick **%s**: %v", member.Tag, err)}
	}
	a.metrics.RoleAction("kick", string(OutcomeOK))
	return Result{Outcome: OutcomeOK}
}

func (a *Actuator) Ban(ctx context.Context, member chat.Member, reason string) Result {
	if err := a.api.Ban(member.GuildID, member.UserID, reason); err != nil {
		a.logger.Warn("ban failed", zap.String("guild_id", member.GuildID), zap.String("user_id", member.UserID), zap.Error(err))
		a.metrics.RoleAction("ban", string(OutcomeFailed))
		return Result{Outcome: OutcomeFailed, Detail: fmt.Sprintf("Failed to ban **%s**: %v", member.Tag, err)}
	}
	a.metrics.RoleAction("ban", string(OutcomeOK))
	return Result{Outcome: OutcomeOK}
}

// EnsureRoles re-applies persisted sticky roles, typically on rejoin.
func (a *Actuator) EnsureRoles(ctx context.Context, member chat.Member) []Result {
	if a.sticky == nil {
		return nil
	}
	names, err := a.sticky.ListPersistedRoles(ctx, member.GuildID, member.UserID)
	if err != nil {
		a.logger.Warn("load sticky roles failed", zap.String("guild_id", member.GuildID), zap.String("user_id", member.UserID), zap.Error(err))
		return nil
	}
	results := make([]Result, 0, len(names))
	for _, name := range names {
		results = append(results, a.Assign(ctx, member, name))
	}
	return results
}

// SyncSticky records bad roles the member holds, so roles granted by hand are
// sticky as well.
func (a *Actuator) SyncSticky(ctx context.Context, member chat.Member) error {
	if a.sticky == nil {
		return nil
	}
	guildRoles, err := a.api.GuildRoles(member.GuildID)
	if err != nil {
		return fmt.Errorf("guild roles: %w", err)
	}
	held := heldNames(member, guildRoles)
	persisted, err := a.sticky.ListPersistedRoles(ctx, member.GuildID, member.UserID)
	if err != nil {
		return fmt.Errorf("list sticky roles: %w", err)
	}
	for _, name := range held {
		if a.policy.isBad(name) && !contains(persisted, name) {
			if err := a.sticky.AddPersistedRole(ctx, member.GuildID, member.UserID, name); err != nil {
				return fmt.Errorf("persist sticky role: %w", err)
			}
		}
	}
	for _, name := range persisted {
		if !contains(held, name) {
			if err := a.sticky.RemovePersistedRole(ctx, member.GuildID, member.UserID, name); err != nil {
				return fmt.Errorf("forget sticky role: %w", err)
			}
		}
	}
	return nil
}

func heldNames(member chat.Member, guildRoles []Role) []string {
	var names []string
	for _, role := range guildRoles {
		if member.HasRoleID(role.ID) {
			names = append(names, strings.ToLower(role.Name))
		}
	}
	return names
}

func findRole(guildRoles []Role, name string) (Role, bool) {
	for _, role := range guildRoles {
		if strings.ToLower(role.Name) == name {
			return role, true
		}
	}
	return Role{}, false
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(v))
	}
	return out
}
