package admission

import (
	"context"
	"fmt"
	"time"
	"tunedetect/pkg/logger"
	"tunedetect/pkg/model"
	"tunedetect/pkg/resilience"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MemberStatus is a user's standing in a group or channel
type MemberStatus string

const (
	StatusMember  MemberStatus = "member"
	StatusAdmin   MemberStatus = "admin"
	StatusOwner   MemberStatus = "owner"
	StatusLeft    MemberStatus = "left"
	StatusBanned  MemberStatus = "banned"
	StatusUnknown MemberStatus = "unknown"
)

// Granted reports whether the status counts as membership
func (s MemberStatus) Granted() bool {
	switch s {
	case StatusMember, StatusAdmin, StatusOwner:
		return true
	}
	return false
}

// MembershipQuerier asks the chat platform about a user's standing in a chat
type MembershipQuerier interface {
	MembershipStatus(ctx context.Context, chatID, userID int64) (MemberStatus, error)
}

// MembershipResult is transient and never stored
type MembershipResult struct {
	IsGroupMember   bool
	IsChannelMember bool
}

func (r MembershipResult) Allowed() bool {
	return r.IsGroupMember && r.IsChannelMember
}

type MembershipGate struct {
	querier   MembershipQuerier
	groupID   int64
	channelID int64
	timeout   time.Duration
}

func NewMembershipGate(querier MembershipQuerier, groupID, channelID int64, timeout time.Duration) *MembershipGate {
	return &MembershipGate{
		querier:   querier,
		groupID:   groupID,
		channelID: channelID,
		timeout:   timeout,
	}
}

// Check queries group and channel membership concurrently. Any query error or
// timeout yields model.ErrMembershipUnavailable; access is never granted on error.
func (g *MembershipGate) Check(ctx context.Context, userID int64) (MembershipResult, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var result MembershipResult
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(resilience.Guard(func() error {
		status, err := g.querier.MembershipStatus(egCtx, g.groupID, userID)
		if err != nil {
			return fmt.Errorf("group %d: %w", g.groupID, err)
		}
		result.IsGroupMember = status.Granted()
		return nil
	}))
	eg.Go(resilience.Guard(func() error {
		status, err := g.querier.MembershipStatus(egCtx, g.channelID, userID)
		if err != nil {
			return fmt.Errorf("channel %d: %w", g.channelID, err)
		}
		result.IsChannelMember = status.Granted()
		return nil
	}))

	if err := eg.Wait(); err != nil {
		logger.Warn("Membership check failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return MembershipResult{}, fmt.Errorf("%w: %w", model.ErrMembershipUnavailable, err)
	}

	logger.Debug("Membership checked",
		zap.Int64("user_id", userID),
		zap.Bool("group", result.IsGroupMember),
		zap.Bool("channel", result.IsChannelMember))

	return result, nil
}

// CheckMembership is the boolean form of Check: errors deny
func (g *MembershipGate) CheckMembership(ctx context.Context, userID int64) (bool, error) {
	result, err := g.Check(ctx, userID)
	if err != nil {
		return false, err
	}
	return result.Allowed(), nil
}
