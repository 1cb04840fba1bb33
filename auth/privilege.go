package auth

import (
	"github.com/liamw1/oxibooru/common"
	"github.com/liamw1/oxibooru/config"
)

// HasPrivilege reports whether rank meets or exceeds the minimum rank
// configured for privilege. common.Rank is itself the total order
// anonymous < restricted < regular < power < moderator < administrator
// (spec.md §3, §4.H), so the check is a direct comparison once the
// configured rank name is parsed; common.ParseRank already fails
// unknown names safe to administrator.
func HasPrivilege(conf *config.Config, rank common.Rank, privilege string) bool {
	required := common.ParseRank(conf.RankFor(privilege))
	return rank >= required
}

// CheckOwnership resolves a self/any privilege pair (spec.md §4.H:
// "special-case keys distinguishing self vs any on operations that
// touch a user-owned resource"). It tries the any-variant first (e.g.
// "comment_edit_any"); failing that, the self-variant is granted only
// when callerID owns the resource.
func CheckOwnership(conf *config.Config, rank common.Rank, selfPrivilege, anyPrivilege string, callerID, ownerID int64) bool {
	if HasPrivilege(conf, rank, anyPrivilege) {
		return true
	}
	return callerID == ownerID && HasPrivilege(conf, rank, selfPrivilege)
}
