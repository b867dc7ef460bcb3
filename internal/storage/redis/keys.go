package redis

import (
	"fmt"

	"github.com/mcoot/memorymatch/internal/model"
)

// Key prefix for all memorymatch data
const keyPrefix = "mmatch"

// accountKey returns the Redis key for an account HASH
func accountKey(id model.AccountID) string {
	return fmt.Sprintf("%s:account:%d", keyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> account id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// accountSeqKey returns the counter used to allocate account ids
func accountSeqKey() string {
	return fmt.Sprintf("%s:seq:account", keyPrefix)
}

// matchKey returns the Redis key for a match record
func matchKey(id int64) string {
	return fmt.Sprintf("%s:match:%d", keyPrefix, id)
}

// matchSeqKey returns the counter used to allocate match ids
func matchSeqKey() string {
	return fmt.Sprintf("%s:seq:match", keyPrefix)
}

// matchesForAccountKey returns the LIST of match ids for an account, newest first
func matchesForAccountKey(id model.AccountID) string {
	return fmt.Sprintf("%s:idx:matches_for_account:%d", keyPrefix, id)
}

// leaderboardKey returns the ZSET ranking non-banned accounts
func leaderboardKey() string {
	return fmt.Sprintf("%s:leaderboard", keyPrefix)
}
