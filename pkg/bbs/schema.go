package bbs

import (
	"fmt"
	"strings"
)

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so that
// several board engines can share one Redis server.
//
// Key pattern: bbs:{instance_name}:{entity}:{id}
// Channel pattern: bbs:{instance_name}:{kind}:{id}:messages

// SequenceKey returns the id counter for an entity kind.
// Pattern: bbs:{instance_name}:seq:{entity}
func SequenceKey(instanceName, entity string) string {
	return fmt.Sprintf("bbs:%s:seq:%s", instanceName, entity)
}

// CollectionKey returns the Redis hash holding a collection row.
// Pattern: bbs:{instance_name}:collection:{id}
func CollectionKey(instanceName string, id int64) string {
	return fmt.Sprintf("bbs:%s:collection:%d", instanceName, id)
}

// CollectionConfigKey returns the option hash of a collection.
// Pattern: bbs:{instance_name}:collection:{id}:config
func CollectionConfigKey(instanceName string, id int64) string {
	return fmt.Sprintf("bbs:%s:collection:%d:config", instanceName, id)
}

// CollectionBoardsKey returns the order -> board id hash of a collection.
// Only live boards are indexed.
// Pattern: bbs:{instance_name}:collection:{id}:boards
func CollectionBoardsKey(instanceName string, id int64) string {
	return fmt.Sprintf("bbs:%s:collection:%d:boards", instanceName, id)
}

// CollectionsIndexKey returns the ZSET of live collection ids.
// Pattern: bbs:{instance_name}:collections
func CollectionsIndexKey(instanceName string) string {
	return fmt.Sprintf("bbs:%s:collections", instanceName)
}

// CollectionNamesKey returns the folded name -> collection id hash.
// Pattern: bbs:{instance_name}:collection_names
func CollectionNamesKey(instanceName string) string {
	return fmt.Sprintf("bbs:%s:collection_names", instanceName)
}

// CollectionAbbreviationsKey returns the folded abbreviation -> collection id hash.
// Pattern: bbs:{instance_name}:collection_abbreviations
func CollectionAbbreviationsKey(instanceName string) string {
	return fmt.Sprintf("bbs:%s:collection_abbreviations", instanceName)
}

// BoardKey returns the Redis hash holding a board row.
// Pattern: bbs:{instance_name}:board:{id}
func BoardKey(instanceName string, id int64) string {
	return fmt.Sprintf("bbs:%s:board:%d", instanceName, id)
}

// BoardConfigKey returns the option hash of a board.
// Pattern: bbs:{instance_name}:board:{id}:config
func BoardConfigKey(instanceName string, id int64) string {
	return fmt.Sprintf("bbs:%s:board:%d:config", instanceName, id)
}

// BoardsIndexKey returns the ZSET of live board ids.
// Pattern: bbs:{instance_name}:boards
func BoardsIndexKey(instanceName string) string {
	return fmt.Sprintf("bbs:%s:boards", instanceName)
}

// BoardNamesKey returns the folded name -> board id hash. Board names are
// unique across every collection.
// Pattern: bbs:{instance_name}:board_names
func BoardNamesKey(instanceName string) string {
	return fmt.Sprintf("bbs:%s:board_names", instanceName)
}

// BoardPostsKey returns the ZSET of live post ids scored by insertion sequence.
// Pattern: bbs:{instance_name}:board:{id}:posts
func BoardPostsKey(instanceName string, boardID int64) string {
	return fmt.Sprintf("bbs:%s:board:%d:posts", instanceName, boardID)
}

// BoardPostIDsKey returns the post id ("N" / "N.R") -> post row id hash.
// Removed posts stay indexed so audits can still find them.
// Pattern: bbs:{instance_name}:board:{id}:post_ids
func BoardPostIDsKey(instanceName string, boardID int64) string {
	return fmt.Sprintf("bbs:%s:board:%d:post_ids", instanceName, boardID)
}

// BoardRepliesKey returns the thread number -> highest reply number hash.
// Pattern: bbs:{instance_name}:board:{id}:replies
func BoardRepliesKey(instanceName string, boardID int64) string {
	return fmt.Sprintf("bbs:%s:board:%d:replies", instanceName, boardID)
}

// BoardReadsKey returns the SET of live post ids an account has read on a board.
// Pattern: bbs:{instance_name}:board:{id}:reads:{account_id}
func BoardReadsKey(instanceName string, boardID, accountID int64) string {
	return fmt.Sprintf("bbs:%s:board:%d:reads:%d", instanceName, boardID, accountID)
}

// PostKey returns the Redis hash holding a post row.
// Pattern: bbs:{instance_name}:post:{id}
func PostKey(instanceName string, id int64) string {
	return fmt.Sprintf("bbs:%s:post:%d", instanceName, id)
}

// PostReadersKey returns the SET of account ids that have read a post.
// Pattern: bbs:{instance_name}:post:{id}:readers
func PostReadersKey(instanceName string, id int64) string {
	return fmt.Sprintf("bbs:%s:post:%d:readers", instanceName, id)
}

// OnlineKey returns the id -> identity JSON hash of connected identities.
// Pattern: bbs:{instance_name}:online:{kind}
func OnlineKey(instanceName string, kind IdentityKind) string {
	return fmt.Sprintf("bbs:%s:online:%s", instanceName, kind)
}

// IdentityChannel returns the Pub/Sub channel a connected identity listens on.
// Pattern: bbs:{instance_name}:{kind}:{id}:messages
func IdentityChannel(instanceName string, identity Identity) string {
	return fmt.Sprintf("bbs:%s:%s:%d:messages", instanceName, identity.Kind, identity.ID)
}

// StaffAlertsChannel returns the Pub/Sub channel for administrative alerts.
// Pattern: bbs:{instance_name}:staff_alerts
func StaffAlertsChannel(instanceName string) string {
	return fmt.Sprintf("bbs:%s:staff_alerts", instanceName)
}

// indexField folds a name or abbreviation into its uniqueness index field.
// The empty abbreviation gets a placeholder no letter-only value can collide with.
func indexField(value string) string {
	folded := strings.ToLower(strings.TrimSpace(value))
	if folded == "" {
		return "(none)"
	}
	return folded
}
