package bbs

import (
	"fmt"
	"strconv"
	"time"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores rows as string-to-string maps. Timestamps are stored as Unix
// milliseconds and booleans as "1"/"0". Option maps live in their own hash
// (see CollectionConfigKey / BoardConfigKey) so single options can be written
// without a read-modify-write.

// CollectionToHash converts a Collection to its Redis hash form.
func CollectionToHash(c *Collection) map[string]interface{} {
	return map[string]interface{}{
		"id":            c.ID,
		"name":          c.Name,
		"abbreviation":  c.Abbreviation,
		"locks":         c.Locks,
		"deleted":       boolField(c.Deleted),
		"created_at_ms": c.CreatedAt.UnixMilli(),
	}
}

// HashToCollection converts a Redis hash back to a Collection.
// Config is loaded separately.
func HashToCollection(hash map[string]string) (*Collection, error) {
	id, err := strconv.ParseInt(hash["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid id field: %w", err)
	}

	return &Collection{
		ID:           id,
		Name:         hash["name"],
		Abbreviation: hash["abbreviation"],
		Locks:        hash["locks"],
		Deleted:      hash["deleted"] == "1",
		CreatedAt:    msField(hash["created_at_ms"]),
		Config:       map[string]string{},
	}, nil
}

// BoardToHash converts a Board to its Redis hash form.
func BoardToHash(b *Board) map[string]interface{} {
	return map[string]interface{}{
		"id":               b.ID,
		"collection_id":    b.CollectionID,
		"name":             b.Name,
		"order":            b.Order,
		"next_post_number": b.NextPostNumber,
		"last_activity_ms": b.LastActivity.UnixMilli(),
		"locks":            b.Locks,
		"deleted":          boolField(b.Deleted),
		"created_at_ms":    b.CreatedAt.UnixMilli(),
	}
}

// HashToBoard converts a Redis hash back to a Board.
func HashToBoard(hash map[string]string) (*Board, error) {
	id, err := strconv.ParseInt(hash["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid id field: %w", err)
	}
	collectionID, err := strconv.ParseInt(hash["collection_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid collection_id field: %w", err)
	}
	order, err := strconv.Atoi(hash["order"])
	if err != nil {
		return nil, fmt.Errorf("invalid order field: %w", err)
	}
	next, err := strconv.Atoi(hash["next_post_number"])
	if err != nil {
		return nil, fmt.Errorf("invalid next_post_number field: %w", err)
	}

	return &Board{
		ID:             id,
		CollectionID:   collectionID,
		Name:           hash["name"],
		Order:          order,
		NextPostNumber: next,
		LastActivity:   msField(hash["last_activity_ms"]),
		Locks:          hash["locks"],
		Deleted:        hash["deleted"] == "1",
		CreatedAt:      msField(hash["created_at_ms"]),
		Config:         map[string]string{},
	}, nil
}

// PostToHash converts a Post to its Redis hash form.
func PostToHash(p *Post) map[string]interface{} {
	return map[string]interface{}{
		"id":             p.ID,
		"board_id":       p.BoardID,
		"number":         p.Number,
		"reply_number":   p.ReplyNumber,
		"subject":        p.Subject,
		"body":           p.Body,
		"account_id":     p.AccountID,
		"account_name":   p.AccountName,
		"persona_id":     p.PersonaID,
		"persona_name":   p.PersonaName,
		"disguise":       p.Disguise,
		"created_at_ms":  p.CreatedAt.UnixMilli(),
		"modified_at_ms": p.ModifiedAt.UnixMilli(),
		"deleted":        boolField(p.Deleted),
		"seq":            p.Seq,
	}
}

// HashToPost converts a Redis hash back to a Post.
func HashToPost(hash map[string]string) (*Post, error) {
	ints := make(map[string]int64, 6)
	for _, field := range []string{"id", "board_id", "number", "reply_number", "account_id", "seq"} {
		v, err := strconv.ParseInt(hash[field], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", field, err)
		}
		ints[field] = v
	}
	personaID, _ := strconv.ParseInt(hash["persona_id"], 10, 64)

	return &Post{
		ID:          ints["id"],
		BoardID:     ints["board_id"],
		Number:      int(ints["number"]),
		ReplyNumber: int(ints["reply_number"]),
		Subject:     hash["subject"],
		Body:        hash["body"],
		AccountID:   ints["account_id"],
		AccountName: hash["account_name"],
		PersonaID:   personaID,
		PersonaName: hash["persona_name"],
		Disguise:    hash["disguise"],
		CreatedAt:   msField(hash["created_at_ms"]),
		ModifiedAt:  msField(hash["modified_at_ms"]),
		Deleted:     hash["deleted"] == "1",
		Seq:         ints["seq"],
	}, nil
}

// configToHash widens an option map for HSET.
func configToHash(config map[string]string) map[string]interface{} {
	hash := make(map[string]interface{}, len(config))
	for k, v := range config {
		hash[k] = v
	}
	return hash
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func msField(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
