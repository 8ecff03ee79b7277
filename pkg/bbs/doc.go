// Package bbs provides the data model and Redis-backed store of the bulletin
// board engine.
//
// # Overview
//
// Collections group boards under a unique name and an optional unique
// abbreviation. Boards hold posts; each root post takes the next number of its
// board and each reply takes the next reply number of its thread, so post ids
// read "12" and "12.4". Boards are addressed as abbreviation + order ("GEN3").
//
// Nothing here checks permissions. The engine (internal/engine) resolves
// identities, evaluates locks and then calls into the Client.
//
// # Concurrency
//
// Every write runs as one optimistic WATCH/MULTI/EXEC transaction. Number
// assignment and uniqueness checks happen inside the transaction, so
// concurrent creators never share a post number, a name or a board order.
//
// # Multi-Instance Support
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so
// several engines can share one Redis server.
//
// # Usage Example
//
//	client, err := bbs.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	col := &bbs.Collection{Name: "General", Abbreviation: "GEN"}
//	if err := client.CreateCollection(ctx, col); err != nil {
//		log.Fatal(err)
//	}
//
//	board := &bbs.Board{CollectionID: col.ID, Name: "Announcements"}
//	if err := client.CreateBoard(ctx, board); err != nil {
//		log.Fatal(err)
//	}
//	// bbs.FormatBoardID(col.Abbreviation, board.Order) == "GEN1"
//
// # Redis Schema
//
// Rows are hashes (see CollectionKey, BoardKey, PostKey). Uniqueness indexes
// are hashes from folded value to row id. Live posts of a board are a ZSET
// scored by insertion sequence; read markers are sets per post and per
// (board, account). Deletions are soft: rows keep Deleted=true and drop out
// of every index.
package bbs
