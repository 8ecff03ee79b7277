package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/dyluth/bbs/internal/options"
	"github.com/dyluth/bbs/pkg/bbs"
)

func (e *Engine) requireOverride(req *Request) error {
	if !e.access.Override(req.Actor()) {
		return unauthorized("Permission denied.")
	}
	return nil
}

func (e *Engine) collectionResult(ctx context.Context, col *bbs.Collection) (CollectionView, error) {
	n, err := e.store.CountBoards(ctx, col.ID)
	if err != nil {
		return CollectionView{}, err
	}
	return collectionView(col, n), nil
}

func validateAbbreviation(abbreviation string) error {
	if abbreviation != "" && !bbs.AbbreviationPattern.MatchString(abbreviation) {
		return badRequest("Abbreviations must be 1-10 letters, or empty.")
	}
	return nil
}

// confirmed reports whether the validate kwarg names the row being deleted.
func confirmed(req *Request, name string) bool {
	validate, _ := req.String(ArgValidate)
	return strings.EqualFold(strings.TrimSpace(validate), name)
}

func (e *Engine) createCollection(ctx context.Context, req *Request) error {
	if err := e.requireOverride(req); err != nil {
		return err
	}
	name, err := req.required(ArgName)
	if err != nil {
		return err
	}
	if _, ok := req.Kwargs[ArgAbbreviation]; !ok {
		return badRequest("'%s' is required.", ArgAbbreviation)
	}
	abbreviation, _ := req.String(ArgAbbreviation)
	abbreviation = strings.TrimSpace(abbreviation)
	if err := validateAbbreviation(abbreviation); err != nil {
		return err
	}

	col := &bbs.Collection{
		Name:         name,
		Abbreviation: abbreviation,
		Locks:        DefaultCollectionLocks,
		CreatedAt:    e.now(),
	}
	if err := e.store.CreateCollection(ctx, col); err != nil {
		return err
	}

	req.Status = StatusCreated
	req.Message = "Board Collection '" + collectionLabel(col) + "' created."
	req.Results["created"] = collectionView(col, 0)
	e.alert(ctx, req, req.Message)
	e.logEvent("collection_created", req, map[string]interface{}{
		"collection_id": col.ID,
		"name":          col.Name,
		"abbreviation":  col.Abbreviation,
	})
	return nil
}

func (e *Engine) deleteCollection(ctx context.Context, req *Request) error {
	col, err := e.collectionArg(ctx, req)
	if err != nil {
		return err
	}
	if err := e.requireOverride(req); err != nil {
		return err
	}

	boards, err := e.store.DeleteCollection(ctx, col.ID, confirmed(req, col.Name))
	var notEmpty *bbs.NotEmptyError
	if errors.As(err, &notEmpty) {
		return conflict("Board Collection '%s' has %d boards. Supply its exact name to confirm deletion.", collectionLabel(col), notEmpty.Count)
	}
	if err != nil {
		return err
	}
	col.Deleted = true

	req.Message = "Board Collection '" + collectionLabel(col) + "' deleted."
	req.Results["collection"] = collectionView(col, 0)
	e.alert(ctx, req, req.Message)
	e.logEvent("collection_deleted", req, map[string]interface{}{
		"collection_id": col.ID,
		"boards":        boards,
	})
	return nil
}

func (e *Engine) renameCollection(ctx context.Context, req *Request) error {
	col, err := e.collectionArg(ctx, req)
	if err != nil {
		return err
	}
	if !e.access.CollectionAdmin(req.Actor(), col) {
		return unauthorized("Permission denied.")
	}
	name, err := req.required(ArgName)
	if err != nil {
		return err
	}

	old := collectionLabel(col)
	if err := e.store.RenameCollection(ctx, col.ID, name); err != nil {
		return err
	}
	col.Name = name

	view, err := e.collectionResult(ctx, col)
	if err != nil {
		return err
	}
	req.Message = "Board Collection '" + old + "' renamed to '" + collectionLabel(col) + "'."
	req.Results["renamed"] = view
	e.alert(ctx, req, req.Message)
	e.logEvent("collection_renamed", req, map[string]interface{}{"collection_id": col.ID, "name": name})
	return nil
}

func (e *Engine) reabbreviateCollection(ctx context.Context, req *Request) error {
	col, err := e.collectionArg(ctx, req)
	if err != nil {
		return err
	}
	if !e.access.CollectionAdmin(req.Actor(), col) {
		return unauthorized("Permission denied.")
	}
	if _, ok := req.Kwargs[ArgAbbreviation]; !ok {
		return badRequest("'%s' is required.", ArgAbbreviation)
	}
	abbreviation, _ := req.String(ArgAbbreviation)
	abbreviation = strings.TrimSpace(abbreviation)
	if err := validateAbbreviation(abbreviation); err != nil {
		return err
	}

	old := collectionLabel(col)
	if err := e.store.ReabbreviateCollection(ctx, col.ID, abbreviation); err != nil {
		return err
	}
	col.Abbreviation = abbreviation

	view, err := e.collectionResult(ctx, col)
	if err != nil {
		return err
	}
	req.Message = "Board Collection '" + old + "' is now '" + collectionLabel(col) + "'."
	req.Results["abbreviated"] = view
	e.alert(ctx, req, req.Message)
	e.logEvent("collection_reabbreviated", req, map[string]interface{}{"collection_id": col.ID, "abbreviation": abbreviation})
	return nil
}

func (e *Engine) setCollectionLock(ctx context.Context, req *Request) error {
	col, err := e.collectionArg(ctx, req)
	if err != nil {
		return err
	}
	if err := e.requireOverride(req); err != nil {
		return err
	}
	lockstring, err := req.required(ArgLockstring)
	if err != nil {
		return err
	}

	merged, err := e.locks.Add(col.Locks, lockstring)
	if err != nil {
		return badRequest("Invalid lock string: %v", err)
	}
	if err := e.store.SetCollectionLocks(ctx, col.ID, merged); err != nil {
		return err
	}
	col.Locks = merged

	view, err := e.collectionResult(ctx, col)
	if err != nil {
		return err
	}
	req.Message = "Board Collection '" + collectionLabel(col) + "' locks set to: " + merged
	req.Results["locked"] = view
	e.alert(ctx, req, req.Message)
	e.logEvent("collection_locked", req, map[string]interface{}{"collection_id": col.ID, "locks": merged})
	return nil
}

func (e *Engine) listCollectionConfig(ctx context.Context, req *Request) error {
	col, err := e.collectionArg(ctx, req)
	if err != nil {
		return err
	}
	if !e.access.CollectionAdmin(req.Actor(), col) {
		return unauthorized("Permission denied.")
	}

	req.Results["collection"] = collectionView(col, 0)
	req.Results["config"] = ConfigView(e.collectionOptions.List(col.Config))
	return nil
}

func (e *Engine) setCollectionConfig(ctx context.Context, req *Request) error {
	col, err := e.collectionArg(ctx, req)
	if err != nil {
		return err
	}
	if !e.access.CollectionAdmin(req.Actor(), col) {
		return unauthorized("Permission denied.")
	}

	key, value, err := coerceOption(e.collectionOptions, req)
	if err != nil {
		return err
	}
	if err := e.store.SetCollectionOption(ctx, col.ID, key, value); err != nil {
		return err
	}
	col.Config[key] = value

	req.Message = "Board Collection '" + collectionLabel(col) + "' option '" + key + "' set to '" + value + "'."
	req.Results["config"] = ConfigView(e.collectionOptions.List(col.Config))
	e.alert(ctx, req, req.Message)
	e.logEvent("collection_configured", req, map[string]interface{}{"collection_id": col.ID, "key": key, "value": value})
	return nil
}

func (e *Engine) listCollections(ctx context.Context, req *Request) error {
	if err := e.requireOverride(req); err != nil {
		return err
	}

	cols, err := e.store.ListCollections(ctx)
	if err != nil {
		return err
	}
	views := make([]CollectionView, 0, len(cols))
	for _, col := range cols {
		view, err := e.collectionResult(ctx, col)
		if err != nil {
			return err
		}
		views = append(views, view)
	}
	req.Results["collections"] = views
	return nil
}

// coerceOption reads key/value arguments and validates them against table.
func coerceOption(table *options.Table, req *Request) (string, string, error) {
	key, err := req.required(ArgKey)
	if err != nil {
		return "", "", err
	}
	raw, ok := req.String(ArgValue)
	if !ok {
		return "", "", badRequest("'%s' is required.", ArgValue)
	}

	option, value, err := table.Coerce(key, raw)
	if errors.Is(err, options.ErrUnknownOption) {
		return "", "", badRequest("Unknown option '%s'.", key)
	}
	if err != nil {
		return "", "", badRequest("%v", err)
	}
	return option, value, nil
}
