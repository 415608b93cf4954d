// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"reelshare/internal/models"
	"reelshare/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepository defines interface for JSON document operations
type DocumentRepository interface {
	List(ctx context.Context, collection string, q Query) ([]models.Fields, error)
	Get(ctx context.Context, collection, id string) (models.Fields, error)
	Create(ctx context.Context, collection string, body models.Fields) (models.Fields, error)
	Patch(ctx context.Context, collection, id string, fields models.Fields) (models.Fields, error)
	Delete(ctx context.Context, collection, id string) error
	Increment(ctx context.Context, collection, id, field string, delta int64) (models.Fields, error)
	SetFollow(ctx context.Context, actorID, targetID string, follow bool) (*FollowEdge, error)
}

// FollowEdge holds both user documents after a follow edge change.
type FollowEdge struct {
	Actor   models.Fields `json:"actor"`
	Target  models.Fields `json:"target"`
	Changed bool          `json:"changed"`
}

type documentRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewDocumentRepository creates a new DocumentRepository
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db, logger: observability.NewRepoLogger("documents")}
}

func (r *documentRepository) List(ctx context.Context, collection string, q Query) ([]models.Fields, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "List", collection)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	var rows []models.Document
	if err = r.db.WithContext(ctx).Where("collection = ?", collection).Order("seq asc").Find(&rows).Error; err != nil {
		r.record(ctx, collection, "list", err)
		return nil, models.NewInternalError(err)
	}

	docs := make([]models.Fields, 0, len(rows))
	for i := range rows {
		doc, decodeErr := decodeRow(&rows[i])
		if decodeErr != nil {
			err = decodeErr
			r.record(ctx, collection, "list", err)
			return nil, models.NewInternalError(err)
		}
		docs = append(docs, doc)
	}

	out := q.Apply(docs)
	r.record(ctx, collection, "list", nil)
	r.logger.LogRead(ctx, map[string]interface{}{"collection": collection, "count": len(out)})
	return out, nil
}

func (r *documentRepository) Get(ctx context.Context, collection, id string) (models.Fields, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "Get", collection)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	var row models.Document
	var doc models.Fields
	row, err = findRow(r.db.WithContext(ctx), collection, id, false)
	if err == nil {
		doc, err = decodeRow(&row)
	}
	r.record(ctx, collection, "get", err)
	if err != nil {
		return nil, wrapErr(err)
	}
	return doc, nil
}

func (r *documentRepository) Create(ctx context.Context, collection string, body models.Fields) (models.Fields, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "Create", collection)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	id := body.ID()
	if id == "" {
		err = models.NewValidationError("document id is required")
		return nil, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Document{}).
			Where("collection = ? AND id = ?", collection, id).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return duplicateErr(collection, id)
		}
		row, err := encodeRow(collection, id, body)
		if err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return duplicateErr(collection, id)
			}
			return err
		}
		return nil
	})
	r.record(ctx, collection, "create", err)
	if err != nil {
		return nil, wrapErr(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"collection": collection, "id": id})
	return body, nil
}

func (r *documentRepository) Patch(ctx context.Context, collection, id string, fields models.Fields) (models.Fields, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "Patch", collection)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	if v, ok := fields["id"]; ok && v != id {
		err = models.NewValidationError("id is immutable")
		return nil, err
	}

	var merged models.Fields
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findRow(tx, collection, id, true)
		if err != nil {
			return err
		}
		doc, err := decodeRow(&row)
		if err != nil {
			return err
		}
		maps.Copy(doc, fields)
		doc["id"] = id
		if err := saveRow(tx, &row, doc); err != nil {
			return err
		}
		merged = doc
		return nil
	})
	r.record(ctx, collection, "patch", err)
	if err != nil {
		return nil, wrapErr(err)
	}
	r.logger.LogUpdate(ctx, map[string]interface{}{"collection": collection, "id": id, "fields": slices.Sorted(maps.Keys(fields))})
	return merged, nil
}

func (r *documentRepository) Delete(ctx context.Context, collection, id string) error {
	ctx, span := observability.TraceRepositoryMethod(ctx, "Delete", collection)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	res := r.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).Delete(&models.Document{})
	err = res.Error
	if err == nil && res.RowsAffected == 0 {
		err = models.NewNotFoundError(collection, id)
	}
	r.record(ctx, collection, "delete", err)
	if err != nil {
		return wrapErr(err)
	}
	r.logger.LogDelete(ctx, map[string]interface{}{"collection": collection, "id": id})
	return nil
}

// Increment adds delta to a numeric top-level field under a row lock.
// A missing field counts as zero and the result never drops below zero.
func (r *documentRepository) Increment(ctx context.Context, collection, id, field string, delta int64) (models.Fields, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "Increment", collection)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	if field == "" || field == "id" {
		err = models.NewValidationError("a numeric field other than id is required")
		return nil, err
	}

	var updated models.Fields
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findRow(tx, collection, id, true)
		if err != nil {
			return err
		}
		doc, err := decodeRow(&row)
		if err != nil {
			return err
		}
		current, err := intField(doc, field)
		if err != nil {
			return err
		}
		doc[field] = json.Number(fmt.Sprint(max(current+delta, 0)))
		if err := saveRow(tx, &row, doc); err != nil {
			return err
		}
		updated = doc
		return nil
	})
	r.record(ctx, collection, "increment", err)
	if err != nil {
		return nil, wrapErr(err)
	}
	r.logger.LogUpdate(ctx, map[string]interface{}{"collection": collection, "id": id, "field": field, "delta": delta})
	return updated, nil
}

// SetFollow adds or removes the actor -> target edge on both user documents
// in one transaction. Repeating the same call is a no-op.
func (r *documentRepository) SetFollow(ctx context.Context, actorID, targetID string, follow bool) (*FollowEdge, error) {
	collection := string(models.CollectionUsers)
	ctx, span := observability.TraceRepositoryMethod(ctx, "SetFollow", collection)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	if actorID == targetID {
		err = models.NewValidationError("users cannot follow themselves")
		return nil, err
	}

	edge := &FollowEdge{}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock in id order so two opposite edges cannot deadlock.
		ids := []string{actorID, targetID}
		slices.Sort(ids)
		locked := make(map[string]models.Document, 2)
		for _, id := range ids {
			row, err := findRow(tx, collection, id, true)
			if err != nil {
				return err
			}
			locked[id] = row
		}

		actorRow, targetRow := locked[actorID], locked[targetID]
		actor, err := decodeRow(&actorRow)
		if err != nil {
			return err
		}
		target, err := decodeRow(&targetRow)
		if err != nil {
			return err
		}

		following, changedActor := setMember(stringList(actor["followingIds"]), targetID, follow)
		followers, changedTarget := setMember(stringList(target["followerIds"]), actorID, follow)
		actor["followingIds"] = following
		target["followerIds"] = followers

		if changedActor {
			if err := saveRow(tx, &actorRow, actor); err != nil {
				return err
			}
		}
		if changedTarget {
			if err := saveRow(tx, &targetRow, target); err != nil {
				return err
			}
		}
		edge.Actor, edge.Target = actor, target
		edge.Changed = changedActor || changedTarget
		return nil
	})
	r.record(ctx, collection, "follow", err)
	if err != nil {
		return nil, wrapErr(err)
	}
	r.logger.LogUpdate(ctx, map[string]interface{}{"actor": actorID, "target": targetID, "follow": follow, "changed": edge.Changed})
	return edge, nil
}

func (r *documentRepository) record(ctx context.Context, collection, operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		if models.IsCode(err, models.CodeNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			result = "not_found"
		} else if !models.IsCode(err, models.CodeConflict) && !models.IsCode(err, models.CodeValidation) {
			r.logger.LogError(ctx, err, operation)
		}
	}
	observability.DocumentOperations.WithLabelValues(collection, operation, result).Inc()
}

func findRow(db *gorm.DB, collection, id string, lock bool) (models.Document, error) {
	var row models.Document
	q := db
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Where("collection = ? AND id = ?", collection, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, models.NewNotFoundError(collection, id)
	}
	return row, err
}

func decodeRow(row *models.Document) (models.Fields, error) {
	doc, err := models.DecodeFields([]byte(row.Body))
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", row.Collection, row.ID, err)
	}
	return doc, nil
}

func encodeRow(collection, id string, doc models.Fields) (models.Document, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return models.Document{}, models.NewValidationError(fmt.Sprintf("document is not valid JSON: %v", err))
	}
	return models.Document{Collection: collection, ID: id, Body: string(b)}, nil
}

func saveRow(tx *gorm.DB, row *models.Document, doc models.Fields) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return models.NewValidationError(fmt.Sprintf("document is not valid JSON: %v", err))
	}
	return tx.Model(row).Update("body", string(b)).Error
}

func duplicateErr(collection, id string) error {
	return models.NewConflictError(fmt.Sprintf("%s with ID %s already exists", collection, id))
}

func wrapErr(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewInternalError(err)
}
