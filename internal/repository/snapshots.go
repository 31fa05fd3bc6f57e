package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cleanplan-dev/cleaning-planner/backend/internal/domain"
)

// decodeSnapshot 把存储中的快照解码成当前结构。以后快照结构升级时，
// 旧版本的迁移逻辑加在这里，存储里的历史数据不用改写。
func decodeSnapshot(data []byte, schemaVersion int32) (*domain.Snapshot, error) {
	switch schemaVersion {
	case domain.SnapshotSchemaVersion:
		snapshot := &domain.Snapshot{}
		if err := json.Unmarshal(data, snapshot); err != nil {
			return nil, err
		}
		return snapshot, nil
	default:
		return nil, fmt.Errorf("未知的快照结构版本 %d", schemaVersion)
	}
}

func (r *Repository) GetCurrent(workDate string) (*domain.CurrentSnapshot, error) {
	query := `
		SELECT snapshot, schema_version, last_revision, author, updated_at
		FROM snapshot_currents WHERE work_date = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	current := &domain.CurrentSnapshot{
		WorkDate: workDate,
	}

	var data []byte
	var schemaVersion int32
	dst := []any{&data, &schemaVersion, &current.LastRevision, &current.Author, &current.UpdatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, workDate).Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: 工作日 %s 还没有任何快照", domain.ErrNotFound, workDate)
		}
		return nil, err
	}

	snapshot, err := decodeSnapshot(data, schemaVersion)
	if err != nil {
		return nil, err
	}
	current.Snapshot = snapshot

	return current, nil
}

// CreateRevision 是唯一的写入口：在同一个事务里更新当前投影并追加一条历史修订。
// 当前投影的更新带着 last_revision 的 compare-and-swap，修订号对不上时返回
// domain.ErrConflict 并且什么都不写。expectedLastRevision 为 0 表示这个工作日
// 还没有任何快照，本次写入的是修订 1。
func (r *Repository) CreateRevision(workDate string, snapshot *domain.Snapshot, author string, modType domain.ModType, editDetail *domain.EditDetail, expectedLastRevision int64) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	number, err := r.createRevisionTx(ctx, tx, workDate, snapshot, author, modType, editDetail, expectedLastRevision)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return number, nil
}

func (r *Repository) createRevisionTx(ctx context.Context, tx *sql.Tx, workDate string, snapshot *domain.Snapshot, author string, modType domain.ModType, editDetail *domain.EditDetail, expectedLastRevision int64) (int64, error) {
	// 持久化边界上的最后一次不变量检查，坏快照绝不落盘
	if err := snapshot.Validate(); err != nil {
		return 0, err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return 0, err
	}

	number := expectedLastRevision + 1

	if expectedLastRevision == 0 {
		query := `
			INSERT INTO snapshot_currents (work_date, snapshot, schema_version, last_revision, author)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.ExecContext(ctx, query, workDate, data, snapshot.SchemaVersion, number, author); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.ConstraintName == "snapshot_currents_pkey" {
				return 0, fmt.Errorf("%w: 工作日 %s 的快照已经被别人创建了", domain.ErrConflict, workDate)
			}
			return 0, err
		}
	} else {
		query := `
			UPDATE snapshot_currents
			SET snapshot = $1, schema_version = $2, last_revision = $3, author = $4, updated_at = NOW()
			WHERE work_date = $5 AND last_revision = $6
		`
		res, err := tx.ExecContext(ctx, query, data, snapshot.SchemaVersion, number, author, workDate, expectedLastRevision)
		if err != nil {
			return 0, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if affected == 0 {
			return 0, fmt.Errorf("%w: 工作日 %s 的当前修订已经不是 %d", domain.ErrConflict, workDate, expectedLastRevision)
		}
	}

	query := `
		INSERT INTO snapshot_revisions (work_date, revision, snapshot, schema_version, author, mod_type, edited_field, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var editedField, oldValue, newValue *string
	if editDetail != nil {
		editedField = &editDetail.EditedField
		oldValue = &editDetail.OldValue
		newValue = &editDetail.NewValue
	}
	args := []any{workDate, number, data, snapshot.SchemaVersion, author, modType, editedField, oldValue, newValue}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, err
	}

	return number, nil
}

// ConfirmAssignments 在一个事务里记一条内容不变的修订，并落一份确认导出。
// 之前的确认导出会被替换掉。
func (r *Repository) ConfirmAssignments(workDate string, snapshot *domain.Snapshot, author string, expectedLastRevision int64) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	number, err := r.createRevisionTx(ctx, tx, workDate, snapshot, author, domain.ModTypeConfirm, nil, expectedLastRevision)
	if err != nil {
		return 0, err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return 0, err
	}

	// 先删掉旧的确认导出再插入新的
	if _, err := tx.ExecContext(ctx, `DELETE FROM confirmed_exports WHERE work_date = $1`, workDate); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO confirmed_exports (work_date, revision, snapshot, schema_version, author)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.ExecContext(ctx, query, workDate, number, data, snapshot.SchemaVersion, author); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return number, nil
}

func (r *Repository) GetConfirmedExport(workDate string) (*domain.ConfirmedExport, error) {
	query := `
		SELECT revision, snapshot, schema_version, author, created_at
		FROM confirmed_exports WHERE work_date = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	export := &domain.ConfirmedExport{
		WorkDate: workDate,
	}

	var data []byte
	var schemaVersion int32
	dst := []any{&export.Revision, &data, &schemaVersion, &export.Author, &export.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, workDate).Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: 工作日 %s 还没有确认导出", domain.ErrNotFound, workDate)
		}
		return nil, err
	}

	snapshot, err := decodeSnapshot(data, schemaVersion)
	if err != nil {
		return nil, err
	}
	export.Snapshot = snapshot

	return export, nil
}

// GetAllRevisions 返回某个工作日的全部历史修订，新的在前
func (r *Repository) GetAllRevisions(workDate string) ([]*domain.Revision, error) {
	query := `
		SELECT revision, snapshot, schema_version, author, mod_type, edited_field, old_value, new_value, created_at
		FROM snapshot_revisions
		WHERE work_date = $1
		ORDER BY revision DESC
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, workDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	revisions := []*domain.Revision{}
	for rows.Next() {
		revision := &domain.Revision{
			WorkDate: workDate,
		}

		var data []byte
		var schemaVersion int32
		var editedField, oldValue, newValue sql.NullString
		dst := []any{&revision.Number, &data, &schemaVersion, &revision.Author, &revision.ModType, &editedField, &oldValue, &newValue, &revision.CreatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		snapshot, err := decodeSnapshot(data, schemaVersion)
		if err != nil {
			return nil, err
		}
		revision.Snapshot = snapshot

		if editedField.Valid {
			revision.EditDetail = &domain.EditDetail{
				EditedField: editedField.String,
				OldValue:    oldValue.String,
				NewValue:    newValue.String,
			}
		}

		revisions = append(revisions, revision)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return revisions, nil
}

func (r *Repository) GetRevisionByNumber(workDate string, number int64) (*domain.Revision, error) {
	query := `
		SELECT snapshot, schema_version, author, mod_type, edited_field, old_value, new_value, created_at
		FROM snapshot_revisions
		WHERE work_date = $1 AND revision = $2
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	revision := &domain.Revision{
		WorkDate: workDate,
		Number:   number,
	}

	var data []byte
	var schemaVersion int32
	var editedField, oldValue, newValue sql.NullString
	dst := []any{&data, &schemaVersion, &revision.Author, &revision.ModType, &editedField, &oldValue, &newValue, &revision.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, workDate, number).Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: 工作日 %s 不存在修订 %d", domain.ErrNotFound, workDate, number)
		}
		return nil, err
	}

	snapshot, err := decodeSnapshot(data, schemaVersion)
	if err != nil {
		return nil, err
	}
	revision.Snapshot = snapshot

	if editedField.Valid {
		revision.EditDetail = &domain.EditDetail{
			EditedField: editedField.String,
			OldValue:    oldValue.String,
			NewValue:    newValue.String,
		}
	}

	return revision, nil
}

// DeleteOldRevisions 只保留最近的 keepLast 条历史修订，当前投影不受影响
func (r *Repository) DeleteOldRevisions(workDate string, keepLast int) error {
	query := `
		DELETE FROM snapshot_revisions
		WHERE work_date = $1
		AND revision <= (SELECT MAX(revision) - $2 FROM snapshot_revisions WHERE work_date = $1)
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, workDate, keepLast); err != nil {
		return err
	}

	return nil
}

// DeleteAllForDate 彻底清掉一个工作日的当前投影、全部历史和确认导出
func (r *Repository) DeleteAllForDate(workDate string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, query := range []string{
		`DELETE FROM snapshot_revisions WHERE work_date = $1`,
		`DELETE FROM confirmed_exports WHERE work_date = $1`,
		`DELETE FROM snapshot_currents WHERE work_date = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, workDate); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}
