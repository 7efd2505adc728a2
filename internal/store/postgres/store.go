package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const requestColumns = "request_code, job_type, status, created_at, created_by, payload_json"

func validTable(table string) error {
	if _, ok := store.JobTypeForTable(table); !ok {
		return store.ErrUnknownJobType
	}
	return nil
}

func scanRequestRow(row pgx.Row) (store.RequestRow, error) {
	var out store.RequestRow
	var jobTypeNull sql.NullString
	var createdByNull sql.NullString
	if err := row.Scan(&out.RequestCode, &jobTypeNull, &out.Status, &out.CreatedAt, &createdByNull, &out.Payload); err != nil {
		return store.RequestRow{}, err
	}
	if jobTypeNull.Valid {
		out.JobType = jobTypeNull.String
	}
	if createdByNull.Valid {
		out.CreatedBy = createdByNull.String
	}
	return out, nil
}

func (s *Store) ReadOne(ctx context.Context, table, requestCode string) (store.RequestRow, error) {
	if err := validTable(table); err != nil {
		return store.RequestRow{}, err
	}
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE request_code = $1
	`, requestColumns, table), requestCode)
	out, err := scanRequestRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.RequestRow{}, store.ErrRequestNotFound
		}
		return store.RequestRow{}, err
	}
	return out, nil
}

func (s *Store) WriteStatus(ctx context.Context, table, requestCode string, status models.Status) error {
	if err := validTable(table); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $1, updated_at = now() WHERE request_code = $2
	`, table), string(status), requestCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrRequestNotFound
	}
	return nil
}

func (s *Store) ListNewest(ctx context.Context, table string, limit int) ([]store.RequestRow, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM %s ORDER BY created_at DESC LIMIT $1
	`, requestColumns, table), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RequestRow
	for rows.Next() {
		record, err := scanRequestRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRequest inserts the row and reports whether the insert happened.
// On a request-code conflict it returns the existing row with created=false;
// the caller decides whether to retry with a fresh code.
func (s *Store) CreateRequest(ctx context.Context, input store.CreateRequestInput) (store.RequestRow, bool, error) {
	table, err := store.TableFor(input.JobType)
	if err != nil {
		return store.RequestRow{}, false, err
	}
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	payload := input.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (request_code, job_type, status, created_at, created_by, payload_json)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (request_code) DO NOTHING
		RETURNING %s
	`, table, requestColumns), input.RequestCode, string(input.JobType), string(models.StatusRequested), createdAt, input.CreatedBy, payload)

	out, err := scanRequestRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			existing, readErr := s.ReadOne(ctx, table, input.RequestCode)
			if readErr != nil {
				return store.RequestRow{}, false, readErr
			}
			return existing, false, nil
		}
		return store.RequestRow{}, false, err
	}
	return out, true, nil
}

func (s *Store) GetTemplate(ctx context.Context, templateName string) (models.InspectionTemplate, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM qc_templates WHERE template_name = $1)
	`, templateName).Scan(&exists); err != nil {
		return models.InspectionTemplate{}, err
	}
	if !exists {
		return models.InspectionTemplate{}, store.ErrTemplateNotFound
	}

	template := models.InspectionTemplate{TemplateName: templateName}

	rows, err := s.pool.Query(ctx, `
		SELECT category_id, name, sequence
		FROM qc_template_categories
		WHERE template_name = $1
		ORDER BY sequence ASC
	`, templateName)
	if err != nil {
		return models.InspectionTemplate{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var category models.TemplateCategory
		if err := rows.Scan(&category.CategoryID, &category.Name, &category.Sequence); err != nil {
			return models.InspectionTemplate{}, err
		}
		template.Categories = append(template.Categories, category)
	}
	if err := rows.Err(); err != nil {
		return models.InspectionTemplate{}, err
	}

	itemRows, err := s.pool.Query(ctx, `
		SELECT item_id, category_id, name, COALESCE(description, ''), sequence
		FROM qc_template_items
		WHERE template_name = $1
		ORDER BY sequence ASC
	`, templateName)
	if err != nil {
		return models.InspectionTemplate{}, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item models.TemplateItem
		if err := itemRows.Scan(&item.ItemID, &item.CategoryID, &item.Name, &item.Description, &item.Sequence); err != nil {
			return models.InspectionTemplate{}, err
		}
		template.Items = append(template.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return models.InspectionTemplate{}, err
	}
	return template, nil
}

const inspectionColumns = "inspection_id, request_code, template_name, COALESCE(inspector, ''), aggregate_status, completed_at, created_at"

func scanInspection(row pgx.Row) (models.Inspection, error) {
	var inspection models.Inspection
	var completedAtNull sql.NullTime
	if err := row.Scan(&inspection.InspectionID, &inspection.RequestCode, &inspection.TemplateName, &inspection.Inspector, &inspection.AggregateStatus, &completedAtNull, &inspection.CreatedAt); err != nil {
		return models.Inspection{}, err
	}
	if completedAtNull.Valid {
		completed := completedAtNull.Time
		inspection.CompletedAt = &completed
	}
	return inspection, nil
}

func (s *Store) GetInspectionByRequest(ctx context.Context, requestCode string) (models.Inspection, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM qc_inspections WHERE request_code = $1
	`, inspectionColumns), requestCode)
	inspection, err := scanInspection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Inspection{}, store.ErrInspectionNotFound
		}
		return models.Inspection{}, err
	}
	return inspection, nil
}

func (s *Store) GetInspection(ctx context.Context, inspectionID string) (models.Inspection, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM qc_inspections WHERE inspection_id = $1
	`, inspectionColumns), inspectionID)
	inspection, err := scanInspection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Inspection{}, store.ErrInspectionNotFound
		}
		return models.Inspection{}, err
	}
	return inspection, nil
}

// CreateInspection inserts the inspection or, when another open won the
// race on request_code, returns the winning row so the caller continues
// with an inspection that actually exists.
func (s *Store) CreateInspection(ctx context.Context, inspection models.Inspection) (models.Inspection, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO qc_inspections (inspection_id, request_code, template_name, inspector, aggregate_status, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (request_code) DO NOTHING
		RETURNING %s
	`, inspectionColumns), inspection.InspectionID, inspection.RequestCode, inspection.TemplateName, nullIfEmpty(inspection.Inspector), string(inspection.AggregateStatus), inspection.CompletedAt, inspection.CreatedAt)

	created, err := scanInspection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.GetInspectionByRequest(ctx, inspection.RequestCode)
		}
		return models.Inspection{}, err
	}
	return created, nil
}

func (s *Store) ListItems(ctx context.Context, inspectionID string) ([]models.InspectionItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT item_id, inspection_id, checklist_item_id, category_name, name, COALESCE(description, ''), sequence, verdict, COALESCE(comment, '')
		FROM qc_inspection_items
		WHERE inspection_id = $1
		ORDER BY sequence ASC
	`, inspectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.InspectionItem
	for rows.Next() {
		var item models.InspectionItem
		if err := rows.Scan(&item.ItemID, &item.InspectionID, &item.ChecklistItemID, &item.CategoryName, &item.Name, &item.Description, &item.Sequence, &item.Verdict, &item.Comment); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertItems(ctx context.Context, items []models.InspectionItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, item := range items {
		if _, err = tx.Exec(ctx, `
			INSERT INTO qc_inspection_items (item_id, inspection_id, checklist_item_id, category_name, name, description, sequence, verdict, comment)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (inspection_id, checklist_item_id) DO NOTHING
		`, item.ItemID, item.InspectionID, item.ChecklistItemID, item.CategoryName, item.Name, nullIfEmpty(item.Description), item.Sequence, string(item.Verdict), nullIfEmpty(item.Comment)); err != nil {
			return err
		}
	}
	err = tx.Commit(ctx)
	return err
}

func (s *Store) SaveInspection(ctx context.Context, input store.SaveInspectionInput) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var tag pgconn.CommandTag
	tag, err = tx.Exec(ctx, `
		UPDATE qc_inspections
		SET inspector = $1, aggregate_status = $2, completed_at = $3
		WHERE inspection_id = $4
	`, nullIfEmpty(input.Inspector), string(input.AggregateStatus), input.CompletedAt, input.InspectionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = store.ErrInspectionNotFound
		return err
	}

	for _, item := range input.Items {
		if _, err = tx.Exec(ctx, `
			UPDATE qc_inspection_items
			SET verdict = $1, comment = $2
			WHERE item_id = $3 AND inspection_id = $4
		`, string(item.Verdict), nullIfEmpty(item.Comment), item.ItemID, input.InspectionID); err != nil {
			return err
		}
	}
	err = tx.Commit(ctx)
	return err
}

func (s *Store) ListDeliveryNotes(ctx context.Context, requestCode string, jobType models.JobType) ([]models.DeliveryNote, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT note_id, request_code, job_type, delivered_at, COALESCE(carrier, ''), COALESCE(recipient, ''), COALESCE(note, ''), created_at
		FROM delivery_notes
		WHERE request_code = $1 AND job_type = $2
		ORDER BY delivered_at DESC
	`, requestCode, string(jobType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []models.DeliveryNote
	for rows.Next() {
		var note models.DeliveryNote
		if err := rows.Scan(&note.NoteID, &note.RequestCode, &note.JobType, &note.DeliveredAt, &note.Carrier, &note.Recipient, &note.Note, &note.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *Store) AddDeliveryNote(ctx context.Context, note models.DeliveryNote) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_notes (note_id, request_code, job_type, delivered_at, carrier, recipient, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, note.NoteID, note.RequestCode, string(note.JobType), note.DeliveredAt, nullIfEmpty(note.Carrier), nullIfEmpty(note.Recipient), nullIfEmpty(note.Note), note.CreatedAt)
	return err
}

func (s *Store) DeleteDeliveryNote(ctx context.Context, noteID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM delivery_notes WHERE note_id = $1`, noteID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDeliveryNotFound
	}
	return nil
}

func (s *Store) ListWorkHours(ctx context.Context, requestCode string, jobType models.JobType) ([]models.WorkHourEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entry_id, request_code, job_type, worker, hours, worked_on, COALESCE(note, ''), created_at
		FROM work_hour_entries
		WHERE request_code = $1 AND job_type = $2
		ORDER BY worked_on DESC
	`, requestCode, string(jobType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.WorkHourEntry
	for rows.Next() {
		var entry models.WorkHourEntry
		if err := rows.Scan(&entry.EntryID, &entry.RequestCode, &entry.JobType, &entry.Worker, &entry.Hours, &entry.WorkedOn, &entry.Note, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) AddWorkHours(ctx context.Context, entry models.WorkHourEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO work_hour_entries (entry_id, request_code, job_type, worker, hours, worked_on, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.EntryID, entry.RequestCode, string(entry.JobType), entry.Worker, entry.Hours, entry.WorkedOn, nullIfEmpty(entry.Note), entry.CreatedAt)
	return err
}

func (s *Store) DeleteWorkHours(ctx context.Context, entryID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM work_hour_entries WHERE entry_id = $1`, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrWorkHourNotFound
	}
	return nil
}

func (s *Store) TotalHours(ctx context.Context, requestCode string, jobType models.JobType) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(hours), 0)
		FROM work_hour_entries
		WHERE request_code = $1 AND job_type = $2
	`, requestCode, string(jobType)).Scan(&total)
	return total, err
}

func (s *Store) ListDismissed(ctx context.Context, viewerIdentity string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT request_code FROM notification_dismissals WHERE viewer_identity = $1
	`, viewerIdentity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dismissed := make(map[string]bool)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		dismissed[code] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dismissed, nil
}

func (s *Store) Dismiss(ctx context.Context, viewerIdentity, requestCode string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_dismissals (viewer_identity, request_code, dismissed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (viewer_identity, request_code) DO NOTHING
	`, viewerIdentity, requestCode)
	return err
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	var session models.Session
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, identity, role, expires_at
		FROM sessions
		WHERE session_id = $1 AND expires_at > now()
	`, sessionID)
	if err := row.Scan(&session.SessionID, &session.Identity, &session.Role, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, store.ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return session, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
