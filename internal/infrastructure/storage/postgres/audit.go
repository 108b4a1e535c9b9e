package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "docflow/internal/core/context"
	"docflow/internal/core/id"
	"docflow/internal/domain/audit"
)

// Compression of the stored changes column.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// DefaultCompressThreshold is the size above which changes are compressed.
const DefaultCompressThreshold = 10 * 1024

// AuditEntry is one row of sys_audit.
type AuditEntry struct {
	ID                id.ID           `db:"id" json:"id"`
	EntityType        string          `db:"entity_type" json:"entityType"`
	EntityID          id.ID           `db:"entity_id" json:"entityId"`
	Action            audit.Action    `db:"action" json:"action"`
	UserID            string          `db:"user_id" json:"userId,omitempty"`
	UserEmail         string          `db:"user_email" json:"userEmail,omitempty"`
	Changes           json.RawMessage `db:"changes" json:"changes,omitempty"`
	ChangesCompressed []byte          `db:"changes_compressed" json:"-"`
	CompressionAlgo   string          `db:"compression_algo" json:"-"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// AuditService writes the audit trail in the caller's transaction.
type AuditService struct {
	txManager *TxManager
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

var _ audit.Recorder = (*AuditService)(nil)

// NewAuditService creates an audit service compressing changes above
// DefaultCompressThreshold.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditService{txManager: txManager, encoder: enc, decoder: dec, threshold: DefaultCompressThreshold}, nil
}

// LogChange implements audit.Recorder. The actor is taken from ctx.
func (s *AuditService) LogChange(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	raw, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	entry := AuditEntry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    raw,
		CreatedAt:  time.Now().UTC(),
	}
	if actor := appctx.GetActor(ctx); actor != nil {
		entry.UserID = actor.UserID
		entry.UserEmail = actor.Email
	}
	return s.insert(ctx, entry)
}

func (s *AuditService) pack(entry *AuditEntry) {
	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) <= s.threshold {
		return
	}
	entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
	entry.Changes = nil
	entry.CompressionAlgo = CompressionZstd
}

func (s *AuditService) unpack(entry *AuditEntry) error {
	if entry.CompressionAlgo != CompressionZstd || len(entry.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := s.decoder.DecodeAll(entry.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	entry.Changes = raw
	entry.ChangesCompressed = nil
	return nil
}

func (s *AuditService) insert(ctx context.Context, entry AuditEntry) error {
	s.pack(&entry)
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id, user_email,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.UserID, entry.UserEmail,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the latest entries of an entity, newest first.
func (s *AuditService) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, entity_type, entity_id, action, user_id, user_email,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID, &e.UserEmail,
			&e.Changes, &e.ChangesCompressed, &e.CompressionAlgo, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := s.unpack(&e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
