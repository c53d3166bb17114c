package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// PostgresProfileDao implements ProfileRepository on a PostgreSQL table:
//
//	CREATE TABLE profiles (
//	    id         TEXT PRIMARY KEY,
//	    data       JSONB NOT NULL,
//	    version    BIGINT NOT NULL DEFAULT 0,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresProfileDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

func (dao *PostgresProfileDao) GetProfile(ctx context.Context, id string, out interface{}) error {
	query := `
		SELECT data
		FROM profiles
		WHERE id = $1
	`

	var raw []byte
	err := dao.DB.QueryRowContext(ctx, query, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProfileNotFound
		}
		dao.Logger.WithFields(logrus.Fields{
			"operation": "GetProfile",
			"id":        id,
			"error":     err.Error(),
		}).Error("Failed to get profile")
		return fmt.Errorf("failed to get profile %s: %w", id, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode profile %s: %w", id, err)
	}
	return nil
}

func (dao *PostgresProfileDao) PutProfile(ctx context.Context, id string, item interface{}) error {
	raw, err := encodeProfile(id, item)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO profiles (id, data)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = now()
	`

	if _, err := dao.DB.ExecContext(ctx, query, id, raw); err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation": "PutProfile",
			"id":        id,
			"error":     err.Error(),
		}).Error("Failed to put profile")
		return fmt.Errorf("failed to put profile %s: %w", id, err)
	}
	return nil
}

func (dao *PostgresProfileDao) PutProfileIfVersion(ctx context.Context, id string, item interface{}, expectedVersion int64) error {
	raw, err := encodeProfile(id, item)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO profiles (id, data, version)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data, version = EXCLUDED.version, updated_at = now()
		WHERE profiles.version = $4
	`

	result, err := dao.DB.ExecContext(ctx, query, id, raw, expectedVersion+1, expectedVersion)
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation": "PutProfileIfVersion",
			"id":        id,
			"error":     err.Error(),
		}).Error("Failed to put profile")
		return fmt.Errorf("failed to put profile %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to put profile %s: %w", id, err)
	}
	if rows == 0 {
		dao.Logger.WithFields(logrus.Fields{
			"operation":        "PutProfileIfVersion",
			"id":               id,
			"expected_version": expectedVersion,
		}).Warn("Profile version changed since it was read")
		return ErrProfileConflict
	}
	return nil
}

// encodeProfile marshals item and stamps the id into the document.
func encodeProfile(id string, item interface{}) ([]byte, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile %s: %w", id, err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("profile %s is not a JSON object: %w", id, err)
	}
	doc["id"] = id
	return json.Marshal(doc)
}
