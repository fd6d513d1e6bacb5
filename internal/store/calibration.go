package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/eyetrack/internal/geom"
)

// Calibration is a finished calibration run with its screen points.
type Calibration struct {
	ID        string         `json:"id"`
	Valid     bool           `json:"valid"`
	Points    []geom.Point2D `json:"points"`
	CreatedAt time.Time      `json:"created_at"`
}

// CalibrationRepository provides access to calibration runs.
type CalibrationRepository struct {
	db *sql.DB
}

// Calibrations returns the calibration repository for this store.
func (s *Store) Calibrations() *CalibrationRepository {
	return &CalibrationRepository{db: s.db}
}

// Create stores a run and its points atomically. An empty ID is replaced with
// a new UUID.
func (r *CalibrationRepository) Create(c *Calibration) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO calibration_sessions (id, valid, point_count, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Valid, len(c.Points), c.CreatedAt,
	); err != nil {
		return fmt.Errorf("create calibration: %w", err)
	}

	for i, p := range c.Points {
		if _, err := tx.Exec(
			`INSERT INTO calibration_points (calibration_id, sequence, x, y) VALUES (?, ?, ?, ?)`,
			c.ID, i, p.X, p.Y,
		); err != nil {
			return fmt.Errorf("insert calibration point %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves a run with its points.
func (r *CalibrationRepository) GetByID(id string) (*Calibration, error) {
	c := &Calibration{}
	err := r.db.QueryRow(
		`SELECT id, valid, created_at FROM calibration_sessions WHERE id = ?`, id,
	).Scan(&c.ID, &c.Valid, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if c.Points, err = r.points(id); err != nil {
		return nil, err
	}
	return c, nil
}

// Latest returns the most recent valid run.
func (r *CalibrationRepository) Latest() (*Calibration, error) {
	var id string
	err := r.db.QueryRow(
		`SELECT id FROM calibration_sessions WHERE valid = 1 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r.GetByID(id)
}

func (r *CalibrationRepository) points(id string) ([]geom.Point2D, error) {
	rows, err := r.db.Query(
		`SELECT x, y FROM calibration_points WHERE calibration_id = ? ORDER BY sequence`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []geom.Point2D{}
	for rows.Next() {
		var p geom.Point2D
		if err := rows.Scan(&p.X, &p.Y); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
