package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"slope-monitor-backend/internal/model"
)

// ErrNotFound is returned by point reads and updates on a missing record.
var ErrNotFound = errors.New("store: record not found")

// Store defines the interface for all database operations.
type Store interface {
	QueryReadings(ctx context.Context, q ReadingQuery) ([]model.SensorReading, error)
	LatestReading(ctx context.Context, deviceID string) (model.SensorReading, error)
	DistinctDeviceIDs(ctx context.Context) ([]string, error)

	QueryAlerts(ctx context.Context, q AlertQuery) ([]model.Alert, error)
	UpdateAlert(ctx context.Context, id string, fields map[string]any) error

	GetThresholds(ctx context.Context, deviceID string) (model.Thresholds, error)
	SetThresholds(ctx context.Context, t model.Thresholds) error

	FindUserByEmail(ctx context.Context, email string) (model.User, error)
	UpsertUser(ctx context.Context, u model.User) error

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: time.Now}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

// QueryReadings returns the newest readings first.
func (s *gormStore) QueryReadings(ctx context.Context, q ReadingQuery) ([]model.SensorReading, error) {
	tx := s.db.WithContext(ctx).Where("device_id = ?", q.DeviceID)
	if !q.Since.IsZero() {
		tx = tx.Where(clause.Gte{Column: clause.Column{Name: "timestamp"}, Value: q.Since.UTC()})
	}
	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true})
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var readings []model.SensorReading
	if err := tx.Find(&readings).Error; err != nil {
		return nil, fmt.Errorf("query readings for device %q: %w", q.DeviceID, err)
	}
	return readings, nil
}

func (s *gormStore) LatestReading(ctx context.Context, deviceID string) (model.SensorReading, error) {
	var reading model.SensorReading
	err := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Take(&reading).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.SensorReading{}, ErrNotFound
	}
	if err != nil {
		return model.SensorReading{}, fmt.Errorf("latest reading for device %q: %w", deviceID, err)
	}
	return reading, nil
}

// DistinctDeviceIDs returns every device id seen in the readings, sorted.
func (s *gormStore) DistinctDeviceIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&model.SensorReading{}).
		Distinct().
		Pluck("device_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("distinct device ids: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// QueryAlerts returns the newest alerts first.
func (s *gormStore) QueryAlerts(ctx context.Context, q AlertQuery) ([]model.Alert, error) {
	tx := s.db.WithContext(ctx).Where("acknowledged = ?", q.Acknowledged)
	if q.DeviceID != "" {
		tx = tx.Where("device_id = ?", q.DeviceID)
	}
	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true})
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var alerts []model.Alert
	if err := tx.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	return alerts, nil
}

// UpdateAlert applies a partial update to one alert.
func (s *gormStore) UpdateAlert(ctx context.Context, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&model.Alert{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update alert %q: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update alert %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *gormStore) GetThresholds(ctx context.Context, deviceID string) (model.Thresholds, error) {
	var t model.Thresholds
	err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Thresholds{}, ErrNotFound
	}
	if err != nil {
		return model.Thresholds{}, fmt.Errorf("get thresholds for device %q: %w", deviceID, err)
	}
	return t, nil
}

// SetThresholds overwrites the whole record for the device and stamps updated_at.
func (s *gormStore) SetThresholds(ctx context.Context, t model.Thresholds) error {
	t.UpdatedAt = s.now().UTC()
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tilt_max", "soil_moisture_max", "soil_moisture_min", "humidity_max", "updated_at"}),
	}).Create(&t).Error; err != nil {
		return fmt.Errorf("set thresholds for device %q: %w", t.DeviceID, err)
	}
	return nil
}

func (s *gormStore) FindUserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user %q: %w", email, err)
	}
	return u, nil
}

// UpsertUser creates the user or replaces its password hash and admin flag.
func (s *gormStore) UpsertUser(ctx context.Context, u model.User) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "admin", "updated_at"}),
	}).Create(&u).Error; err != nil {
		return fmt.Errorf("upsert user %q: %w", u.Email, err)
	}
	return nil
}
