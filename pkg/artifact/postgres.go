package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/aicluster-lab/gpuboard/pkg/config"
)

// ArtifactVersion is the append-only version row. Rows are only ever
// inserted; the version column increases per name.
type ArtifactVersion struct {
	ID        uint              `gorm:"primarykey"`
	Name      string            `gorm:"type:varchar(128);not null;index:idx_artifact_name_version,unique,priority:1"`
	Version   int               `gorm:"not null;index:idx_artifact_name_version,unique,priority:2"`
	Data      []byte            `gorm:"type:bytea;not null"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time
}

func (ArtifactVersion) TableName() string {
	return "artifact_versions"
}

// PostgresStore persists artifact versions in Postgres.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore() (*PostgresStore, error) {
	cfg := config.GetConfig()
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		cfg.Postgres.Host, cfg.Postgres.User, cfg.Postgres.Password,
		cfg.Postgres.DBName, cfg.Postgres.Port, cfg.Postgres.SSLMode, cfg.Postgres.TimeZone)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&ArtifactVersion{}); err != nil {
		return nil, fmt.Errorf("migrate artifact schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) UseLatest(ctx context.Context, name string) (*Version, error) {
	var record ArtifactVersion
	err := s.db.WithContext(ctx).
		Where("name = ?", name).
		Order("version DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve latest %s: %w", name, err)
	}
	return toVersion(&record), nil
}

func (s *PostgresStore) Download(ctx context.Context, v *Version) ([]byte, error) {
	var record ArtifactVersion
	err := s.db.WithContext(ctx).
		Where("name = ? AND version = ?", v.Name, v.Version).
		First(&record).Error
	if err != nil {
		return nil, fmt.Errorf("download %s:v%d: %w", v.Name, v.Version, err)
	}
	return record.Data, nil
}

func (s *PostgresStore) Upload(ctx context.Context, name string, data []byte, metadata map[string]string) (*Version, error) {
	record := ArtifactVersion{
		Name: name,
		Data: data,
	}
	if len(metadata) > 0 {
		record.Metadata = datatypes.JSONMap{}
		for k, v := range metadata {
			record.Metadata[k] = v
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest int
		err := tx.Model(&ArtifactVersion{}).
			Where("name = ?", name).
			Select("COALESCE(MAX(version), 0)").
			Scan(&latest).Error
		if err != nil {
			return err
		}
		record.Version = latest + 1
		return tx.Create(&record).Error
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	return toVersion(&record), nil
}

func toVersion(record *ArtifactVersion) *Version {
	v := &Version{
		Name:      record.Name,
		Version:   record.Version,
		CreatedAt: record.CreatedAt,
	}
	if len(record.Metadata) > 0 {
		v.Metadata = map[string]string{}
		for k, value := range record.Metadata {
			if s, ok := value.(string); ok {
				v.Metadata[k] = s
			}
		}
	}
	return v
}
