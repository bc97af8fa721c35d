package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/yourorg/calibr8/internal/models"
)

// AssetRepository handles assets and their subgroups.
type AssetRepository interface {
	List(ctx context.Context) ([]models.Asset, error)
	Get(ctx context.Context, id int64) (models.Asset, error)
	Create(ctx context.Context, name, assetType string) (models.Asset, error)
	Rename(ctx context.Context, id int64, name string) (models.Asset, error)
	// Subgroups returns the asset's subgroups; ErrNotFound if the asset is missing.
	Subgroups(ctx context.Context, assetID int64) ([]models.Subgroup, error)
	AddSubgroup(ctx context.Context, assetID int64, name string) (models.Subgroup, error)
	GetSubgroup(ctx context.Context, id int64) (models.Subgroup, error)
	RenameSubgroup(ctx context.Context, id int64, name string) (models.Subgroup, error)
}

// MasterlistRepository handles uploaded masterlists and their tags.
type MasterlistRepository interface {
	// Create records a masterlist file and its tags in one transaction.
	Create(ctx context.Context, fileName, archiveURI string, rows []TagRow) (models.MasterList, int64, error)
	CreateFile(ctx context.Context, fileName, archiveURI string) (models.MasterList, error)
	// ByArchiveURI returns the newest masterlist recorded for archiveURI.
	ByArchiveURI(ctx context.Context, archiveURI string) (models.MasterList, error)
	TagCount(ctx context.Context, fileID int64) (int64, error)
	// Delete removes a masterlist and its tags.
	Delete(ctx context.Context, fileID int64) error
	Get(ctx context.Context, fileID int64) (models.MasterList, error)
	Latest(ctx context.Context) (models.MasterList, error)
	List(ctx context.Context) ([]models.MasterList, error)
	// Tags returns the tags of a file; ErrNotFound if the file is missing.
	Tags(ctx context.Context, fileID int64) ([]models.Tag, error)
}

// TemplateRepository handles formula templates.
type TemplateRepository interface {
	Create(ctx context.Context, formulaID int64, name string) (models.Template, error)
	List(ctx context.Context) ([]models.Template, error)
}

func NewAssetRepo(db *gorm.DB) AssetRepository           { return &assetRepo{db: db} }
func NewMasterlistRepo(db *gorm.DB) MasterlistRepository { return &masterlistRepo{db: db} }
func NewTemplateRepo(db *gorm.DB) TemplateRepository     { return &templateRepo{db: db} }

type assetRepo struct{ db *gorm.DB }
type masterlistRepo struct{ db *gorm.DB }
type templateRepo struct{ db *gorm.DB }

func (r *assetRepo) List(ctx context.Context) ([]models.Asset, error) {
	var out []models.Asset
	err := r.db.WithContext(ctx).
		Preload("Subgroups", func(tx *gorm.DB) *gorm.DB { return tx.Order("subgroup_id asc") }).
		Order("asset_id asc").
		Find(&out).Error
	return out, err
}

func (r *assetRepo) Get(ctx context.Context, id int64) (models.Asset, error) {
	var a models.Asset
	err := r.db.WithContext(ctx).
		Preload("Subgroups", func(tx *gorm.DB) *gorm.DB { return tx.Order("subgroup_id asc") }).
		First(&a, "asset_id = ?", id).Error
	return a, mapGormErr(err, "asset")
}

func (r *assetRepo) Create(ctx context.Context, name, assetType string) (models.Asset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Asset{}, invalid("asset_name is required")
	}
	a := models.Asset{AssetName: name, AssetType: strings.TrimSpace(assetType)}
	if err := r.db.WithContext(ctx).Create(&a).Error; err != nil {
		return models.Asset{}, mapGormErr(err, "asset")
	}
	return a, nil
}

func (r *assetRepo) Rename(ctx context.Context, id int64, name string) (models.Asset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Asset{}, invalid("asset_name is required")
	}
	res := r.db.WithContext(ctx).Model(&models.Asset{}).Where("asset_id = ?", id).Update("asset_name", name)
	if res.Error != nil {
		return models.Asset{}, mapGormErr(res.Error, "asset")
	}
	if res.RowsAffected == 0 {
		return models.Asset{}, notFound("asset")
	}
	return r.Get(ctx, id)
}

func (r *assetRepo) Subgroups(ctx context.Context, assetID int64) ([]models.Subgroup, error) {
	if err := exists(ctx, r.db, &models.Asset{}, "asset_id = ?", assetID, "asset"); err != nil {
		return nil, err
	}
	var out []models.Subgroup
	err := r.db.WithContext(ctx).Where("asset_id = ?", assetID).Order("subgroup_id asc").Find(&out).Error
	return out, err
}

func (r *assetRepo) AddSubgroup(ctx context.Context, assetID int64, name string) (models.Subgroup, error) {
	if err := exists(ctx, r.db, &models.Asset{}, "asset_id = ?", assetID, "asset"); err != nil {
		return models.Subgroup{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "New Subgroup"
	}
	s := models.Subgroup{AssetID: assetID, SubgroupName: name}
	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		return models.Subgroup{}, mapGormErr(err, "subgroup")
	}
	return s, nil
}

func (r *assetRepo) GetSubgroup(ctx context.Context, id int64) (models.Subgroup, error) {
	var s models.Subgroup
	err := r.db.WithContext(ctx).
		Preload("SubgroupTags", func(tx *gorm.DB) *gorm.DB { return tx.Order("subgroup_tag_id asc") }).
		First(&s, "subgroup_id = ?", id).Error
	return s, mapGormErr(err, "subgroup")
}

func (r *assetRepo) RenameSubgroup(ctx context.Context, id int64, name string) (models.Subgroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Subgroup{}, invalid("subgroup_name is required")
	}
	res := r.db.WithContext(ctx).Model(&models.Subgroup{}).Where("subgroup_id = ?", id).Update("subgroup_name", name)
	if res.Error != nil {
		return models.Subgroup{}, mapGormErr(res.Error, "subgroup")
	}
	if res.RowsAffected == 0 {
		return models.Subgroup{}, notFound("subgroup")
	}
	var s models.Subgroup
	err := r.db.WithContext(ctx).First(&s, "subgroup_id = ?", id).Error
	return s, mapGormErr(err, "subgroup")
}

func (r *masterlistRepo) Create(ctx context.Context, fileName, archiveURI string, rows []TagRow) (models.MasterList, int64, error) {
	var (
		ml models.MasterList
		n  int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ml = models.MasterList{FileName: fileName, ArchiveURI: archiveURI}
		if err := tx.Create(&ml).Error; err != nil {
			return mapGormErr(err, "masterlist")
		}
		var err error
		n, err = NewGormTagWriter(tx).WriteTags(ctx, ml.FileID, rows)
		return err
	})
	if err != nil {
		return models.MasterList{}, 0, err
	}
	return ml, n, nil
}

func (r *masterlistRepo) CreateFile(ctx context.Context, fileName, archiveURI string) (models.MasterList, error) {
	ml := models.MasterList{FileName: fileName, ArchiveURI: archiveURI}
	if err := r.db.WithContext(ctx).Create(&ml).Error; err != nil {
		return models.MasterList{}, mapGormErr(err, "masterlist")
	}
	return ml, nil
}

func (r *masterlistRepo) ByArchiveURI(ctx context.Context, archiveURI string) (models.MasterList, error) {
	var ml models.MasterList
	err := r.db.WithContext(ctx).Where("archive_uri = ?", archiveURI).Order("file_id desc").First(&ml).Error
	return ml, mapGormErr(err, "masterlist")
}

func (r *masterlistRepo) TagCount(ctx context.Context, fileID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Tag{}).Where("file_id = ?", fileID).Count(&n).Error
	return n, err
}

func (r *masterlistRepo) Delete(ctx context.Context, fileID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", fileID).Delete(&models.Tag{}).Error; err != nil {
			return mapGormErr(err, "tags")
		}
		res := tx.Where("file_id = ?", fileID).Delete(&models.MasterList{})
		if res.Error != nil {
			return mapGormErr(res.Error, "masterlist")
		}
		if res.RowsAffected == 0 {
			return notFound("masterlist")
		}
		return nil
	})
}

func (r *masterlistRepo) Get(ctx context.Context, fileID int64) (models.MasterList, error) {
	var ml models.MasterList
	err := r.db.WithContext(ctx).First(&ml, "file_id = ?", fileID).Error
	return ml, mapGormErr(err, "masterlist")
}

func (r *masterlistRepo) Latest(ctx context.Context) (models.MasterList, error) {
	var ml models.MasterList
	err := r.db.WithContext(ctx).Order("file_id desc").First(&ml).Error
	return ml, mapGormErr(err, "masterlist")
}

func (r *masterlistRepo) List(ctx context.Context) ([]models.MasterList, error) {
	var out []models.MasterList
	err := r.db.WithContext(ctx).Order("file_id asc").Find(&out).Error
	return out, err
}

func (r *masterlistRepo) Tags(ctx context.Context, fileID int64) ([]models.Tag, error) {
	if err := exists(ctx, r.db, &models.MasterList{}, "file_id = ?", fileID, "masterlist"); err != nil {
		return nil, err
	}
	var out []models.Tag
	err := r.db.WithContext(ctx).Where("file_id = ?", fileID).Order("tag_id asc").Find(&out).Error
	return out, err
}

func (r *templateRepo) Create(ctx context.Context, formulaID int64, name string) (models.Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Template{}, invalid("template_name is required")
	}
	if err := exists(ctx, r.db, &models.Formula{}, "formula_id = ?", formulaID, "formula"); err != nil {
		return models.Template{}, err
	}
	t := models.Template{FormulaID: formulaID, TemplateName: name}
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		return models.Template{}, mapGormErr(err, "template")
	}
	return t, nil
}

func (r *templateRepo) List(ctx context.Context) ([]models.Template, error) {
	var out []models.Template
	err := r.db.WithContext(ctx).Order("template_id asc").Find(&out).Error
	return out, err
}

// exists returns a wrapped ErrNotFound when no row of model matches.
func exists(ctx context.Context, db *gorm.DB, model any, query string, arg any, what string) error {
	var n int64
	if err := db.WithContext(ctx).Model(model).Where(query, arg).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return notFound(what)
	}
	return nil
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
