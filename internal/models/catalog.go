package models

import (
	"time"

	"gorm.io/datatypes"
)

// MasterList is one uploaded masterlist spreadsheet.
type MasterList struct {
	FileID     int64     `json:"file_id" gorm:"primaryKey;column:file_id"`
	FileName   string    `json:"file_name" gorm:"not null"`
	ArchiveURI string    `json:"archive_uri,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Tags       []Tag     `json:"-" gorm:"foreignKey:FileID"`
}

func (MasterList) TableName() string { return "masterlist" }

// Tag is a raw data point sourced from a masterlist.
type Tag struct {
	TagID   int64          `json:"tag_id" gorm:"primaryKey;column:tag_id"`
	FileID  int64          `json:"file_id" gorm:"index;not null"`
	TagName string         `json:"tag_name" gorm:"not null"`
	TagType string         `json:"tag_type" gorm:"not null;default:default"`
	TagData datatypes.JSON `json:"tag_data,omitempty"`
}

func (Tag) TableName() string { return "tags" }

type Asset struct {
	AssetID   int64      `json:"asset_id" gorm:"primaryKey;column:asset_id"`
	AssetName string     `json:"asset_name" gorm:"not null"`
	AssetType string     `json:"asset_type" gorm:"not null"`
	Subgroups []Subgroup `json:"subgroups,omitempty" gorm:"foreignKey:AssetID"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Asset) TableName() string { return "assets" }

type Subgroup struct {
	SubgroupID   int64         `json:"subgroup_id" gorm:"primaryKey;column:subgroup_id"`
	AssetID      int64         `json:"asset_id" gorm:"index;not null"`
	SubgroupName string        `json:"subgroup_name" gorm:"not null"`
	SubgroupTags []SubgroupTag `json:"subgroup_tags,omitempty" gorm:"foreignKey:SubgroupID"`
}

func (Subgroup) TableName() string { return "subgroups" }

// SubgroupTag is a tag attached to a subgroup (or nested under another
// subgroup tag) with its own display name and optional formula.
// FormulaID is not a foreign key: deleting a formula leaves it dangling.
type SubgroupTag struct {
	SubgroupTagID       int64  `json:"subgroup_tag_id" gorm:"primaryKey;column:subgroup_tag_id"`
	TagID               int64  `json:"tag_id" gorm:"index;not null"`
	SubgroupID          *int64 `json:"subgroup_id" gorm:"index"`
	SubgroupTagName     string `json:"subgroup_tag_name" gorm:"not null"`
	ParentSubgroupTagID *int64 `json:"parent_subgroup_tag_id" gorm:"index"`
	FormulaID           *int64 `json:"formula_id" gorm:"index"`
}

func (SubgroupTag) TableName() string { return "subgroup_tag" }

type Formula struct {
	FormulaID         int64             `json:"formula_id" gorm:"primaryKey;column:formula_id"`
	FormulaName       string            `json:"formula_name" gorm:"not null"`
	FormulaDesc       string            `json:"formula_desc,omitempty"`
	FormulaExpression string            `json:"formula_expression" gorm:"not null"`
	NumParameters     int               `json:"num_parameters" gorm:"not null"`
	Variables         []FormulaVariable `json:"variables" gorm:"foreignKey:FormulaID"`
}

func (Formula) TableName() string { return "formulas" }

type FormulaVariable struct {
	VariableID   int64  `json:"variable_id" gorm:"primaryKey;column:variable_id"`
	FormulaID    int64  `json:"-" gorm:"index;not null"`
	VariableName string `json:"variable_name" gorm:"not null"`
}

func (FormulaVariable) TableName() string { return "formula_variables" }

// VariableMapping binds a formula variable, in the context of one subgroup
// tag, to the subgroup tag that supplies its value. At most one row exists
// per (context_tag_id, variable_id).
type VariableMapping struct {
	MappingID     int64     `json:"mapping_id" gorm:"primaryKey;column:mapping_id"`
	ContextTagID  int64     `json:"context_tag_id" gorm:"not null;uniqueIndex:idx_mapping_context_variable"`
	VariableID    int64     `json:"variable_id" gorm:"not null;uniqueIndex:idx_mapping_context_variable"`
	SubgroupTagID int64     `json:"subgroup_tag_id" gorm:"not null;index"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (VariableMapping) TableName() string { return "variable_mappings" }

type Template struct {
	TemplateID   int64  `json:"template_id" gorm:"primaryKey;column:template_id"`
	FormulaID    int64  `json:"formula_id" gorm:"index;not null"`
	TemplateName string `json:"template_name" gorm:"not null"`
}

func (Template) TableName() string { return "templates" }

// All lists every catalog model for migrations.
func All() []any {
	return []any{
		&MasterList{},
		&Tag{},
		&Asset{},
		&Subgroup{},
		&SubgroupTag{},
		&Formula{},
		&FormulaVariable{},
		&VariableMapping{},
		&Template{},
	}
}
