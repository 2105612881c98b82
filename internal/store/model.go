package store

import "github.com/yairfalse/tagsweep/pkg/resource"

// DefaultTable is used when no table name is configured.
const DefaultTable = "aws_resources"

// UniqueIndex names the constraint the upsert resolves conflicts against.
const UniqueIndex = "uix_customer_resource"

// OwnershipRecord is the row layout of the ownership table.
type OwnershipRecord struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	CustomerAlias string `gorm:"column:customer_alias;size:255;uniqueIndex:uix_customer_resource,priority:1"`
	CustomerName  string `gorm:"column:customer_name;size:255"`
	ResourceType  string `gorm:"column:resource_type;size:50;uniqueIndex:uix_customer_resource,priority:3"`
	ResourceID    string `gorm:"column:resource_id;size:255;uniqueIndex:uix_customer_resource,priority:2"`
}

// TableName is overridden per query with Table(); this is the fallback.
func (OwnershipRecord) TableName() string {
	return DefaultTable
}

func fromRecord(r resource.Record) OwnershipRecord {
	return OwnershipRecord{
		CustomerAlias: r.Alias,
		CustomerName:  r.OwnerName,
		ResourceType:  r.ResourceType,
		ResourceID:    r.ResourceID,
	}
}

func (o OwnershipRecord) toRecord() resource.Record {
	return resource.Record{
		Alias:        o.CustomerAlias,
		OwnerName:    o.CustomerName,
		ResourceType: o.ResourceType,
		ResourceID:   o.ResourceID,
	}
}
