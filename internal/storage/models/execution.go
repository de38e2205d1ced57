package models

// ExecutionRecord is one completed production-lane trade. In-flight work is
// never persisted; records are written only after the lane finishes.
type ExecutionRecord struct {
	BaseModel
	PacketID        string  `gorm:"unique;not null;type:varchar(64)"`
	Success         bool    `gorm:"not null"`
	EstimatedProfit float64 `gorm:"type:decimal(20,8)"`
	ActualProfit    float64 `gorm:"type:decimal(20,8)"`
	GasUsed         float64 `gorm:"type:decimal(20,8)"`
	Reference       string  `gorm:"type:varchar(128)"`
	TokenIn         string  `gorm:"index;type:varchar(64)"`
	TokenOut        string  `gorm:"type:varchar(64)"`
	Hops            int     `gorm:"default:0"`
	ErrorMessage    string  `gorm:"type:text"`
}

// DiscrepancyRecord is one production-vs-shadow comparison.
type DiscrepancyRecord struct {
	BaseModel
	PacketID          string  `gorm:"index;not null;type:varchar(64)"`
	ProductionProfit  float64 `gorm:"type:decimal(20,8)"`
	ShadowProfit      float64 `gorm:"type:decimal(20,8)"`
	Discrepancy       float64 `gorm:"index;type:decimal(20,8)"`
	ProductionSuccess bool
	ShadowSuccess     bool
}
