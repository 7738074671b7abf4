package entity

import (
	"time"
)

// ParentCompany group a customer belongs to
type ParentCompany struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"size:255;not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ParentCompany) TableName() string {
	return "parent_companies"
}

// Customer a tenant for whom task instances are opened
type Customer struct {
	ID                 string     `json:"id" gorm:"primaryKey;size:36"`
	ParentCompanyID    *string    `json:"parent_company_id" gorm:"size:36;index"`
	Name               string     `json:"name" gorm:"size:255;not null"`
	Email              string     `json:"email" gorm:"size:255;index"`
	Phone              string     `json:"phone" gorm:"size:20"`
	Address            string     `json:"address" gorm:"size:500"`
	State              string     `json:"state" gorm:"size:100"`
	City               string     `json:"city" gorm:"size:100"`
	Pincode            string     `json:"pincode" gorm:"size:10"`
	PersonOfContact    string     `json:"person_of_contact" gorm:"size:255"`
	GST                string     `json:"gst" gorm:"column:gst;size:20"`
	PAN                string     `json:"pan" gorm:"column:pan;size:20"`
	ResidentialAddress string     `json:"residential_address" gorm:"size:500"`
	BirthDate          *time.Time `json:"birth_date"`
	AnniversaryDate    *time.Time `json:"anniversary_date"`
	Disabled           bool       `json:"disabled" gorm:"not null;default:false"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	ParentCompany *ParentCompany `json:"parent_company,omitempty" gorm:"foreignKey:ParentCompanyID"`
}

func (Customer) TableName() string {
	return "customers"
}
