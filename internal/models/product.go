package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Brand string

const (
	BrandTotal  Brand = "Total"
	BrandKGas   Brand = "K-gas"
	BrandProGas Brand = "Pro-gas"
	BrandOlaGas Brand = "ola-gas"
	BrandOther  Brand = "Other"
)

func (b Brand) Valid() bool {
	switch b {
	case BrandTotal, BrandKGas, BrandProGas, BrandOlaGas, BrandOther:
		return true
	}
	return false
}

type CylinderSize string

const (
	Cylinder3kg  CylinderSize = "3kg"
	Cylinder6kg  CylinderSize = "6kg"
	Cylinder12kg CylinderSize = "12kg"
	Cylinder13kg CylinderSize = "13kg"
	Cylinder50kg CylinderSize = "50kg"
)

func (s CylinderSize) Valid() bool {
	switch s {
	case Cylinder3kg, Cylinder6kg, Cylinder12kg, Cylinder13kg, Cylinder50kg:
		return true
	}
	return false
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Product is an LPG cylinder offered in the catalog.
type Product struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Brand          Brand              `bson:"brand" json:"brand"`
	CylinderSize   CylinderSize       `bson:"cylinderSize" json:"cylinderSize"`
	Price          float64            `bson:"price" json:"price"`
	RefillPrice    float64            `bson:"refillPrice" json:"refillPrice"`
	StockQuantity  int                `bson:"stockQuantity" json:"stockQuantity"`
	Availability   bool               `bson:"availability" json:"availability"`
	ApprovalStatus ApprovalStatus     `bson:"approvalStatus" json:"approvalStatus"`
	SafetyFeatures StringList         `bson:"safetyFeatures,omitempty" json:"safetyFeatures,omitempty"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Listed reports whether the catalog offers the product at all, regardless
// of how many units are left.
func (p Product) Listed() bool {
	return p.Availability && p.ApprovalStatus == ApprovalApproved
}

// Purchasable reports whether at least one unit can be sold right now.
func (p Product) Purchasable() bool {
	return p.Listed() && p.StockQuantity > 0
}

// CanSupply reports whether quantity units can be sold right now.
func (p Product) CanSupply(quantity int) bool {
	return quantity > 0 && p.Purchasable() && p.StockQuantity >= quantity
}
