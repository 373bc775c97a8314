package product

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Type enumerates the supported product kinds.
type Type string

const (
	// TypeNormal is a regular catalog product.
	TypeNormal Type = "normal"
	// TypeCrowdfunding is a product sold as part of a crowdfunding campaign.
	TypeCrowdfunding Type = "crowdfunding"
)

// CrowdfundingStatus enumerates the campaign lifecycle states.
type CrowdfundingStatus string

const (
	StatusFunding CrowdfundingStatus = "funding"
	StatusSuccess CrowdfundingStatus = "success"
	StatusFailed  CrowdfundingStatus = "failed"
)

// SKUNotFoundError indicates a requested SKU does not exist.
type SKUNotFoundError struct {
	SKUID string
}

func (e *SKUNotFoundError) Error() string {
	return fmt.Sprintf("sku %s not found", e.SKUID)
}

// Product is the sellable catalog entry. SKUs carry the purchasable
// variants; the product holds the shared attributes.
type Product struct {
	ID          string
	Type        Type
	Title       string
	Description string
	OnSale      bool
	Price       decimal.Decimal
}

// Crowdfunding carries campaign state for a crowdfunding product.
type Crowdfunding struct {
	ID           string
	ProductID    string
	TargetAmount decimal.Decimal
	TotalAmount  decimal.Decimal
	UserCount    int
	Status       CrowdfundingStatus
	EndAt        time.Time
}

// SKU is a purchasable product variant. Stock only ever changes through
// conditional decrements, so it can never go negative.
type SKU struct {
	ID           string
	ProductID    string
	Title        string
	Price        decimal.Decimal
	Stock        int
	Product      Product
	Crowdfunding *Crowdfunding
}
