package domain

type Product struct {
	ID           string
	Name         string
	CategoryID   string
	CategoryName string
	Thumbnail    string
}

type Option struct {
	ID              string
	ProductID       string
	Size            string
	Unit            string
	Image           string
	Price           int64
	SalePrice       *int64
	DiscountPercent int32
	StockQuantity   int64
	IsActive        bool
}

// UnitPrice is the sale price when set and non-zero, otherwise the list price.
func (o Option) UnitPrice() int64 {
	if o.SalePrice != nil && *o.SalePrice != 0 {
		return *o.SalePrice
	}
	return o.Price
}

func (p Product) Info() ProductInfo {
	return ProductInfo{
		ProductID:    p.ID,
		Name:         p.Name,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
		Thumbnail:    p.Thumbnail,
	}
}

func (o Option) Info() OptionInfo {
	return OptionInfo{
		OptionID:        o.ID,
		Size:            o.Size,
		Unit:            o.Unit,
		Image:           o.Image,
		Price:           o.Price,
		SalePrice:       o.SalePrice,
		DiscountPercent: o.DiscountPercent,
		StockQuantity:   o.StockQuantity,
		IsActive:        o.IsActive,
	}
}
