package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/repository"
)

func vnd(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// seedCatalog loads the demo shelf. Both repositories skip rows that already exist.
func seedCatalog(ctx context.Context, products repository.ProductRepository, vouchers repository.VoucherRepository) error {
	shelf := []entity.Product{
		{ID: "lego-10497", Name: "Galaxy Explorer", Description: "Classic space set re-issued for the 90th anniversary.", Price: vnd(2999000), Category: "Icons", Stock: 12},
		{ID: "lego-75313", Name: "AT-AT", Description: "Ultimate Collector Series walker with 6,785 pieces.", Price: vnd(21999000), PromoPrice: decimal.NewNullDecimal(vnd(19999000)), Category: "Star Wars", Stock: 3},
		{ID: "lego-10281", Name: "Bonsai Tree", Description: "Botanical collection display piece.", Price: vnd(1299000), PromoPrice: decimal.NewNullDecimal(vnd(1099000)), Category: "Botanical", Stock: 40},
		{ID: "lego-42143", Name: "Ferrari Daytona SP3", Description: "Technic 1:8 supercar.", Price: vnd(11499000), Category: "Technic", Stock: 5},
		{ID: "lego-21330", Name: "Home Alone", Description: "McCallister house with 5 minifigures.", Price: vnd(7499000), Category: "Ideas", Stock: 8},
		{ID: "lego-60337", Name: "Express Passenger Train", Description: "Remote-controlled city train.", Price: vnd(3999000), Category: "City", Stock: 0},
	}
	if err := products.Seed(ctx, shelf); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}

	now := time.Now().UTC()
	promos := []entity.Voucher{
		{ID: "GIAM10", Code: "GIAM10", Kind: entity.VoucherPercentage, Value: vnd(10), MaxDiscount: decimal.NewNullDecimal(vnd(500000)), MinOrderValue: vnd(1000000), Quantity: 100, StartsAt: now.AddDate(0, -1, 0), EndsAt: now.AddDate(1, 0, 0)},
		{ID: "FREESHIP", Code: "FREESHIP", Kind: entity.VoucherFixedAmount, Value: vnd(50000), MinOrderValue: vnd(300000), Quantity: 500},
		{ID: "VIP20", Code: "VIP20", Kind: entity.VoucherPercentage, Value: vnd(20), MaxDiscount: decimal.NewNullDecimal(vnd(2000000)), MinOrderValue: vnd(10000000), Quantity: 10},
	}
	if err := vouchers.Seed(ctx, promos); err != nil {
		return fmt.Errorf("failed to seed vouchers: %w", err)
	}

	slog.Info("Seeded catalog", "products", len(shelf), "vouchers", len(promos))
	return nil
}
