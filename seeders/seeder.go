package seeders

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"branch-ledger/internal/services"
	"branch-ledger/pkg/constants"
)

// SeedDictionaries inserts branches, their locations and parts. Rows that
// already exist are left untouched, so it can be rerun.
func SeedDictionaries(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("seeding branches, locations and parts")

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, b := range branchesData {
		if _, err := tx.Exec(ctx,
			`INSERT INTO branches (name, code) VALUES ($1, $2) ON CONFLICT (code) DO NOTHING`,
			b.Name, b.Code); err != nil {
			return fmt.Errorf("branch %s: %w", b.Code, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO locations (branch_id, code, name_en, name_ar, is_default)
			 SELECT id, $2, $3, $4, TRUE FROM branches WHERE code = $1
			 ON CONFLICT DO NOTHING`,
			b.Code, constants.DefaultLocationCode, constants.DefaultLocationNameEn, constants.DefaultLocationNameAr); err != nil {
			return fmt.Errorf("default location %s: %w", b.Code, err)
		}
	}

	for _, l := range locationsData {
		if _, err := tx.Exec(ctx,
			`INSERT INTO locations (branch_id, code, name_en, name_ar)
			 SELECT id, $2, $3, $4 FROM branches WHERE code = $1
			 ON CONFLICT (branch_id, code) DO NOTHING`,
			l.BranchCode, l.Code, l.NameEn, l.NameAr); err != nil {
			return fmt.Errorf("location %s/%s: %w", l.BranchCode, l.Code, err)
		}
	}

	for _, p := range partsData {
		if _, err := tx.Exec(ctx,
			`INSERT INTO parts (part_number, name) VALUES ($1, $2) ON CONFLICT (part_number) DO NOTHING`,
			p.PartNumber, p.Name); err != nil {
			return fmt.Errorf("part %s: %w", p.PartNumber, err)
		}
	}

	return tx.Commit(ctx)
}

// SeedOpeningStock receives opening balances through the ledger so every
// unit has a movement row. Pairs that already hold stock are skipped.
func SeedOpeningStock(ctx context.Context, db *pgxpool.Pool, ledger services.LedgerServiceInterface) error {
	log.Println("seeding opening stock")

	for _, s := range openingStockData {
		var partID, branchID, locationID int64
		err := db.QueryRow(ctx,
			`SELECT p.id, b.id, l.id
			   FROM parts p, branches b
			   JOIN locations l ON l.branch_id = b.id
			  WHERE p.part_number = $1 AND b.code = $2 AND l.code = $3`,
			s.PartNumber, s.BranchCode, s.LocationCode).Scan(&partID, &branchID, &locationID)
		if err != nil {
			return fmt.Errorf("resolve %s@%s/%s: %w", s.PartNumber, s.BranchCode, s.LocationCode, err)
		}

		var held int
		if err := db.QueryRow(ctx,
			`SELECT COALESCE(SUM(quantity), 0) FROM stock_locations WHERE part_id = $1 AND branch_id = $2 AND location_id = $3`,
			partID, branchID, locationID).Scan(&held); err != nil {
			return err
		}
		if held > 0 {
			log.Printf("  - %s@%s/%s already holds %d, skipped", s.PartNumber, s.BranchCode, s.LocationCode, held)
			continue
		}

		if _, err := ledger.AddStock(ctx, services.AddStockParams{
			PartID:     partID,
			BranchID:   branchID,
			LocationID: locationID,
			Quantity:   s.Quantity,
			Reason:     "opening balance",
			Action:     constants.MovementAdjustment,
		}); err != nil {
			return fmt.Errorf("opening stock %s@%s: %w", s.PartNumber, s.BranchCode, err)
		}
	}
	return nil
}
