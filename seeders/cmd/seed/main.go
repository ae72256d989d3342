package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"branch-ledger/internal/entities"
	"branch-ledger/internal/listeners"
	"branch-ledger/internal/repositories"
	"branch-ledger/internal/routes"
	"branch-ledger/pkg/config"
	"branch-ledger/pkg/database/postgresql"
	"branch-ledger/pkg/eventbus"
	applogger "branch-ledger/pkg/logger"
	"branch-ledger/pkg/service"
	"branch-ledger/seeders"
)

func main() {
	runDicts := flag.Bool("dicts", false, "seed branches, locations and parts")
	runStock := flag.Bool("stock", false, "receive opening stock through the ledger")
	runAll := flag.Bool("all", false, "equivalent to -dicts -stock")
	tokenFor := flag.Int64("token", 0, "print a signed access token for this user id")
	override := flag.Bool("override", false, "token carries the override capability")
	flag.Parse()

	if !*runDicts && !*runStock && !*runAll && *tokenFor == 0 {
		log.Println("nothing selected. flags:")
		flag.PrintDefaults()
		log.Println("example: go run ./seeders/cmd/seed -all -token 1 -override")
		return
	}

	ctx := context.Background()
	cfg := config.New()
	logger := applogger.NewLogger(cfg)
	defer logger.Sync() //nolint:errcheck

	if *runDicts || *runStock || *runAll {
		db, err := postgresql.ConnectDB(ctx, cfg.Postgres, logger)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()

		if *runAll || *runDicts {
			if err := seeders.SeedDictionaries(ctx, db); err != nil {
				log.Fatalf("dictionaries: %v", err)
			}
		}
		if *runAll || *runStock {
			bus := eventbus.New(logger)
			listeners.NewAuditRecorder(repositories.NewAuditRepository(db, logger), logger).Register(bus)
			svcs := routes.BuildServices(db, repositories.NewNoopCacheRepository(), bus, cfg, logger)
			if err := seeders.SeedOpeningStock(ctx, db, svcs.Ledger); err != nil {
				log.Fatalf("opening stock: %v", err)
			}
			bus.Wait()
		}
		log.Println("seeding finished")
	}

	if *tokenFor != 0 {
		if cfg.JWT.SecretKey == "" {
			log.Fatal("JWT_SECRET_KEY is not set")
		}
		jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, logger)
		token, err := jwtSvc.GenerateToken(entities.Actor{ID: *tokenFor, Name: fmt.Sprintf("user-%d", *tokenFor), CanOverride: *override})
		if err != nil {
			log.Fatalf("token: %v", err)
		}
		fmt.Println(token)
	}
}
