package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/xfw5/Market-Research/internal/config"
	"github.com/xfw5/Market-Research/internal/database"
)

// InitializeDatabases opens the market and paper databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// market.db is rebuilt from the seed on demand, so speed beats durability
	marketDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(database.NameMarket),
		Profile: database.ProfileCache,
		Name:    database.NameMarket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize market database: %w", err)
	}
	container.MarketDB = marketDB

	// paper.db is the account ledger
	paperDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(database.NamePaper),
		Profile: database.ProfileLedger,
		Name:    database.NamePaper,
	})
	if err != nil {
		marketDB.Close()
		return nil, fmt.Errorf("failed to initialize paper database: %w", err)
	}
	container.PaperDB = paperDB

	for _, db := range container.Databases() {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply %s schema: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}
