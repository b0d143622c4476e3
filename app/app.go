package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/infrastructure/config"
	"github.com/tinycrypto/ledgerd/infrastructure/db/database/ldb"
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
	"github.com/tinycrypto/ledgerd/infrastructure/os/signal"
	"github.com/tinycrypto/ledgerd/util/panics"
	"github.com/tinycrypto/ledgerd/version"
)

const databaseDirectoryName = "database"

// StartApp starts ledgerd and blocks until it is shut down.
func StartApp() error {
	// Load configuration and parse command line. This function also
	// initializes logging and configures it accordingly.
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	defer logger.BackendLog.Close()
	defer panics.HandlePanic(log, nil)

	// Get a channel that will be closed when a shutdown signal has been
	// triggered either from an OS signal such as SIGINT (Ctrl+C) or from
	// another subsystem such as the miner.
	interrupt := signal.InterruptListener()

	// Show version at startup.
	log.Infof("Version %s", version.Version())

	db, err := openDB(cfg)
	if err != nil {
		log.Errorf("Loading block archive failed: %+v", err)
		return err
	}
	defer func() {
		log.Infof("Gracefully shutting down the block archive...")
		err := db.Close()
		if err != nil {
			log.Errorf("Failed to close the block archive: %s", err)
		}
	}()

	componentManager, err := NewComponentManager(cfg, db)
	if err != nil {
		log.Errorf("Unable to start ledgerd: %+v", err)
		return err
	}

	defer func() {
		log.Infof("Gracefully shutting down ledgerd...")
		componentManager.Stop()
		log.Infof("Ledgerd shutdown complete")
	}()

	componentManager.Start()

	// Wait until the interrupt signal is received from an OS signal or
	// shutdown is requested through one of the subsystems.
	<-interrupt
	return nil
}

// openDB opens the block archive under the data directory, or an in-memory
// one if no data directory is set.
func openDB(cfg *config.Config) (*ldb.LevelDB, error) {
	if cfg.DataDir == "" {
		log.Infof("No data directory is set. Blocks are kept in memory only")
		return ldb.NewInMemoryLevelDB()
	}

	dbPath := filepath.Join(cfg.DataDir, databaseDirectoryName)
	err := os.MkdirAll(dbPath, 0700)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create the data directory")
	}

	doesVersionFileExist, err := checkDatabaseVersion(dbPath)
	if err != nil {
		return nil, err
	}

	log.Infof("Loading block archive from '%s'", dbPath)
	db, err := ldb.NewLevelDB(dbPath)
	if err != nil {
		return nil, err
	}

	if !doesVersionFileExist {
		err := createDatabaseVersionFile(dbPath)
		if err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, fmt.Sprintf("failed to create the version file of %s", dbPath))
		}
	}
	return db, nil
}
