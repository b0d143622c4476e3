package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/processes/blockmanager"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/cryptoprovider"
	"github.com/tinycrypto/ledgerd/domain/miningmanager/mempool"
	"github.com/tinycrypto/ledgerd/domain/nodestate"
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
	"github.com/tinycrypto/ledgerd/version"
)

const (
	defaultConfigFilename = "ledgerd.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "ledgerd.log"
	defaultErrLogFilename = "ledgerd_err.log"
	defaultMiningWorkers  = 1
	minOrphanTTL          = time.Second
)

var (
	// DefaultAppDir is the default home directory for ledgerd.
	DefaultAppDir = defaultAppDir()

	defaultConfigFile = filepath.Join(DefaultAppDir, defaultConfigFilename)
)

func defaultAppDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".ledgerd"
	}
	return filepath.Join(homeDir, ".ledgerd")
}

// Flags defines the configuration options for ledgerd.
//
// See LoadConfig for details on the configuration load process.
type Flags struct {
	ShowVersion     bool          `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile      string        `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDir          string        `short:"b" long:"appdir" description:"Directory to store logs in by default"`
	DataDir         string        `long:"datadir" description:"Directory to store the block archive in -- Blocks are only kept in memory if empty"`
	LogDir          string        `long:"logdir" description:"Directory to log output"`
	LogLevel        string        `short:"d" long:"loglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	Generate        bool          `long:"generate" description:"Generate (mine) blocks using the CPU"`
	MiningAddr      string        `long:"miningaddr" description:"Hex encoded public key the generated blocks pay to -- Required if the generate option is set"`
	MiningWorkers   int           `long:"miningworkers" description:"Number of concurrent nonce searches when generating blocks"`
	MaxMempoolTxs   int           `long:"maxmempooltxs" description:"Max number of transactions to keep in the mempool"`
	MaxOrphanBlocks uint64        `long:"maxorphanblocks" description:"Max number of orphan blocks to keep in memory"`
	OrphanTTL       time.Duration `long:"orphanttl" description:"How long to keep an orphan block. Valid time units are {s, m, h}. Minimum 1 second"`
	Profile         string        `long:"profile" description:"Serve prometheus metrics at /metrics on the given address (eg. 127.0.0.1:9090)"`
	NetworkFlags
}

// Config defines the configuration options for ledgerd.
//
// See LoadConfig for details on the configuration load process.
type Config struct {
	*Flags

	// MiningPublicKey and MiningOwner are set if MiningAddr is.
	MiningPublicKey []byte
	MiningOwner     externalapi.PublicKeyHash
}

// NodeStateConfig returns the NodeState configuration matching the flags.
func (cfg *Config) NodeStateConfig() *nodestate.Config {
	nodeStateConfig := nodestate.DefaultConfig(cfg.NetParams())
	nodeStateConfig.BlockManager = &blockmanager.Config{
		MaxOrphanBlocks: cfg.MaxOrphanBlocks,
		OrphanTTL:       cfg.OrphanTTL,
	}
	nodeStateConfig.Mempool = &mempool.Config{
		MaximumTransactionCount: cfg.MaxMempoolTxs,
	}
	return nodeStateConfig
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultAppDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

func defaultFlags() *Flags {
	return &Flags{
		ConfigFile:      defaultConfigFile,
		AppDir:          DefaultAppDir,
		LogLevel:        defaultLogLevel,
		MiningWorkers:   defaultMiningWorkers,
		MaxMempoolTxs:   mempool.DefaultConfig().MaximumTransactionCount,
		MaxOrphanBlocks: blockmanager.DefaultMaxOrphanBlocks,
		OrphanTTL:       blockmanager.DefaultOrphanTTL,
	}
}

// LoadConfig initializes and parses the config using a config file and command
// line options, then starts the log backend.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in ledgerd functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options. Command line options always take
// precedence.
func LoadConfig() (*Config, error) {
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, err
	}

	// Show the version and exit if the version flag was specified.
	if cfg.ShowVersion {
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	// Special show command to list supported subsystems and exit.
	if cfg.LogLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}

	err = os.MkdirAll(cfg.LogDir, 0700)
	if err != nil {
		err := errors.Wrapf(err, "failed to create log directory")
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}

	// Initialize log rotation. After log rotation has been initialized, the
	// logger variables may be used.
	logger.InitLog(filepath.Join(cfg.LogDir, defaultLogFilename), filepath.Join(cfg.LogDir, defaultErrLogFilename))

	// Parse, validate, and set debug log level(s).
	err = logger.ParseAndSetLogLevels(cfg.LogLevel)
	if err != nil {
		err := errors.Errorf("LoadConfig: %s", err.Error())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	log.Debugf("Loaded configuration for network %s", cfg.NetParams().Name)
	return cfg, nil
}

// parseConfig parses the config file and args into a validated Config,
// without touching the log backend.
func parseConfig(args []string) (*Config, error) {
	cfgFlags := defaultFlags()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified. Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := *cfgFlags
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, err
		}
	}
	if preCfg.ShowVersion {
		return &Config{Flags: &preCfg}, nil
	}

	// Load additional config from file. A missing file is not an error.
	parser := flags.NewParser(cfgFlags, flags.HelpFlag)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, errors.Wrapf(err, "error parsing config file %s", preCfg.ConfigFile)
		}
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	err = cfgFlags.ResolveNetwork(parser)
	if err != nil {
		return nil, err
	}

	cfg := &Config{Flags: cfgFlags}
	err = cfg.validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	funcName := "validate"

	cfg.AppDir = cleanAndExpandPath(cfg.AppDir)
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.AppDir, defaultLogDirname)
	}
	// Namespace the log and data directories per network.
	cfg.LogDir = filepath.Join(cleanAndExpandPath(cfg.LogDir), cfg.NetParams().Name)
	if cfg.DataDir != "" {
		cfg.DataDir = filepath.Join(cleanAndExpandPath(cfg.DataDir), cfg.NetParams().Name)
	}

	if cfg.MiningWorkers < 1 {
		return errors.Errorf("%s: miningworkers must be at least 1 -- parsed [%d]", funcName, cfg.MiningWorkers)
	}
	if cfg.MaxMempoolTxs < 1 {
		return errors.Errorf("%s: maxmempooltxs must be at least 1 -- parsed [%d]", funcName, cfg.MaxMempoolTxs)
	}
	if cfg.MaxOrphanBlocks < 1 {
		return errors.Errorf("%s: maxorphanblocks must be at least 1 -- parsed [%d]", funcName, cfg.MaxOrphanBlocks)
	}
	if cfg.OrphanTTL < minOrphanTTL {
		return errors.Errorf("%s: the orphanttl option may not be less than %s -- parsed [%s]",
			funcName, minOrphanTTL, cfg.OrphanTTL)
	}

	if cfg.MiningAddr != "" {
		publicKey, err := hex.DecodeString(cfg.MiningAddr)
		if err != nil {
			return errors.Wrapf(err, "%s: miningaddr is not hex encoded", funcName)
		}
		owner, err := cryptoprovider.New().PublicKeyHash(publicKey)
		if err != nil {
			return errors.Wrapf(err, "%s: miningaddr is not a public key", funcName)
		}
		cfg.MiningPublicKey = publicKey
		cfg.MiningOwner = owner
	}
	if cfg.Generate && cfg.MiningPublicKey == nil {
		return errors.Errorf("%s: the generate flag is set, but there is no mining address specified", funcName)
	}
	return nil
}
