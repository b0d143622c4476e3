package app

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/datastructures/blockstore"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/cryptoprovider"
	"github.com/tinycrypto/ledgerd/domain/miningmanager/miner"
	"github.com/tinycrypto/ledgerd/domain/nodestate"
	"github.com/tinycrypto/ledgerd/infrastructure/config"
	"github.com/tinycrypto/ledgerd/infrastructure/os/signal"
	"github.com/tinycrypto/ledgerd/util/profiling"
	"golang.org/x/sync/errgroup"
)

const profilingShutdownTimeout = 5 * time.Second

// ComponentManager is a wrapper for all the ledgerd services
type ComponentManager struct {
	cfg             *config.Config
	nodeState       *nodestate.NodeState
	miner           *miner.Miner
	profilingServer *http.Server

	cancel  context.CancelFunc
	stopped chan struct{}

	started, shutdown int32
}

// Start launches all the ledgerd services.
func (a *ComponentManager) Start() {
	// Already started?
	if atomic.AddInt32(&a.started, 1) != 1 {
		return
	}

	log.Trace("Starting ledgerd")

	if a.cfg.Profile != "" {
		a.profilingServer = profiling.Start(a.cfg.Profile, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	group, groupCtx := errgroup.WithContext(ctx)
	if a.miner != nil {
		log.Infof("Generating blocks with %d workers", a.cfg.MiningWorkers)
		group.Go(func() error {
			return a.miner.Run(groupCtx)
		})
	}

	spawn(func() {
		defer close(a.stopped)
		err := group.Wait()
		if err != nil && ctx.Err() == nil {
			log.Criticalf("Ledgerd service failed: %+v", err)
			signal.ShutdownRequestChannel <- struct{}{}
		}
	})
}

// Stop gracefully shuts down all the ledgerd services.
func (a *ComponentManager) Stop() {
	// Make sure this only happens once.
	if atomic.AddInt32(&a.shutdown, 1) != 1 {
		log.Infof("Ledgerd is already in the process of shutting down")
		return
	}

	log.Warnf("Ledgerd shutting down")

	if a.cancel != nil {
		a.cancel()
		<-a.stopped
	}

	if a.profilingServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), profilingShutdownTimeout)
		defer cancel()
		err := a.profilingServer.Shutdown(ctx)
		if err != nil {
			log.Errorf("Error stopping the profile server: %+v", err)
		}
	}

	log.Infof("Selected tip %s at height %d, %d blocks stored, %d transactions in the mempool",
		a.nodeState.TipHash(), a.nodeState.Height(), a.nodeState.BlockCount(), a.nodeState.MempoolSize())
}

// NodeState returns the NodeState associated with this ComponentManager
func (a *ComponentManager) NodeState() *nodestate.NodeState {
	return a.nodeState
}

// NewComponentManager returns a new ComponentManager instance.
// Use Start() to begin all services within this ComponentManager
func NewComponentManager(cfg *config.Config, db blockstore.DataAccessor) (*ComponentManager, error) {
	provider := cryptoprovider.New()

	nodeState, err := nodestate.New(cfg.NodeStateConfig(), provider, db)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load the node state")
	}
	log.Infof("Loaded %d blocks on %s. Selected tip %s at height %d",
		nodeState.BlockCount(), cfg.NetParams().Name, nodeState.TipHash(), nodeState.Height())
	nodeState.Subscribe(logNotification)

	var blockMiner *miner.Miner
	if cfg.Generate {
		blockMiner = miner.New(&miner.Config{
			Owner:   cfg.MiningOwner,
			Workers: cfg.MiningWorkers,
		}, provider, nodeState)
	}

	return &ComponentManager{
		cfg:       cfg,
		nodeState: nodeState,
		miner:     blockMiner,
		stopped:   make(chan struct{}),
	}, nil
}

func logNotification(notification *nodestate.Notification) {
	switch notification.Type {
	case nodestate.NTBlockAdded:
		data, ok := notification.Data.(*nodestate.BlockAddedNotificationData)
		if !ok {
			log.Warnf("Block added notification data is of wrong type.")
			break
		}
		if data.WasUnorphaned {
			log.Infof("Accepted block %s (unorphaned)", data.BlockHash)
			break
		}
		log.Infof("Accepted block %s", data.BlockHash)

	case nodestate.NTChainChanged:
		data, ok := notification.Data.(*nodestate.ChainChangedNotificationData)
		if !ok {
			log.Warnf("Chain changed notification data is of wrong type.")
			break
		}
		if len(data.RemovedChainBlockHashes) > 0 {
			log.Infof("Reorganized the selected chain: %d blocks removed, %d blocks added",
				len(data.RemovedChainBlockHashes), len(data.AddedChainBlockHashes))
		}
		if len(data.EvictedTransactions) > 0 {
			log.Infof("Evicted %d transactions from the mempool", len(data.EvictedTransactions))
		}
	}
}
