// Package miner runs the background nonce search on top of the selected
// tip and submits the blocks it finds like any received block.
package miner

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/mining"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

const logHashRateInterval = 10 * time.Second

var errEnoughBlocks = errors.New("mined the requested number of blocks")

// BlockSource hands out block templates and accepts solved blocks.
type BlockSource interface {
	// BlockTemplate returns an unsolved block on top of the selected tip,
	// and a channel that is closed once the template is stale.
	BlockTemplate(owner externalapi.PublicKeyHash) (*externalapi.DomainBlock, <-chan struct{}, error)
	OnBlock(block *externalapi.DomainBlock) (*externalapi.BlockInsertionResult, error)
}

// Config holds the parameters of a Miner.
type Config struct {
	// Owner is paid the reward of the mined blocks.
	Owner externalapi.PublicKeyHash

	// Workers is the number of concurrent nonce searches.
	Workers int

	// NumberOfBlocks stops the miner after that many of its blocks were
	// accepted. Zero means no limit.
	NumberOfBlocks uint64

	// LogHashRateInterval is how often the hash rate is logged. Zero means
	// the default of 10 seconds.
	LogHashRateInterval time.Duration
}

// Miner searches for blocks with Workers goroutines. Each worker restarts
// from a fresh template whenever the selected tip changes.
type Miner struct {
	cfg      *Config
	provider model.CryptoProvider
	source   BlockSource

	hashesTried *atomic.Uint64
	blocksFound *atomic.Uint64
}

// New instantiates a new Miner
func New(cfg *Config, provider model.CryptoProvider, source BlockSource) *Miner {
	initPrometheusMetrics()
	return &Miner{
		cfg:         cfg,
		provider:    provider,
		source:      source,
		hashesTried: atomic.NewUint64(0),
		blocksFound: atomic.NewUint64(0),
	}
}

// BlocksFound returns the number of blocks found by the miner that were
// accepted.
func (m *Miner) BlocksFound() uint64 {
	return m.blocksFound.Load()
}

// Run mines until ctx is done, NumberOfBlocks blocks were accepted, or a
// block could not be submitted. Only the latter returns an error.
func (m *Miner) Run(ctx context.Context) error {
	workers := m.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	log.Infof("Mining with %d workers", workers)

	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			return m.mineLoop(groupCtx)
		})
	}
	m.logHashRate(groupCtx)

	err := group.Wait()
	if errors.Is(err, errEnoughBlocks) {
		log.Infof("Mined %d blocks", m.blocksFound.Load())
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		log.Infof("Mining stopped")
		return nil
	}
	return err
}

func (m *Miner) mineLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		block, err := m.mineNextBlock(ctx)
		if err != nil {
			return err
		}
		if block == nil {
			continue
		}
		err = m.handleFoundBlock(block)
		if err != nil {
			return err
		}
	}
}

// mineNextBlock returns nil if the template went stale before a nonce was
// found.
func (m *Miner) mineNextBlock(ctx context.Context) (*externalapi.DomainBlock, error) {
	template, templateStale, err := m.source.BlockTemplate(m.cfg.Owner)
	if err != nil {
		return nil, err
	}

	nonce := rand.Uint64() // Use the global concurrent-safe random source.
	err = mining.SolveBlock(ctx, m.provider, template, nonce, templateStale, m.hashesTried)
	switch {
	case err == nil:
		return template, nil
	case errors.Is(err, mining.ErrAborted):
		log.Debugf("Block template on %s went stale. Fetching a new one",
			template.Header.PreviousBlockHash)
		return nil, nil
	case errors.Is(err, mining.ErrNonceSpaceExhausted):
		return nil, nil
	}
	return nil, err
}

func (m *Miner) handleFoundBlock(block *externalapi.DomainBlock) error {
	blockHash := consensushashing.BlockHash(m.provider, block)
	log.Infof("Found block %s with parent %s", blockHash, block.Header.PreviousBlockHash)

	result, err := m.source.OnBlock(block)
	if err != nil {
		return errors.Wrapf(err, "error submitting block %s", blockHash)
	}
	prometheusBlocksFound.WithLabelValues(result.Status.String()).Inc()
	if result.Status != externalapi.StatusAccepted {
		log.Warnf("Mined block %s was not accepted: %s %s", blockHash, result.Status, result.RejectReason)
		return nil
	}

	found := m.blocksFound.Inc()
	if m.cfg.NumberOfBlocks != 0 && found >= m.cfg.NumberOfBlocks {
		return errEnoughBlocks
	}
	return nil
}

func (m *Miner) logHashRate(ctx context.Context) {
	interval := m.cfg.LogHashRateInterval
	if interval == 0 {
		interval = logHashRateInterval
	}
	spawn(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		lastCheck := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			// Swap out the hashes we already sampled.
			currentHashesTried := m.hashesTried.Swap(0)
			currentTime := time.Now()
			hashRate := float64(currentHashesTried) / currentTime.Sub(lastCheck).Seconds()
			log.Infof("Current hash rate is %.2f Khash/s", hashRate/1000.0)
			prometheusHashesTried.Add(float64(currentHashesTried))
			prometheusHashRate.Set(hashRate)
			lastCheck = currentTime
		}
	})
}
