// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dgraph-io/badger"
	"github.com/rs/zerolog"

	"gitlab.com/mimblenet/mimbled/config"
	"gitlab.com/mimblenet/mimbled/corelog"
	"gitlab.com/mimblenet/mimbled/database"
	"gitlab.com/mimblenet/mimbled/node/blockchain"
	"gitlab.com/mimblenet/mimbled/node/chaindata"
	"gitlab.com/mimblenet/mimbled/node/mempool"
	"gitlab.com/mimblenet/mimbled/node/mmr"
	"gitlab.com/mimblenet/mimbled/types/chaincfg"
)

// Namespaces separating the three accumulators within one database.
const (
	outputMMRNamespace     = 0x01
	rangeProofMMRNamespace = 0x02
	kernelMMRNamespace     = 0x03
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := mimbledMain(); err != nil {
		fmt.Println("FATAL:", err)
		os.Exit(1)
	}
}

// mimbledMain is the real main function for mimbled.  It is necessary
// to work around the fact that deferred functions do not run when
// os.Exit() is called.
func mimbledMain() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	params, err := cfg.NetParams()
	if err != nil {
		return err
	}
	level, err := cfg.ZerologLevel()
	if err != nil {
		return err
	}

	log := corelog.New("node", level, cfg.LogConfig)
	chaindata.UseLogger(log)
	blockchain.UseLogger(log)
	mempool.UseLogger(log)

	interrupt := interruptListener(log)

	chain, closeState, err := buildChainState(cfg, params, log)
	if err != nil {
		return err
	}
	defer closeState()

	pool := mempool.New(&mempool.Config{
		Params:        params,
		Chain:         chain,
		MaxPoolWeight: cfg.Node.MaxPoolWeight,
	})

	best := chain.BestSnapshot()
	log.Info().
		Str("network", params.Name).
		Str("tip", best.Hash.String()).
		Uint64("height", best.Height).
		Int("pooled", pool.Count()).
		Msg("node is ready")

	<-interrupt
	log.Info().Msg("shutdown complete")
	return nil
}

// buildChainState assembles the chain with either persistent or
// in-memory storage and returns a release function for whichever was
// opened.
func buildChainState(cfg *config.Config, params *chaincfg.Params,
	log zerolog.Logger) (*blockchain.BlockChain, func(), error) {

	if cfg.Node.InMemory {
		chain, err := blockchain.New(&blockchain.Config{
			Params: params,
			DB:     database.NewMemoryStore(),
		})
		if err != nil {
			return nil, nil, err
		}
		return chain, func() {}, nil
	}

	dbPath := filepath.Join(cfg.Node.DataDir, params.Name)
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open chain database at %s: %w", dbPath, err)
	}
	closeDB := func() {
		if cerr := db.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("closing chain database")
		}
	}

	outputs, err := mmr.NewBadgerBackend(db, outputMMRNamespace)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	rangeProofs, err := mmr.NewBadgerBackend(db, rangeProofMMRNamespace)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	kernels, err := mmr.NewBadgerBackend(db, kernelMMRNamespace)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	hashset, err := blockchain.NewTxHashset(outputs, rangeProofs, kernels)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	chain, err := blockchain.New(&blockchain.Config{
		Params:  params,
		DB:      database.NewBadgerStore(db),
		Hashset: hashset,
	})
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return chain, closeDB, nil
}
