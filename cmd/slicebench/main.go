// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// slicebench hammers the value verbs from many goroutines and prints
// allocator stats. Useful for eyeballing contention behaviour and as a
// -race soak target.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/fmstephe/slicestore/offheap"
	"github.com/fmstephe/slicestore/offheap/internal/blockpool"
	"github.com/fmstephe/slicestore/serialization"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	workersFlag   = flag.Int("workers", 8, "Concurrent worker goroutines")
	valuesFlag    = flag.Int("values", 1024, "Live values shared by the workers")
	durationFlag  = flag.Duration("duration", 10*time.Second, "How long to run")
	blockSizeFlag = flag.Uint("blocksize", blockpool.DefaultBlockSize, "Block size in bytes")
	metricsFlag   = flag.String("metrics", "", "Optional listen address for /metrics")
)

func main() {
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	pool := blockpool.New(blockpool.Config{
		BlockSize: uint32(*blockSizeFlag),
		Logger:    logger,
	})
	values := offheap.NewSyncRecycleLogged(pool, logger)
	defer pool.Destroy()

	if *metricsFlag != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(offheap.NewCollector("values", values))
		go func() {
			http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsFlag, nil); err != nil {
				logger.Warn("metrics listener failed", zap.Error(err))
			}
		}()
	}

	slices := make([]offheap.Slice, *valuesFlag)
	for i := range slices {
		if err := values.Allocate(&slices[i], 8, true); err != nil {
			logger.Fatal("cannot allocate initial values", zap.Error(err))
		}
		offheap.Put(&slices[i], int64(i), serialization.Int64{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), *durationFlag)
	defer cancel()

	var g errgroup.Group
	for w := 0; w < *workersFlag; w++ {
		seed := int64(w)
		g.Go(func() error {
			return work(ctx, values, slices, seed)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Fatal("worker failed", zap.Error(err))
	}

	stats := values.Stats()
	fmt.Printf("allocs %d frees %d reused %d bytes %d blocks %d\n",
		stats.Allocs, stats.Frees, stats.Reused, stats.AllocatedBytes, stats.Blocks)
}

// work loops over the shared slices applying a random verb to a random
// slice. Deleted slots are reallocated in place, stale descriptors are
// refreshed, so the population of live values stays roughly constant.
func work(ctx context.Context, values *offheap.SyncRecycle, slices []offheap.Slice, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	local := make([]offheap.Slice, len(slices))
	copy(local, slices)

	for ctx.Err() == nil {
		i := rng.Intn(len(local))
		s := &local[i]

		var res offheap.Result
		switch rng.Intn(10) {
		case 0:
			res = offheap.Delete(s)
		case 1, 2:
			res = offheap.Put(s, rng.Int63(), serialization.Int64{})
		case 3, 4:
			res = offheap.Compute(s, func(v offheap.WriteView) {
				v.PutInt64At(0, v.Int64At(0)+1)
			})
		default:
			_, res = offheap.Read(s, func(v offheap.ReadView) int64 {
				return v.Int64At(0)
			})
		}

		if res == offheap.False || res == offheap.Retry {
			// The value is gone, or our descriptor lost the slot.
			// Either way replace it with a fresh allocation.
			if err := values.Allocate(s, 8, true); err != nil {
				return err
			}
			offheap.Put(s, rng.Int63(), serialization.Int64{})
		}
	}
	return nil
}
