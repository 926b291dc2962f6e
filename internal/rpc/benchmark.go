package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/circlefin/stablecoin-evm-sub003/internal/chain"
	"github.com/sirupsen/logrus"
)

// probeTimeout bounds each endpoint probe.
const probeTimeout = 5 * time.Second

// Probe dials url and times one eth_blockNumber.
func Probe(ctx context.Context, url string) Endpoint {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	ep := Endpoint{URL: url}
	start := time.Now()
	c, err := chain.Dial(ctx, url)
	if err != nil {
		ep.Err = err
		return ep
	}
	defer c.Close()

	ep.BlockNumber, ep.Err = c.BlockNumber(ctx)
	ep.Latency = time.Since(start)
	return ep
}

// Benchmark probes every URL in parallel. Results keep the order of urls.
func Benchmark(ctx context.Context, urls []string) []Endpoint {
	results := make([]Endpoint, len(urls))
	var wg sync.WaitGroup

	for i, url := range urls {
		wg.Add(1)
		go func(idx int, u string) {
			defer wg.Done()
			results[idx] = Probe(ctx, u)
		}(i, url)
	}

	wg.Wait()
	return results
}

// Best benchmarks urls and returns the URL chosen by algo. A single URL is
// returned without probing.
func Best(ctx context.Context, urls []string, algo Algorithm, log logrus.FieldLogger) (string, error) {
	switch len(urls) {
	case 0:
		return "", ErrNoHealthyRPC
	case 1:
		return urls[0], nil
	}

	endpoints := Benchmark(ctx, urls)
	for _, e := range endpoints {
		log.WithFields(logrus.Fields{"url": e.URL, "latency": e.Latency, "block": e.BlockNumber, "error": e.Err}).
			Debug("Probed RPC endpoint")
	}
	winner, err := Pick(endpoints, algo)
	if err != nil {
		return "", err
	}
	return winner.URL, nil
}
