package opt

import "sync"

type metricsKey struct {
	Instance string
	Algo     Algorithm
}

var (
	mu    sync.Mutex
	store = map[metricsKey]Metrics{}
)

// RecordMetrics keeps the latest run metrics per (instance, algorithm).
func RecordMetrics(instance string, m Metrics) {
	mu.Lock()
	store[metricsKey{Instance: instance, Algo: m.Algorithm}] = m
	mu.Unlock()
}

func GetMetrics(instance string) map[string]Metrics {
	mu.Lock()
	defer mu.Unlock()
	out := map[string]Metrics{}
	for k, v := range store {
		if k.Instance == instance {
			out[string(k.Algo)] = v
		}
	}
	return out
}
