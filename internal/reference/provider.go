package reference

import (
	"context"
	"sync"

	"baro-tracker-api/internal/logger"
)

// Provider lazily loads the dataset once and shares it until Reset.
// A failed load is not cached; the next call retries.
type Provider struct {
	loader Loader

	mu      sync.Mutex
	dataset *Dataset
}

// NewProvider creates a provider backed by loader.
func NewProvider(loader Loader) *Provider {
	return &Provider{loader: loader}
}

// NewStaticProvider wraps an already-built dataset.
func NewStaticProvider(d *Dataset) *Provider {
	return &Provider{dataset: d}
}

// Dataset returns the loaded dataset, loading it on first use.
func (p *Provider) Dataset(ctx context.Context) (*Dataset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dataset != nil {
		return p.dataset, nil
	}

	data, err := p.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	d, err := ParseDataset(data)
	if err != nil {
		return nil, err
	}

	logger.Log.Infof("[Reference] Loaded %d reference entries", d.Len())
	p.dataset = d
	return d, nil
}

// Reset drops the loaded dataset so the next call reloads it.
// Static providers have nothing to reload and keep theirs.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loader != nil {
		p.dataset = nil
	}
}
