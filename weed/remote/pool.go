package remote

import (
	"errors"
	"io"
	"sync"
)

type Dialer func(host string) (Shell, error)

// Pool hands out one Shell per host. Pools are not shared between workers,
// each worker opens its own connections.
type Pool struct {
	dial   Dialer
	mu     sync.Mutex
	shells map[string]Shell
}

func NewPool(dial Dialer) *Pool {
	return &Pool{
		dial:   dial,
		shells: make(map[string]Shell),
	}
}

func (p *Pool) ForHost(host string) (Shell, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if shell, found := p.shells[host]; found {
		return shell, nil
	}
	shell, err := p.dial(host)
	if err != nil {
		return nil, err
	}
	p.shells[host] = shell
	return shell, nil
}

// Fork returns an empty pool using the same dialer.
func (p *Pool) Fork() *Pool {
	return NewPool(p.dial)
}

func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for host, shell := range p.shells {
		if closer, ok := shell.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		delete(p.shells, host)
	}
	return errors.Join(errs...)
}
